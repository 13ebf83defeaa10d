// Package app wires configuration into a ready search service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maltedev/amazon-search-scraper/internal/browser"
	"github.com/maltedev/amazon-search-scraper/internal/config"
	"github.com/maltedev/amazon-search-scraper/internal/database"
	"github.com/maltedev/amazon-search-scraper/internal/diagnostics"
	"github.com/maltedev/amazon-search-scraper/internal/events"
	"github.com/maltedev/amazon-search-scraper/internal/fetcher"
	"github.com/maltedev/amazon-search-scraper/internal/metrics"
	"github.com/maltedev/amazon-search-scraper/internal/parser"
	"github.com/maltedev/amazon-search-scraper/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Service *scraper.Service
	Metrics *metrics.Metrics

	closers []func() error
}

// Build creates the service and its optional collaborators. reg may be nil,
// in which case no metrics are recorded.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	a := &App{}

	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	f, err := a.buildFetcher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	sink, err := a.buildDiagnostics(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := scraper.Deps{
		Fetcher:     f,
		Parser:      parser.NewSearchExtractor(cfg.Search.BaseURL, logger),
		BaseURL:     cfg.Search.BaseURL,
		Diagnostics: sink,
		Metrics:     a.Metrics,
		Logger:      logger,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}

	a.Service, err = scraper.NewService(deps)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases collaborators in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildFetcher(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error) {
	profile := fetcher.ChromeWindowsProfile().WithUserAgent(cfg.Fetch.UserAgent)

	if cfg.Fetch.Mode == config.FetchModeBrowser {
		opts := browser.OptionsFromProfile(profile)
		opts.Headless = cfg.Browser.Headless
		opts.Timeout = cfg.Browser.Timeout

		b, err := browser.New(opts, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	}

	client := &http.Client{}
	if cfg.Fetch.TLSFingerprint == config.FingerprintChrome {
		client.Transport = fetcher.NewChromeTransport()
	}
	return fetcher.NewHTTPFetcher(client, profile, logger), nil
}

func (a *App) buildDiagnostics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (diagnostics.Sink, error) {
	sinks := diagnostics.MultiSink{diagnostics.NewFileSink(cfg.Diagnostics.Dir)}

	if cfg.Diagnostics.Postgres {
		db, err := database.New(ctx, databaseConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		pg := diagnostics.NewPostgresSink(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
		logger.Info("postgres diagnostics enabled", "host", cfg.Database.Host, "database", cfg.Database.Name)
	}

	return sinks, nil
}

func databaseConfig(c config.DatabaseConfig) database.Config {
	return database.Config{
		Host:        c.Host,
		Port:        c.Port,
		User:        c.User,
		Password:    c.Password,
		Database:    c.Name,
		MaxConns:    c.MaxConns,
		MinConns:    c.MinConns,
		MaxConnLife: c.MaxConnLife,
		MaxConnIdle: c.MaxConnIdle,
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*events.Publisher, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("search events enabled", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	return events.NewPublisher(client, cfg.Redis.Stream, logger), nil
}
