package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/maltedev/amazon-search-scraper/internal/app"
	"github.com/maltedev/amazon-search-scraper/internal/config"
	"github.com/maltedev/amazon-search-scraper/internal/logging"
	"github.com/maltedev/amazon-search-scraper/internal/models"
)

func main() {
	var (
		keyword    = flag.String("keyword", "", "Search keyword")
		outputFile = flag.String("output", "", "Output CSV file (optional, JSON to stdout otherwise)")
		timeout    = flag.Duration("timeout", 60*time.Second, "Overall deadline for the search")
	)
	flag.Parse()

	if *keyword == "" {
		fmt.Fprintln(os.Stderr, "Please provide a search keyword with -keyword")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays parseable.
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, logger, *keyword, *outputFile, *timeout); err != nil {
		logger.Error("search failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, keyword, outputFile string, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize search service: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	outcome, err := a.Service.Search(ctx, keyword)
	if err != nil {
		return err
	}

	if outcome.Class == models.Blocked {
		logger.Warn("search page was blocked", "reason", outcome.Reason)
	}

	if outputFile != "" {
		if err := writeCSV(outputFile, outcome.Products); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		logger.Info("results written", "file", outputFile, "products", len(outcome.Products))
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome.Products); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

func writeCSV(path string, products []models.ProductRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"title", "rating", "reviews", "image_url"}); err != nil {
		return err
	}
	for _, p := range products {
		if err := w.Write([]string{p.Title, p.Rating, strconv.Itoa(p.Reviews), p.ImageURL}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}
