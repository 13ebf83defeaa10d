package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-search-scraper/internal/diagnostics"
	"github.com/maltedev/amazon-search-scraper/internal/events"
	"github.com/maltedev/amazon-search-scraper/internal/fetcher"
	"github.com/maltedev/amazon-search-scraper/internal/metrics"
	"github.com/maltedev/amazon-search-scraper/internal/models"
	"github.com/maltedev/amazon-search-scraper/internal/parser"
)

const sideEffectTimeout = 10 * time.Second

// Deps are the collaborators of a Service. Diagnostics, Publisher and
// Metrics are optional.
type Deps struct {
	Fetcher     fetcher.Fetcher
	Parser      parser.Parser
	BaseURL     string
	Diagnostics diagnostics.Sink
	Publisher   SearchPublisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Service runs the fetch-and-extract pipeline for one keyword at a time.
// It holds no per-search state, so concurrent calls are independent.
type Service struct {
	fetcher     fetcher.Fetcher
	parser      parser.Parser
	base        *url.URL
	diagnostics diagnostics.Sink
	publisher   SearchPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewService(deps Deps) (*Service, error) {
	base, err := url.Parse(deps.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBase, deps.BaseURL)
	}
	if deps.Fetcher == nil || deps.Parser == nil {
		return nil, errors.New("fetcher and parser are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		fetcher:     deps.Fetcher,
		parser:      deps.Parser,
		base:        base,
		diagnostics: deps.Diagnostics,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      logger.With("component", "search_service"),
	}, nil
}

// SearchURL builds the search page URL for keyword.
func (s *Service) SearchURL(keyword string) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", ErrEmptyKeyword
	}

	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + "/s"
	u.RawQuery = url.Values{"k": {keyword}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Search fetches the results page for keyword and extracts its products.
// A blocked page is not an error: it yields an outcome with Class Blocked
// and no products.
func (s *Service) Search(ctx context.Context, keyword string) (*models.SearchOutcome, error) {
	searchURL, err := s.SearchURL(keyword)
	if err != nil {
		s.metrics.ObserveSearch("invalid")
		return nil, err
	}

	s.logger.Info("scraping search results", "url", searchURL)

	start := time.Now()
	html, err := s.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		s.metrics.ObserveFetch("error", time.Since(start))
		s.metrics.ObserveSearch("transport_error")
		s.handleFetchError(ctx, err)
		return nil, fmt.Errorf("failed to fetch search page: %w", err)
	}
	s.metrics.ObserveFetch("ok", time.Since(start))

	outcome := s.parser.Extract(html)

	s.metrics.ObserveSearch(outcome.Status())
	s.metrics.ObserveExtraction(len(outcome.Products), outcome.Discarded)

	s.logger.Info("parsed search results",
		"keyword", strings.TrimSpace(keyword),
		"status", outcome.Status(),
		"products", len(outcome.Products),
		"discarded", outcome.Discarded,
	)

	s.publish(ctx, strings.TrimSpace(keyword), searchURL, outcome)

	return outcome, nil
}

func (s *Service) handleFetchError(ctx context.Context, err error) {
	var te *fetcher.TransportError
	if !errors.As(err, &te) {
		s.logger.Error("fetch failed", "error", err)
		return
	}

	s.logger.Error("upstream request failed", "url", te.URL, "status", te.StatusCode, "error", err)

	if !te.HasResponse() || s.diagnostics == nil {
		return
	}

	report := diagnostics.Report{
		ID:         uuid.New().String(),
		URL:        te.URL,
		StatusCode: te.StatusCode,
		Body:       te.Body,
		CapturedAt: time.Now(),
	}

	// The capture outlives a cancelled request.
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	capErr := s.diagnostics.Capture(captureCtx, report)
	s.metrics.ObserveDiagnostics(capErr)
	if capErr != nil {
		s.logger.Warn("failed to capture error page", "capture_id", report.ID, "error", capErr)
		return
	}
	s.logger.Info("error page captured", "capture_id", report.ID, "status", report.StatusCode)
}

func (s *Service) publish(ctx context.Context, keyword, searchURL string, outcome *models.SearchOutcome) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	err := s.publisher.PublishSearchCompleted(pubCtx, &events.SearchCompletedPayload{
		Keyword:      keyword,
		URL:          searchURL,
		Status:       outcome.Status(),
		Reason:       outcome.Reason,
		ProductCount: len(outcome.Products),
		ItemsSeen:    outcome.ItemsSeen,
		Discarded:    outcome.Discarded,
	})
	if err != nil {
		s.logger.Warn("failed to publish search event", "error", err)
	}
}
