package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Fetcher retrieves a page and returns its body as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher issues a single GET per call with a browser header profile.
// No timeout, redirect or retry policy is layered on top of the client;
// callers bound the call through ctx.
type HTTPFetcher struct {
	client  *http.Client
	profile BrowserProfile
	logger  *slog.Logger
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client, profile BrowserProfile, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:  client,
		profile: profile,
		logger:  logger.With("component", "http_fetcher"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	f.profile.Apply(req)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := readBody(resp)

	f.logger.Debug("fetched page",
		"url", url,
		"status", resp.StatusCode,
		"encoding", resp.Header.Get("Content-Encoding"),
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{URL: url, StatusCode: resp.StatusCode, Body: body, Err: readErr}
	}
	if readErr != nil {
		return "", &TransportError{URL: url, Err: readErr}
	}

	return body, nil
}
