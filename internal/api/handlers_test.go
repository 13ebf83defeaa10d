package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/amazon-search-scraper/internal/fetcher"
	"github.com/maltedev/amazon-search-scraper/internal/parser"
	"github.com/maltedev/amazon-search-scraper/internal/ratelimit"
	"github.com/maltedev/amazon-search-scraper/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls int
	urls  []string
	body  string
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls++
	f.urls = append(f.urls, url)
	return f.body, f.err
}

const page = `<html><head><title>Amazon.com : mouse</title></head><body>
<div data-component-type="s-search-result">
	<img class="s-image" src="https://m.media-amazon.com/images/I/mouse.jpg">
	<h2 class="a-text-normal"><span>Wireless Mouse</span></h2>
	<span class="a-icon-alt">4.6 out of 5 stars</span>
	<a class="s-underline-link-text"><span class="a-size-base">12,345</span></a>
</div>
</body></html>`

func newTestRouter(t *testing.T, f fetcher.Fetcher, opts RouterOptions) http.Handler {
	t.Helper()
	svc, err := scraper.NewService(scraper.Deps{
		Fetcher: f,
		Parser:  parser.NewSearchExtractor("https://www.amazon.com", nil),
		BaseURL: "https://www.amazon.com",
	})
	require.NoError(t, err)
	return NewRouter(NewHandlers(svc, slog.Default()), opts)
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScrapeMissingKeyword(t *testing.T) {
	f := &countingFetcher{body: page}
	router := newTestRouter(t, f, RouterOptions{})

	for _, target := range []string{"/api/scrape", "/api/scrape?keyword=", "/api/scrape?keyword=%20%20"} {
		rec := get(router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.JSONEq(t, `{"error":"Keyword is required."}`, rec.Body.String())
	}
	assert.Zero(t, f.calls, "no outbound call for invalid input")
}

func TestScrapeReturnsProductList(t *testing.T) {
	f := &countingFetcher{body: page}
	router := newTestRouter(t, f, RouterOptions{})

	rec := get(router, "/api/scrape?keyword=wireless+mouse")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "results", rec.Header().Get(outcomeHeader))
	assert.Equal(t, []string{"https://www.amazon.com/s?k=wireless+mouse"}, f.urls)

	assert.JSONEq(t, `[{
		"title": "Wireless Mouse",
		"rating": "4.6",
		"reviews": 12345,
		"imageUrl": "https://m.media-amazon.com/images/I/mouse.jpg"
	}]`, rec.Body.String())
}

func TestScrapeBlockedPageIsEmptySuccess(t *testing.T) {
	f := &countingFetcher{body: `<html><head><title>Sorry! Something went wrong on our end</title></head></html>`}
	router := newTestRouter(t, f, RouterOptions{})

	rec := get(router, "/api/scrape?keyword=mouse")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "blocked", rec.Header().Get(outcomeHeader))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestScrapeTransportFailure(t *testing.T) {
	f := &countingFetcher{err: &fetcher.TransportError{URL: "u", StatusCode: 503, Body: "busy"}}
	router := newTestRouter(t, f, RouterOptions{})

	rec := get(router, "/api/scrape?keyword=mouse")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to scrape Amazon data."}`, rec.Body.String())
}

func TestSearchEnvelope(t *testing.T) {
	f := &countingFetcher{body: `<html><head><title>Robot Check</title></head></html>`}
	router := newTestRouter(t, f, RouterOptions{})

	rec := get(router, "/api/v1/search?keyword=mouse")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "blocked", resp.Status)
	assert.NotEmpty(t, resp.Reason)
	assert.NotNil(t, resp.Products)
	assert.Empty(t, resp.Products)
}

func TestRateLimitRejectsExcess(t *testing.T) {
	f := &countingFetcher{body: page}
	router := newTestRouter(t, f, RouterOptions{Limiter: ratelimit.NewKeyedLimiter(0.001, 1, time.Hour)})

	assert.Equal(t, http.StatusOK, get(router, "/api/scrape?keyword=mouse").Code)

	rec := get(router, "/api/scrape?keyword=mouse")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, f.calls)

	assert.Equal(t, http.StatusOK, get(router, "/health").Code, "health is not rate limited")
}

func getFrom(h http.Handler, target, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	f := &countingFetcher{body: page}
	router := newTestRouter(t, f, RouterOptions{Limiter: ratelimit.NewKeyedLimiter(0.001, 1, time.Hour)})

	assert.Equal(t, http.StatusOK, getFrom(router, "/api/scrape?keyword=mouse", "203.0.113.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, getFrom(router, "/api/scrape?keyword=mouse", "203.0.113.2").Code)
	assert.Equal(t, 1, f.calls)
}

func TestRateLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	f := &countingFetcher{body: page}
	router := newTestRouter(t, f, RouterOptions{
		Limiter:    ratelimit.NewKeyedLimiter(0.001, 1, time.Hour),
		TrustProxy: true,
	})

	assert.Equal(t, http.StatusOK, getFrom(router, "/api/scrape?keyword=mouse", "203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, getFrom(router, "/api/scrape?keyword=mouse", "203.0.113.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, getFrom(router, "/api/scrape?keyword=mouse", "203.0.113.1").Code)
	assert.Equal(t, 2, f.calls)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("scraper_searches_total 1\n"))
	})
	router := newTestRouter(t, &countingFetcher{}, RouterOptions{Metrics: metrics})

	rec := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scraper_searches_total")

	router = newTestRouter(t, &countingFetcher{}, RouterOptions{})
	assert.Equal(t, http.StatusNotFound, get(router, "/metrics").Code)
}
