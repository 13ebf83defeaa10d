package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/maltedev/amazon-search-scraper/internal/diagnostics"
	"github.com/maltedev/amazon-search-scraper/internal/events"
	"github.com/maltedev/amazon-search-scraper/internal/fetcher"
	"github.com/maltedev/amazon-search-scraper/internal/models"
	"github.com/maltedev/amazon-search-scraper/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu   sync.Mutex
	urls []string
	body string
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return f.body, f.err
}

type recordingSink struct {
	reports []diagnostics.Report
	err     error
}

func (r *recordingSink) Capture(_ context.Context, report diagnostics.Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishSearchCompleted(ctx context.Context, payload *events.SearchCompletedPayload) error {
	return m.Called(ctx, payload).Error(0)
}

const resultsPage = `<html><head><title>Amazon.com : usb c cable</title></head><body>
<div data-component-type="s-search-result">
	<img class="s-image" src="https://m.media-amazon.com/images/I/cable.jpg">
	<h2 class="a-text-normal"><span>USB-C Cable</span></h2>
	<a class="s-underline-link-text"><span class="a-size-base">1,234</span></a>
</div>
<div data-component-type="s-search-result">
	<img class="s-image" src="data:image/gif;base64,R0lGODlhAQABAAAAACw=">
	<h2 class="a-text-normal"><span>Placeholder</span></h2>
</div>
</body></html>`

func newTestService(t *testing.T, f fetcher.Fetcher, deps Deps) *Service {
	t.Helper()
	deps.Fetcher = f
	if deps.Parser == nil {
		deps.Parser = parser.NewSearchExtractor("https://www.amazon.com", nil)
	}
	if deps.BaseURL == "" {
		deps.BaseURL = "https://www.amazon.com"
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	return svc
}

func TestSearchURL(t *testing.T) {
	svc := newTestService(t, &stubFetcher{}, Deps{})

	tests := []struct {
		keyword  string
		expected string
	}{
		{"wireless mouse", "https://www.amazon.com/s?k=wireless+mouse"},
		{"  laptop  ", "https://www.amazon.com/s?k=laptop"},
		{"a&b=c", "https://www.amazon.com/s?k=a%26b%3Dc"},
		{"café", "https://www.amazon.com/s?k=caf%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			got, err := svc.SearchURL(tt.keyword)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSearchURLWithBasePath(t *testing.T) {
	svc := newTestService(t, &stubFetcher{}, Deps{BaseURL: "http://localhost:9000/mirror/"})

	got, err := svc.SearchURL("desk")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/mirror/s?k=desk", got)
}

func TestSearchFetchesExactURL(t *testing.T) {
	f := &stubFetcher{body: resultsPage}
	pub := new(MockPublisher)
	pub.On("PublishSearchCompleted", mock.Anything, mock.MatchedBy(func(p *events.SearchCompletedPayload) bool {
		return p.Keyword == "wireless mouse" && p.Status == "results" && p.ProductCount == 1 && p.Discarded == 1
	})).Return(nil).Once()

	svc := newTestService(t, f, Deps{Publisher: pub})

	outcome, err := svc.Search(context.Background(), "wireless mouse")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.amazon.com/s?k=wireless+mouse"}, f.urls)

	require.Len(t, outcome.Products, 1)
	assert.Equal(t, models.ProductRecord{
		Title:    "USB-C Cable",
		Rating:   models.RatingUnknown,
		Reviews:  1234,
		ImageURL: "https://m.media-amazon.com/images/I/cable.jpg",
	}, outcome.Products[0])
	pub.AssertExpectations(t)
}

func TestSearchEmptyKeywordSkipsFetch(t *testing.T) {
	f := &stubFetcher{body: resultsPage}
	svc := newTestService(t, f, Deps{})

	for _, kw := range []string{"", "   ", "\t\n"} {
		outcome, err := svc.Search(context.Background(), kw)
		assert.ErrorIs(t, err, ErrEmptyKeyword)
		assert.Nil(t, outcome)
	}
	assert.Empty(t, f.urls)
}

func TestSearchBlockedPageIsNotAnError(t *testing.T) {
	f := &stubFetcher{body: `<html><head><title>Sorry! Something went wrong on our end</title></head><body></body></html>`}
	svc := newTestService(t, f, Deps{})

	outcome, err := svc.Search(context.Background(), "mouse")
	require.NoError(t, err)
	assert.Equal(t, models.Blocked, outcome.Class)
	assert.Empty(t, outcome.Products)
}

func TestSearchTransportErrorCapturesDiagnostics(t *testing.T) {
	f := &stubFetcher{err: &fetcher.TransportError{
		URL:        "https://www.amazon.com/s?k=mouse",
		StatusCode: 503,
		Body:       "<html>Service Unavailable</html>",
	}}
	sink := &recordingSink{}
	pub := new(MockPublisher)
	svc := newTestService(t, f, Deps{Diagnostics: sink, Publisher: pub})

	outcome, err := svc.Search(context.Background(), "mouse")
	assert.Nil(t, outcome)

	var te *fetcher.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 503, te.StatusCode)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, 503, sink.reports[0].StatusCode)
	assert.Equal(t, "<html>Service Unavailable</html>", sink.reports[0].Body)
	assert.NotEmpty(t, sink.reports[0].ID)
	pub.AssertNotCalled(t, "PublishSearchCompleted", mock.Anything, mock.Anything)
}

func TestSearchNetworkErrorSkipsDiagnostics(t *testing.T) {
	f := &stubFetcher{err: &fetcher.TransportError{URL: "https://www.amazon.com/s?k=mouse", Err: errors.New("dial tcp: connection refused")}}
	sink := &recordingSink{}
	svc := newTestService(t, f, Deps{Diagnostics: sink})

	_, err := svc.Search(context.Background(), "mouse")
	assert.Error(t, err)
	assert.Empty(t, sink.reports)
}

func TestSearchSideEffectFailuresAreSwallowed(t *testing.T) {
	f := &stubFetcher{err: &fetcher.TransportError{StatusCode: 500, Body: "x"}}
	sink := &recordingSink{err: errors.New("disk full")}
	svc := newTestService(t, f, Deps{Diagnostics: sink})

	_, err := svc.Search(context.Background(), "mouse")
	var te *fetcher.TransportError
	assert.True(t, errors.As(err, &te), "capture failure must not replace the transport error")

	pub := new(MockPublisher)
	pub.On("PublishSearchCompleted", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
	svc = newTestService(t, &stubFetcher{body: resultsPage}, Deps{Publisher: pub})

	outcome, err := svc.Search(context.Background(), "mouse")
	require.NoError(t, err)
	assert.Len(t, outcome.Products, 1)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Deps{Fetcher: &stubFetcher{}, Parser: parser.NewSearchExtractor("", nil), BaseURL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidBase)

	_, err = NewService(Deps{BaseURL: "https://www.amazon.com"})
	assert.Error(t, err)
}

func TestConcurrentSearchesAreIndependent(t *testing.T) {
	f := &stubFetcher{body: resultsPage}
	svc := newTestService(t, f, Deps{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.Search(context.Background(), "cable")
			assert.NoError(t, err)
			assert.Len(t, outcome.Products, 1)
		}()
	}
	wg.Wait()
	assert.Len(t, f.urls, 8)
}
