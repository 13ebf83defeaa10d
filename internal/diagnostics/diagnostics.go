// Package diagnostics keeps the last upstream error page for offline
// inspection. Captures are best effort and never change what a caller of the
// scraper sees.
package diagnostics

import (
	"context"
	"errors"
	"time"
)

// DefaultName is the fixed slot each capture overwrites.
const DefaultName = "amazon_error_response"

// Report is an upstream failure worth keeping.
type Report struct {
	ID         string
	URL        string
	StatusCode int
	Body       string
	CapturedAt time.Time
}

type Sink interface {
	Capture(ctx context.Context, report Report) error
}

// MultiSink captures into every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Capture(ctx context.Context, report Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Capture(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
