package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/amazon-search-scraper/internal/events"
)

var (
	// ErrEmptyKeyword is returned before any network call when the search
	// keyword is missing or blank.
	ErrEmptyKeyword = errors.New("keyword is required")
	ErrInvalidBase  = errors.New("invalid search base URL")
)

// SearchPublisher announces completed searches.
type SearchPublisher interface {
	PublishSearchCompleted(ctx context.Context, payload *events.SearchCompletedPayload) error
}
