package fetcher

import (
	"fmt"
)

// TransportError is returned when the upstream answers with a non-success
// status or cannot be reached at all. StatusCode is 0 for network failures.
type TransportError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream returned HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the upstream produced a response whose body is
// worth keeping for diagnosis.
func (e *TransportError) HasResponse() bool {
	return e.StatusCode != 0
}
