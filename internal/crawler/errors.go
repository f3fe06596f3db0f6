package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidInput is returned when a request is rejected before any I/O.
var ErrInvalidInput = errors.New("invalid input")

// TransportError reports a failed fetch: timeout, connection failure, or a
// non-2xx response (StatusCode is zero when no response arrived).
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("GET %s: request failed", e.URL)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError wraps a transport failure for the synchronous search contract.
// Its message is meant for direct display.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	var te *TransportError
	if errors.As(e.Err, &te) {
		if te.StatusCode != 0 {
			return fmt.Sprintf("catalog search failed: upstream returned %d %s", te.StatusCode, http.StatusText(te.StatusCode))
		}
	}
	return fmt.Sprintf("catalog search failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
