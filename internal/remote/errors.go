package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the remote API.
type StatusError struct {
	Op   string
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.Path, e.Code)
}

// ErrRateLimited indicates the server kept answering 429 after all retries.
type ErrRateLimited struct {
	RetryAfter int
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited (retry after %d seconds)", e.RetryAfter)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsGone reports whether err says the resource no longer exists remotely.
func IsGone(err error) bool {
	code := StatusCode(err)
	return code == http.StatusNotFound || code == http.StatusGone
}
