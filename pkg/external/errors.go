package external

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested release or file does not exist.
var ErrNotFound = errors.New("not found")

// ErrTooLarge indicates a download exceeded the size limit.
var ErrTooLarge = errors.New("download too large")

// RateLimitError indicates GitHub refused the request because the caller ran
// out of API quota. Setting GITHUB_TOKEN raises the limit.
type RateLimitError struct {
	// RetryAfter is when the limit resets, from X-RateLimit-Reset.
	RetryAfter time.Time
	Limit      int
	Remaining  int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter.IsZero() {
		return fmt.Sprintf("github rate limit exceeded (%d/%d): %s", e.Remaining, e.Limit, e.Message)
	}
	wait := time.Until(e.RetryAfter)
	if wait < 0 {
		wait = 0
	}
	return fmt.Sprintf("github rate limit exceeded (%d/%d), retry after %v: %s",
		e.Remaining, e.Limit, wait.Round(time.Minute), e.Message)
}

// NetworkError is a transport failure or a server-side HTTP error.
type NetworkError struct {
	URL     string
	Wrapped error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Wrapped)
}

func (e *NetworkError) Unwrap() error {
	return e.Wrapped
}

// ParseError indicates an API response could not be decoded.
type ParseError struct {
	Message string
	Wrapped error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Message, e.Wrapped)
}

func (e *ParseError) Unwrap() error {
	return e.Wrapped
}

// FetchError ties a failure to the dependency that caused it.
type FetchError struct {
	Dependency string
	Wrapped    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to process dependency '%s': %v", e.Dependency, e.Wrapped)
}

func (e *FetchError) Unwrap() error {
	return e.Wrapped
}
