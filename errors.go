package docdex

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound is returned by stores when a requested id does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmbed reports an embedding provider failure.
type ErrEmbed struct {
	Provider string
	Message  string
}

func (e *ErrEmbed) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from a provider's HTTP API.
// RetryAfter carries the parsed Retry-After header, when present.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value, accepting either a
// delay in seconds or an HTTP-date. Returns 0 when the value is empty,
// unparseable, or in the past.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ModelMismatchError is a configuration error: the embedding model a reader
// was constructed with does not match the model recorded at build time.
// It is raised at construction, never mid-query.
type ModelMismatchError struct {
	IndexModel  string
	CallerModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("embedding model mismatch: index built with %q, caller uses %q", e.IndexModel, e.CallerModel)
}
