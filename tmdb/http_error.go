package tmdb

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no media database credentials are set.
// callers surface it as "lookup unavailable", distinct from an empty search.
var ErrNotConfigured = errors.New("media database client is not configured")

// StatusError is a non-2xx response from the media database.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e == nil {
		return "media database status error"
	}
	return fmt.Sprintf("media database HTTP %d for %s", e.StatusCode, e.Path)
}
