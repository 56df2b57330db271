package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the upstream catalog has no entity with the requested id.
var ErrNotFound = errors.New("catalog entity not found")

// StatusError reports a non-success upstream response other than a lookup 404.
// Callers surface it as a transient failure; nothing retries it.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("catalog %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
