package history

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrHistoryNotTracked is returned when the backend has no change history
// for a resource, which the API surfaces differently from a fetch failure.
var ErrHistoryNotTracked = errors.New("history: history tracking not enabled for this resource") //nolint:gochecknoglobals // sentinel error

// BackendError is a non-2xx response from the change-history backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("history: backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("history: backend returned %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether retrying the request could reasonably succeed.
func (e *BackendError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
