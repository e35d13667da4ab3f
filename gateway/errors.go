package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// WriteError reports a failed remote mutation. Status is the HTTP status when
// the service answered, 0 for transport failures.
type WriteError struct {
	Op     string
	Status int
	Err    error
}

func (e *WriteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NotFound reports whether the service answered 404.
func (e *WriteError) NotFound() bool { return e.Status == http.StatusNotFound }

// SubscriptionError reports that a realtime channel could not be established.
type SubscriptionError struct {
	Collection domain.Collection
	ParentID   string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s/%s: %v", e.Collection, e.ParentID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// IsWriteError reports whether err wraps a *WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
