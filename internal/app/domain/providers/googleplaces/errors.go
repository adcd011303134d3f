package googleplaces

import (
	"errors"
	"fmt"
)

// Sentinel errors for Places API operations.
var (
	// ErrNotFound means the provider does not know the requested place id.
	ErrNotFound = errors.New("googleplaces: not found")
	// ErrUnavailable covers timeouts, quota errors, 5xx answers and an open breaker.
	ErrUnavailable = errors.New("googleplaces: provider unavailable")
	ErrMissingKey  = errors.New("googleplaces: api key not configured")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op     string // "textsearch" or "details"
	Status string // provider status field, if any
	Err    error
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("googleplaces %s [%s]: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("googleplaces %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, status string, err error) error {
	return &Error{Op: op, Status: status, Err: err}
}
