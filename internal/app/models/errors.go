package models

import "errors"

// Domain specific errors for place resolution, storage and request handling.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")

	// ErrResolutionNotFound means the places provider has no venue for the input.
	ErrResolutionNotFound = errors.New("could not find this place")
	// ErrProviderUnavailable covers timeouts and 5xx answers from an external capability.
	ErrProviderUnavailable = errors.New("external provider unavailable")
	// ErrStorageConflict is the unique (user_id, external_id) violation raised by a concurrent insert.
	ErrStorageConflict = errors.New("place already stored for this user")
	ErrStorageFailure  = errors.New("failed to persist place")
)
