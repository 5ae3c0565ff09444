package ripple

import (
	"errors"
	"fmt"
)

// Configuration errors returned by Configure and by bindings resolution.
var (
	// ErrMalformedCallback is returned when a declaration is neither a
	// handler function nor a Callback with a handler.
	ErrMalformedCallback = errors.New("malformed callback declaration")

	// ErrEmptyGroup is returned when a group declares no fields.
	ErrEmptyGroup = errors.New("group declares no fields")

	// ErrInvalidField is returned for empty or unusable field names.
	ErrInvalidField = errors.New("invalid field name")

	// ErrUnknownHandler is returned when bindings name a handler missing
	// from the catalog.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrUnknownValidator is returned when bindings name a validator missing
	// from the catalog.
	ErrUnknownValidator = errors.New("unknown validator")
)

// HandlerError wraps an error returned by a handler during a cycle.
type HandlerError struct {
	// Group is the key of the first triggered group that reached the handler.
	Group GroupKey
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for group [%s] failed: %v", e.Group, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
