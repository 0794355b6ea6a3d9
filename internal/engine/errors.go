package engine

import "errors"

// Operation errors. Callers match these with errors.Is; the source
// boundary maps them onto its own error surface.
var (
	// ErrValidation reports a malformed inbound payload. Nothing is
	// admitted and no state changes.
	ErrValidation = errors.New("invalid notification payload")

	// ErrInvalidAction reports an action key the record never offered.
	// The record stays on the stack untouched.
	ErrInvalidAction = errors.New("action not offered by notification")

	// ErrNotFound reports an id with no active record behind it.
	ErrNotFound = errors.New("notification not found")

	// ErrStopped is returned when the engine loop has shut down.
	ErrStopped = errors.New("presentation engine is stopped")
)
