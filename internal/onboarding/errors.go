package onboarding

import "errors"

// Sentinel errors surfaced to the handler boundary, where they are mapped to
// HTTP status codes.
var (
	// ErrNotFound means no record matched the given id or token.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition means the requested event is not legal from the
	// session's current status. The session is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrActiveSessionExists means the employee already has an unexpired
	// in_progress session and supersede was not requested.
	ErrActiveSessionExists = errors.New("employee already has an active onboarding session")

	// ErrStaleSession means a form-data write carried a form version that no
	// longer matches the stored row; the caller must re-read and retry.
	ErrStaleSession = errors.New("session was modified concurrently")

	// ErrValidation covers malformed or missing input detected before any
	// state is mutated.
	ErrValidation = errors.New("validation failed")
)
