package tdoa

import "errors"

// Sentinel precondition errors. Wrapped inside PreconditionError so callers
// can match with errors.Is while still getting a human-readable message.
var (
	ErrEmptyAnchorSet        = errors.New("anchor set is empty")
	ErrInvalidTimeDifference = errors.New("time difference must be finite and non-negative")
	ErrInvalidPosition       = errors.New("anchor position must be finite")
)
