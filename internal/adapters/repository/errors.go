package repository

import "errors"

// Sentinel kinds for event store errors.
var (
	ErrStorage      = errors.New("event store unavailable")
	ErrInvalidLimit = errors.New("invalid top-resources limit")
)
