package repository

import "errors"

var (
	// ErrNotFound is returned when a row for a known id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a conditional status update
	// matched no row because the job was not in an eligible state.
	ErrInvalidTransition = errors.New("invalid status transition")
)
