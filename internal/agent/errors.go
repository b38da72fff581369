package agent

import "errors"

var (
	ErrNotFound         = errors.New("agent: not found")
	ErrAlreadyExists    = errors.New("agent: already exists")
	ErrInvalidInput     = errors.New("agent: invalid input")
	ErrPermissionDenied = errors.New("agent: permission denied")

	// ErrHierarchyCycle reports a malformed parent graph. It is a
	// data-integrity fault, not a recoverable request error.
	ErrHierarchyCycle = errors.New("agent: group hierarchy cycle detected")
)
