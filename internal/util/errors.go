package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a record with the same unique key already exists
	ErrDuplicate = errors.New("already exists")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedResponse indicates an upstream response lacked expected data
	ErrMalformedResponse = errors.New("malformed response")
)
