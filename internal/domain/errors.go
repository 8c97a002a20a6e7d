package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced user or activity does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned for self-follows, blank comments, negative
	// durations and similar rejected input.
	ErrInvalidOperation = errors.New("invalid operation")
)
