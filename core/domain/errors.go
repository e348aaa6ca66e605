package domain

import "errors"

// Sentinel errors surfaced by repository implementations. They live in the
// domain so services can test for them without importing an adapter package.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
