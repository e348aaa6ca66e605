package persistence

import "mailpilot/core/domain"

// Aliases of the domain sentinels so adapter code can stay terse.
var (
	ErrNotFound  = domain.ErrNotFound
	ErrDuplicate = domain.ErrDuplicate
)
