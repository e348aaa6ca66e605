package out

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunLocker serializes processing runs per user across instances.
type RunLocker interface {
	// Acquire takes the user's run lock for at most ttl. It returns false
	// without error when another run holds the lock.
	Acquire(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error)

	// Release frees the lock early. Safe to call after expiry.
	Release(ctx context.Context, userID uuid.UUID) error
}
