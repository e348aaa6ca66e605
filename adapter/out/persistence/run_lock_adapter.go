package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mailpilot/core/port/out"
)

// runLockKey is the Redis key prefix guarding one processing run per user.
const runLockKey = "process:lock:"

// RedisRunLocker implements out.RunLocker with Redis SET NX. The TTL bounds
// how long a crashed run can hold its lock.
type RedisRunLocker struct {
	client *redis.Client
}

// NewRedisRunLocker creates a new RedisRunLocker.
func NewRedisRunLocker(client *redis.Client) *RedisRunLocker {
	return &RedisRunLocker{client: client}
}

// Acquire takes the user's run lock. Returns false when another run holds it.
func (l *RedisRunLocker) Acquire(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, runLockKey+userID.String(), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

// Release drops the user's run lock. Missing keys are not an error.
func (l *RedisRunLocker) Release(ctx context.Context, userID uuid.UUID) error {
	if err := l.client.Del(ctx, runLockKey+userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

var _ out.RunLocker = (*RedisRunLocker)(nil)
