package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "clinic:reminder:sweep"

// SweepLock serializes reminder sweeps across worker replicas with a Redis
// SETNX lease. The sweep is idempotent either way; the lock only keeps
// overlapping runs from doing the same ledger reads twice.
type SweepLock struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

// NewSweepLock creates a lock with the given lease duration.
func NewSweepLock(client *redis.Client, ttl time.Duration) *SweepLock {
	if client == nil {
		panic("notification: redis client required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SweepLock{client: client, ttl: ttl, token: uuid.NewString()}
}

// TryAcquire takes the lease, reporting false when another replica holds it.
func (l *SweepLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, sweepLockKey, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("notification: acquire sweep lock: %w", err)
	}
	return ok, nil
}

// Release drops the lease if this instance still holds it.
func (l *SweepLock) Release(ctx context.Context) {
	current, err := l.client.Get(ctx, sweepLockKey).Result()
	if err != nil || current != l.token {
		return
	}
	l.client.Del(ctx, sweepLockKey)
}
