package repository

import (
	"context"
	"time"
)

// Locker guards a batch run so only one runner drives the pending set.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
