package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AccountLockKey builds redis keys for per-account critical sections.
func AccountLockKey(accountID int64) string {
	return fmt.Sprintf("ledger:account:%d:lock", accountID)
}

// AccountLocker serializes balance-mutating operations on a single account.
// Batch accrual holds the lock one account at a time, never across the whole
// batch, so a slow account cannot block the rest.
type AccountLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAccountLocker constructs a locker. The TTL bounds how long a crashed
// holder can keep an account locked.
func NewAccountLocker(client *redis.Client, ttl time.Duration) *AccountLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AccountLocker{client: client, ttl: ttl}
}

// WithLock runs fn while holding the account lock. Returns ErrLockHeld when
// the lock is already taken. A nil locker degrades to running fn directly,
// which keeps services testable without redis.
func (l *AccountLocker) WithLock(ctx context.Context, accountID int64, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return fn(ctx)
	}
	key := AccountLockKey(accountID)
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return fmt.Errorf("shared: acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockHeld
	}
	defer l.client.Del(context.WithoutCancel(ctx), key)
	return fn(ctx)
}
