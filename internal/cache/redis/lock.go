package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// releaseLua deletes the lock only while it still carries the caller's token,
// so an expired holder cannot release somebody else's lock.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX and a scripted
// conditional release. The rating rebuild uses it so only one process folds
// the match log at a time.
type LockManager struct {
	c       *Client
	release *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c, release: redis.NewScript(releaseLua)}
}

// Acquire takes the lock named key for at most ttl. The returned unlock func
// may be called any number of times. A lock held elsewhere yields
// domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be done by the time it unlocks.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.release.Run(rctx, lm.c.rdb, []string{lk}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
