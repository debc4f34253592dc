package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another process")

// unlockScript deletes the key only while it still holds our token.
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RunLock keeps two live loops from driving the same run name.
type RunLock struct {
	client *Client
	script *redis.Script
}

func NewRunLock(c *Client) *RunLock {
	return &RunLock{client: c, script: redis.NewScript(unlockScript)}
}

// Acquire returns an idempotent release func, or ErrLockHeld.
func (l *RunLock) Acquire(ctx context.Context, runName string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	key := l.client.key("lock", runName)

	ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", runName, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, runName)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.script.Run(unlockCtx, l.client.rdb, []string{key}, token).Err()
	}, nil
}
