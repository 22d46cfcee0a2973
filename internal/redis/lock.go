package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("calendar lock not acquired")
)

// Locker serializes writers on one professional's calendar across api-server replicas.
type Locker interface {
	WithCalendarLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error
}

type LockOptions struct {
	TTL           time.Duration // lifetime of the key, bounds the critical section
	Wait          time.Duration // how long to keep retrying a busy lock; 0 fails fast
	RetryInterval time.Duration
}

type redisCalendarLocker struct {
	client *redis.Client
	opts   LockOptions
}

// NewRedisCalendarLocker creates a locker that uses a per professional Redis key
func NewRedisCalendarLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &redisCalendarLocker{
		client: client,
		opts:   opts,
	}
}

func lockKey(professionalID uuid.UUID) string {
	return fmt.Sprintf("lock:calendar:%s", professionalID.String())
}

func (l *redisCalendarLocker) WithCalendarLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(professionalID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release must still run when the caller's context was cancelled mid-section
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisCalendarLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.opts.Wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire calendar lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		timer := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("acquire calendar lock: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisCalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}
