package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithCalendarLockReleasesKey(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisCalendarLocker(client, LockOptions{TTL: time.Second})
	professionalID := uuid.New()

	called := false
	err := locker.WithCalendarLock(context.Background(), professionalID, func(ctx context.Context) error {
		called = true
		assert.True(t, mr.Exists(lockKey(professionalID)), "lock key should exist inside the section")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, mr.Exists(lockKey(professionalID)), "lock key should be released")
}

func TestWithCalendarLockFailsFastWhenHeld(t *testing.T) {
	mr, client := newTestClient(t)
	professionalID := uuid.New()
	require.NoError(t, mr.Set(lockKey(professionalID), "someone-else"))

	locker := NewRedisCalendarLocker(client, LockOptions{TTL: time.Second})
	err := locker.WithCalendarLock(context.Background(), professionalID, func(ctx context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	got, _ := mr.Get(lockKey(professionalID))
	assert.Equal(t, "someone-else", got, "foreign lock must not be released")
}

func TestWithCalendarLockWaitsForRelease(t *testing.T) {
	mr, client := newTestClient(t)
	professionalID := uuid.New()
	require.NoError(t, mr.Set(lockKey(professionalID), "someone-else"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del(lockKey(professionalID))
	}()

	locker := NewRedisCalendarLocker(client, LockOptions{
		TTL:           time.Second,
		Wait:          2 * time.Second,
		RetryInterval: 10 * time.Millisecond,
	})
	err := locker.WithCalendarLock(context.Background(), professionalID, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithCalendarLockSerializesSections(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisCalendarLocker(client, LockOptions{
		TTL:           2 * time.Second,
		Wait:          2 * time.Second,
		RetryInterval: 5 * time.Millisecond,
	})
	professionalID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithCalendarLock(context.Background(), professionalID, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestWithCalendarLockPropagatesSectionError(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisCalendarLocker(client, LockOptions{TTL: time.Second})
	professionalID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithCalendarLock(context.Background(), professionalID, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(lockKey(professionalID)))
}
