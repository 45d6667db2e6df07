package shared

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	locker := NewKeyedMutex()
	var inside atomic.Int32
	var overlap atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "a@x.com")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "two holders inside the same key")
	assert.Equal(t, 0, locker.Len())
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	locker := NewKeyedMutex()
	unlockA, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	locker := NewKeyedMutex()
	unlock, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	unlock()
	unlock() // idempotent
	assert.Equal(t, 0, locker.Len())
}

func TestRedisLockerExcludesAndReleases(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewRedisLocker(client, time.Minute)

	unlock, err := locker.Lock(context.Background(), UserLockKey("a@x.com"))
	require.NoError(t, err)
	assert.True(t, mr.Exists(UserLockKey("a@x.com")))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, UserLockKey("a@x.com"))
	require.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists(UserLockKey("a@x.com")))

	unlock2, err := locker.Lock(context.Background(), UserLockKey("a@x.com"))
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewRedisLocker(client, time.Minute)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	// Simulate expiry and takeover by another holder.
	require.NoError(t, mr.Set("k", "someone-else"))
	unlock()

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestCodeOf(t *testing.T) {
	coded := NewError(ErrNotFound, "no_user")
	wrapped := errors.Join(errors.New("context"), coded)

	assert.Equal(t, "no_user", CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}
