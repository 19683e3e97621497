package lending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LocalLocker_SerialisesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "request:1:1")
			require.NoError(t, err)
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.locks, "released keys are dropped")
}

func Test_LocalLocker_DistinctKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "request:1:1")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, "request:1:2")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func Test_LocalLocker_TimesOut(t *testing.T) {
	l := NewLocalLocker()
	l.wait = 50 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "request:1:1")
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), "request:1:1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "request:1:1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.Empty(t, l.locks, "waiters that gave up do not leak keys")

	again, err := l.Lock(context.Background(), "request:1:1")
	require.NoError(t, err)
	again()
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLocker(rdb)
	l.wait = 100 * time.Millisecond
	l.retry = 5 * time.Millisecond
	return l, mr
}

func Test_RedisLocker_TimesOutWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "request:5:7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:request:5:7"))

	_, err = l.Lock(ctx, "request:5:7")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists("lock:request:5:7"))

	unlock2, err := l.Lock(ctx, "request:5:7")
	require.NoError(t, err)
	unlock2()
}

func Test_RedisLocker_UnlockKeepsForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "request:1:2")
	require.NoError(t, err)

	// lock expired and was taken by someone else
	require.NoError(t, mr.Set("lock:request:1:2", "someone-else"))
	unlock()

	v, err := mr.Get("lock:request:1:2")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
