package lending

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a request lock could not be taken in time
var ErrLockTimeout = errors.New("request lock timeout")

// RequestLocker serialises the duplicate check and insert of RequestIssue per
// (user, book) key. The returned func releases the lock.
type RequestLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed lock. It only serialises callers inside
// one server process and gives up after wait like RedisLocker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker with a 3s acquire timeout
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock), wait: 3 * time.Second}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ErrLockTimeout
	}
	return func() {
		<-kl.sem
		l.release(key, kl)
	}, nil
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker takes the lock with SET NX PX so several server processes share
// it. TTL bounds how long a crashed holder can block others.
type RedisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewRedisLocker returns a locker with a 5s lock TTL and a 3s acquire timeout
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: 5 * time.Second, wait: 3 * time.Second, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := "lock:" + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(l.retry):
		}
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.rdb, []string{k}, token).Err()
	}, nil
}
