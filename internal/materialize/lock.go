package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another materialization holds the lock.
var ErrRunInProgress = errors.New("materialization run already in progress")

// Locker serializes materialization runs. Acquire returns ErrRunInProgress
// when the lock is held; the returned release func is safe to call once.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu sync.Mutex
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(_ context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// DefaultLockKey is the redis key guarding materialization runs.
const DefaultLockKey = "similarhub:materialize:lock"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's TTL only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// DefaultLockTTL is the lease used when NewRedisLocker gets no TTL.
const DefaultLockTTL = time.Minute

// RedisLocker serializes runs across processes with SET NX PX.
// While a run holds the lock the lease is renewed every ttl/3, so the TTL
// only bounds how long a crashed run can block others.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker creates a distributed locker. An empty key uses
// DefaultLockKey; a non-positive ttl uses DefaultLockTTL.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used to report lost leases.
func (l *RedisLocker) WithLogger(logger *slog.Logger) *RedisLocker {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire materialize lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release with a fresh context so a cancelled run still unlocks.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
		})
	}, nil
}

// renew extends the lease until stop is closed or the token is gone.
func (l *RedisLocker) renew(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.Warn("failed to renew materialize lock",
					slog.String("key", l.key),
					slog.String("error", err.Error()))
				continue
			}
			if n == 0 {
				l.logger.Error("materialize lock lost", slog.String("key", l.key))
				return
			}
		}
	}
}
