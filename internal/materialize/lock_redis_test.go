package materialize

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisLocker requires a Redis instance on localhost:6379 and is skipped
// when none is reachable.
func TestRedisLocker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	key := "test-materialize-lock-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	first := NewRedisLocker(client, key, time.Minute)
	second := NewRedisLocker(client, key, time.Minute)
	ctx = context.Background()

	release, err := first.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := second.Acquire(ctx); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}

	release()
	if exists, _ := client.Exists(ctx, key).Result(); exists != 0 {
		t.Error("expected key deleted on release")
	}

	release2, err := second.Acquire(ctx)
	if err != nil {
		t.Fatalf("expected lock free after release, got %v", err)
	}

	// A stale release from the first holder must not drop the new lock.
	release()
	if exists, _ := client.Exists(ctx, key).Result(); exists != 1 {
		t.Error("stale release removed another holder's lock")
	}
	release2()
}

// TestRedisLocker_LeaseOutlivesTTL holds the lock for several TTLs and
// checks that renewal keeps a second run out. Needs Redis on localhost:6379.
func TestRedisLocker_LeaseOutlivesTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	key := "test-materialize-lease-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	ttl := 300 * time.Millisecond
	first := NewRedisLocker(client, key, ttl)
	second := NewRedisLocker(client, key, ttl)
	ctx = context.Background()

	release, err := first.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	time.Sleep(4 * ttl)
	if _, err := second.Acquire(ctx); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected lease to be renewed past its TTL, got %v", err)
	}
	if remaining, _ := client.PTTL(ctx, key).Result(); remaining <= 0 || remaining > ttl {
		t.Errorf("expected a live lease of at most %s, got %s", ttl, remaining)
	}

	release()
	if exists, _ := client.Exists(ctx, key).Result(); exists != 0 {
		t.Error("expected key deleted on release")
	}

	// Renewal stops with release; a fresh holder is not extended by it.
	release2, err := second.Acquire(ctx)
	if err != nil {
		t.Fatalf("expected lock free after release, got %v", err)
	}
	release2()
}

func TestNewRedisLocker_Defaults(t *testing.T) {
	l := NewRedisLocker(nil, "", 0)
	if l.key != DefaultLockKey {
		t.Errorf("expected default key, got %q", l.key)
	}
	if l.ttl != DefaultLockTTL {
		t.Errorf("expected %s ttl, got %s", DefaultLockTTL, l.ttl)
	}
	if l.WithLogger(nil).logger == nil {
		t.Error("nil logger should keep the default")
	}
}
