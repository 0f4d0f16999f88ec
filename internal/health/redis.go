package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the Redis instance that backs the materializer lock and
// shared rate limits.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a Redis checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
