package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// versionKey is INCRed on every invalidation; readers in other processes
	// compare it to the version their cached joins were built at.
	versionKey = "membersync:mirror:version"
	// channel carries a push notification for readers that subscribe instead
	// of polling the version key.
	channel = "membersync:mirror:invalidated"

	invalidateTimeout = 2 * time.Second
)

// RedisInvalidator implements Invalidator on a shared Redis so every process
// serving cached membership/domain joins observes the bump.
type RedisInvalidator struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisInvalidator returns an Invalidator backed by the given Redis client.
func NewRedisInvalidator(client *redis.Client, logger *zap.Logger) *RedisInvalidator {
	return &RedisInvalidator{client: client, logger: logger}
}

var _ Invalidator = (*RedisInvalidator)(nil)

// Invalidate bumps the shared version and publishes a notification.
// Best-effort: failures are logged, never propagated, so a Redis outage
// cannot fail webhook processing.
func (r *RedisInvalidator) Invalidate(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()

	version, err := r.client.Incr(opCtx, versionKey).Result()
	if err != nil {
		r.logger.Warn("cache: version bump failed", zap.Error(err))
		return
	}
	if err := r.client.Publish(opCtx, channel, version).Err(); err != nil {
		r.logger.Warn("cache: invalidation publish failed", zap.Error(err))
	}
}

// Version returns the current shared invalidation version. Missing key means
// no invalidation has happened yet and reads as 0.
func (r *RedisInvalidator) Version(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// PingContext reports whether Redis is reachable; used by the health endpoint.
func (r *RedisInvalidator) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
