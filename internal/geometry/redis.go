package geometry

import (
	"context"
	"errors"
	"time"

	"github.com/EmpoweredVote/appellations-backend/internal/logging"
	"github.com/EmpoweredVote/appellations-backend/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "appellations:geometry:"

// RedisClient is the subset of *redis.Client used by RedisCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares raw geometry documents between server processes. It sits
// in front of another Source; Redis trouble falls through to that source.
type RedisCache struct {
	next   Source
	client RedisClient
	ttl    time.Duration
}

// NewRedisCache wraps next with a read-through Redis cache.
func NewRedisCache(next Source, client RedisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{next: next, client: client, ttl: ttl}
}

func (c *RedisCache) Fetch(ctx context.Context, geojsonPath string) ([]byte, error) {
	key := redisKeyPrefix + geojsonPath

	b, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.GeometrySharedCacheTotal.WithLabelValues("hit").Inc()
		return b, nil
	case errors.Is(err, redis.Nil):
		metrics.GeometrySharedCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.GeometrySharedCacheTotal.WithLabelValues("error").Inc()
		logging.LogError("geometry", "redis get", err)
	}

	b, err = c.next.Fetch(ctx, geojsonPath)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logging.LogError("geometry", "redis set", err)
	}
	return b, nil
}
