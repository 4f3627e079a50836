package scorecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes
const (
	keyPrefixScores = "coref:scores:" // Hash of pair -> score, one per scope
)

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	// Namespace separates deployments sharing one Redis.
	Namespace string

	// TTL expires a scope's scores after its last write. Zero keeps them.
	TTL time.Duration
}

// RedisCache stores each scope's scores in a Redis hash.
type RedisCache struct {
	client redis.UniversalClient
	config RedisConfig
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client redis.UniversalClient, config RedisConfig) *RedisCache {
	return &RedisCache{client: client, config: config}
}

func (c *RedisCache) key(scope string) string {
	if c.config.Namespace == "" {
		return keyPrefixScores + scope
	}
	return keyPrefixScores + c.config.Namespace + ":" + scope
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, scope string, antecedent, anaphor int) (float64, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(scope), pairField(antecedent, anaphor)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading cached score: %w", err)
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing cached score %q: %w", raw, err)
	}
	return score, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, scope string, antecedent, anaphor int, score float64) error {
	key := c.key(scope)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, pairField(antecedent, anaphor), strconv.FormatFloat(score, 'g', -1, 64))
	if c.config.TTL > 0 {
		pipe.Expire(ctx, key, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching score: %w", err)
	}
	return nil
}

// Invalidate drops every score in a scope.
func (c *RedisCache) Invalidate(ctx context.Context, scope string) error {
	if err := c.client.Del(ctx, c.key(scope)).Err(); err != nil {
		return fmt.Errorf("invalidating scores: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
