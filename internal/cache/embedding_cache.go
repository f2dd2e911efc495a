package cache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EmbeddingCache is C4's two-tier cache: an in-process LRU in front of a
// shared Redis tier, on the maintained v9 client and a bounded LRU
// instead of an unbounded map.
//
// A miss on Get never blocks the caller; Set on an unreachable Redis
// degrades to a memory-only write and a logged warning, never an error
// that would fail the request.
type EmbeddingCache struct {
	memory *lru.Cache[string, []float32]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewEmbeddingCache builds a two-tier cache. redisClient may be nil, in
// which case the cache runs memory-only.
func NewEmbeddingCache(memoryMaxKeys int, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) (*EmbeddingCache, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	memCache, err := lru.New[string, []float32](memoryMaxKeys)
	if err != nil {
		return nil, err
	}
	return &EmbeddingCache{memory: memCache, redis: redisClient, ttl: ttl, logger: logger}, nil
}

// Get implements domain.EmbeddingCache.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Debug("embedding cache redis get failed")
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("embedding cache redis value corrupt")
		return nil, false
	}
	c.memory.Add(key, vec)
	return vec, true
}

// Set implements domain.EmbeddingCache.
func (c *EmbeddingCache) Set(ctx context.Context, key string, vector []float32) error {
	c.memory.Add(key, vector)
	if c.redis == nil {
		return nil
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return nil
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("embedding cache redis set failed, serving memory-only")
	}
	return nil
}
