package credential

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileCache keeps scraped profiles between scans of the same credential so
// a rescan inside the TTL skips the remote fetch entirely.
type ProfileCache interface {
	Get(ctx context.Context, key string) (*Profile, bool)
	Put(ctx context.Context, key string, p *Profile)
}

// RedisProfileCache stores profiles as JSON under a TTL.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileCache creates a cache. A non-positive ttl defaults to 12h.
func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

func cacheKey(key string) string { return "credencial:" + key }

// Get returns a cached profile. Cache errors degrade to a miss.
func (c *RedisProfileCache) Get(ctx context.Context, key string) (*Profile, bool) {
	val, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Put stores a profile; failures only log because the fetch already succeeded.
func (c *RedisProfileCache) Put(ctx context.Context, key string, p *Profile) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(key), b, c.ttl).Err(); err != nil {
		log.Printf("profile cache write failed: %v", err)
	}
}
