package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wartburg/mcsp/core"
)

// RedisCache is a core.Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ core.Cache = (*RedisCache)(nil)

// NewRedisCache connects to redisURL (eg. "redis://localhost:6379/0").
func NewRedisCache(redisURL, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return core.ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, "redis get")
	}
	return json.Unmarshal(val, dest)
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}
	return errors.Wrap(c.client.Set(ctx, c.key(key), data, ttl).Err(), "redis set")
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, c.key(k))
	}
	return errors.Wrap(c.client.Del(ctx, prefixed...).Err(), "redis del")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
