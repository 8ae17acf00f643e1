package config

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache holds serialized profiles and policies. Get returns "" on a miss.
type Cache interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

type MemCache struct {
	Data *expirable.LRU[string, string]
}

func NewMemCache(capacity int, ttl time.Duration) MemCache {
	return MemCache{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s MemCache) Get(ctx context.Context, name, key string) (string, error) {
	v, ok := s.Data.Get(name + ":" + key)
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s MemCache) Set(ctx context.Context, name, key string, val string) error {
	s.Data.Add(name+":"+key, val)
	return nil
}

func (s MemCache) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(name + ":" + key)
	return nil
}

// RedisCache shares cached entries between bot processes, with a small
// in-process layer in front of Redis.
type RedisCache struct {
	Data   *cache.Cache
	TTL    time.Duration
	Prefix string
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	data := cache.New(&cache.Options{
		Redis: client,
		// keep the local layer short so a purge on another node is seen quickly
		LocalCache: cache.NewTinyLFU(10_000, ttl/10),
	})
	return &RedisCache{Data: data, TTL: ttl, Prefix: prefix}
}

func (s *RedisCache) key(name, key string) string {
	return s.Prefix + name + ":" + key
}

func (s *RedisCache) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.Data.Get(ctx, s.key(name, key), &val)
	if err == cache.ErrCacheMiss {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisCache) Set(ctx context.Context, name, key string, val string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(name, key),
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisCache) Purge(ctx context.Context, name, key string) error {
	err := s.Data.Delete(ctx, s.key(name, key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
