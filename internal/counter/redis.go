package counter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Increments the key and sets the expiry on the call that created it. A key
// that somehow lost its TTL gets one again so it cannot live forever.
var incrementWithExpiryScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

type RedisStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb, Prefix: prefix}, nil
}

func (s *RedisStore) key(k string) string {
	return s.Prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return s.Client.Set(ctx, s.key(key), val, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrementWithExpiryScript.Run(ctx, s.Client, []string{s.key(key)}, window.Milliseconds()).Int64()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
