package kv

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "bothub:",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// redisStore is the Redis-backed coordination store used in multi-instance
// deployments.
type redisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection before
// returning. Startup fails fast on an unreachable store rather than limping
// along with a dead registry.
func NewRedisStore(config *RedisConfig) (Store, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.Info("coordination store connected", "addr", config.Addr)

	return &redisStore{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "failed to get %s", key)
	}
	return data, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.fullKey(key), value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

func (r *redisStore) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SAdd(ctx, r.fullKey(key), args...).Err(); err != nil {
		return errors.Wrapf(err, "failed to add to set %s", key)
	}
	return nil
}

func (r *redisStore) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.SRem(ctx, r.fullKey(key), args...).Err(); err != nil {
		return errors.Wrapf(err, "failed to remove from set %s", key)
	}
	return nil
}

func (r *redisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.fullKey(key)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read set %s", key)
	}
	return members, nil
}

func (r *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, r.fullKey(key), ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to expire %s", key)
	}
	return nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func (r *redisStore) fullKey(key string) string {
	return r.keyPrefix + key
}
