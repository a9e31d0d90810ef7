package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the networked Store backend. TTL enforcement is delegated to the
// Redis server. Transport errors are logged and converted to negative results so
// the pipeline degrades to cache-miss behavior instead of failing.
type RedisStore struct {
	url       string
	client    *redis.Client
	connected atomic.Bool
}

func NewRedisStore(url string) *RedisStore {
	return &RedisStore{url: url}
}

func (r *RedisStore) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(r.url)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	r.client = client
	r.connected.Store(true)
	slog.Info("redis cache connected", slog.String("addr", opts.Addr), slog.String("component", "cache"))
	return nil
}

func (r *RedisStore) Disconnect(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	r.connected.Store(false)
	err := r.client.Close()
	slog.Info("redis cache disconnected", slog.String("component", "cache"))
	return err
}

func (r *RedisStore) Connected() bool { return r.connected.Load() }

func (r *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !r.Connected() {
		return false
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("redis cache set: marshal", slog.String("key", key), slog.Any("err", err))
		return false
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Error("redis cache set", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

func (r *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	if !r.Connected() {
		return false
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		slog.Error("redis cache get", slog.String("key", key), slog.Any("err", err))
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		slog.Error("redis cache get: unmarshal", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

func (r *RedisStore) Del(ctx context.Context, key string) bool {
	if !r.Connected() {
		return false
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.Error("redis cache del", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

func (r *RedisStore) Exists(ctx context.Context, key string) bool {
	if !r.Connected() {
		return false
	}
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		slog.Error("redis cache exists", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return n == 1
}
