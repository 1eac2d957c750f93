package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the window in Redis so quotas survive restarts.
type RedisStore struct {
	cli *redis.Client
	key string
	ttl time.Duration
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL bounds how long an idle window is kept. It should be at least
	// the limiter window.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(cli, cfg.Key, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(cli *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{cli: cli, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (Window, error) {
	raw, err := r.cli.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Window{}, nil
	}
	if err != nil {
		return Window{}, err
	}

	var w Window
	if err := json.Unmarshal(raw, &w); err != nil {
		return Window{}, fmt.Errorf("decode window %q: %w", r.key, err)
	}
	return w, nil
}

func (r *RedisStore) Save(ctx context.Context, w Window) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return r.cli.Set(ctx, r.key, raw, r.ttl).Err()
}

func (r *RedisStore) Close() error {
	return r.cli.Close()
}
