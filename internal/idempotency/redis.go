package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "smartsplit"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisStore keeps idempotency records in Redis.
type RedisStore struct {
	store cmdable
	raw   *redis.Client
}

var _ Store = (*RedisStore)(nil)

// RedisOptions tunes the connection pool. Zero values keep the URL's settings.
type RedisOptions struct {
	PoolSize    int
	DialTimeout time.Duration
}

// NewRedisStore connects to the Redis server at url and verifies it answers.
func NewRedisStore(ctx context.Context, url string, o RedisOptions) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	if o.DialTimeout > 0 {
		opts.DialTimeout = o.DialTimeout
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{store: raw, raw: raw}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoRecord
	}
	return val, err
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.store.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.store.Del(ctx, key).Err()
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

// Key builds the namespaced key for an operation scoped to one user, for
// example smartsplit:idempotency:record_expense:<user>:<key>.
func Key(operation, userID, clientKey string) string {
	parts := []string{keyNamespace, "idempotency"}
	for _, p := range []string{operation, userID, clientKey} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}
