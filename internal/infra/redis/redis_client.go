package redis

import (
	"context"
	"errors"
	"time"

	"finiq-ai-pipeline/internal/config"
	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.KVStore = (*Client)(nil)

// Client adapts go-redis to the KVStore port. Misses surface as
// domain.ErrCacheMiss so callers never see redis.Nil.
type Client struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrCacheMiss
	}
	return v, err
}

func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return c.cli.Del(ctx, keys...).Result()
}

func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.cli.IncrBy(ctx, key, delta).Result()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.cli.Expire(ctx, key, ttl).Err()
}

// Keys iterates with SCAN; KEYS would block the server on large keyspaces.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		page, next, err := c.cli.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (c *Client) Close() error { return c.cli.Close() }
