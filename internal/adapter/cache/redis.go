package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "asksql:sql:"

// RedisCache stores generated SQL in Redis so repeated questions against an
// unchanged schema skip the model call.
type RedisCache struct {
	client *redis.Client
}

// Connect parses a redis:// URL, pings the server and returns a cache.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 8 * time.Millisecond
	opts.MaxRetryBackoff = 512 * time.Millisecond
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}
	logger.Info("redis cache connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return New(client), nil
}

func New(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Key derives the cache key from the question and the schema context it was
// answered against. A schema change therefore never serves stale SQL.
func Key(question, schemaContext string) string {
	sum := sha256.Sum256([]byte(question + "\x00" + schemaContext))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, question, schemaContext string) (string, bool, error) {
	v, err := c.client.Get(ctx, Key(question, schemaContext)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading sql cache: %w", err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, question, schemaContext, sql string, ttl time.Duration) error {
	if err := c.client.Set(ctx, Key(question, schemaContext), sql, ttl).Err(); err != nil {
		return fmt.Errorf("writing sql cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
