package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/utils"
	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps the url ledger in Redis. Keys never expire.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

func NewRedisLedger(ctx context.Context, redisURL, prefix string) (*RedisLedger, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLedger{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisLedger) Close() error {
	return r.client.Close()
}

func (r *RedisLedger) key(url string) string {
	return r.prefix + utils.Hash(url)
}

func (r *RedisLedger) HasSeen(ctx context.Context, url string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.key(url)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return exists > 0, nil
}

// MarkSeen uses SETNX so the first writer wins and repeats are no-ops.
func (r *RedisLedger) MarkSeen(ctx context.Context, url string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(url), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return ok, nil
}
