package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ledgerPrefix = "inkpost:sent:"

// RedisLedger records delivered posts as expiring keys.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger parses a redis:// URL and pings the server.
func NewRedisLedger(ctx context.Context, url string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisLedgerFromClient(client, ttl), nil
}

func NewRedisLedgerFromClient(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func redisKey(newsletterID int64, postKey string) string {
	return ledgerPrefix + ledgerKey(newsletterID, postKey)
}

func (l *RedisLedger) Delivered(ctx context.Context, newsletterID int64, postKey string) (bool, error) {
	n, err := l.client.Exists(ctx, redisKey(newsletterID, postKey)).Result()
	if err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return n > 0, nil
}

// MarkDelivered stores the link under the post key. The first mark wins and
// keeps its original expiry.
func (l *RedisLedger) MarkDelivered(ctx context.Context, newsletterID int64, postKey, link string) error {
	if err := l.client.SetNX(ctx, redisKey(newsletterID, postKey), link, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark as delivered: %w", err)
	}
	return nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
