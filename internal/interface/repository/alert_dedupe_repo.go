package repository

import (
	"context"
	"time"

	"flightprice-service/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisAlertDeduplicator remembers sent alerts with SETNX and a TTL
type RedisAlertDeduplicator struct {
	client *redis.Client
	prefix string
}

// NewRedisAlertDeduplicator creates a deduplicator on the given client
func NewRedisAlertDeduplicator(client *redis.Client) repository.AlertDeduplicator {
	return &RedisAlertDeduplicator{client: client, prefix: "alert:sent:"}
}

// MarkSent returns true the first time a key is seen within ttl
func (d *RedisAlertDeduplicator) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+key, time.Now().UTC().Unix(), ttl).Result()
}
