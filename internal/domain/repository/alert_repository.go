package repository

import (
	"context"
	"time"

	"flightprice-service/internal/domain/entity"
)

// AlertPublisher delivers price drop alerts to subscribers
type AlertPublisher interface {
	Publish(ctx context.Context, alert *entity.PriceDropAlert) error
}

// AlertDeduplicator remembers which alerts were already sent
type AlertDeduplicator interface {
	// MarkSent returns false if the key was already marked within ttl
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
