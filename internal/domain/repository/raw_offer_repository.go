package repository

import (
	"context"
	"time"

	"flightprice-service/internal/domain/entity"
)

// RawOfferRepository archives offers exactly as providers sent them
type RawOfferRepository interface {
	UpsertMany(ctx context.Context, offers []*entity.RawOffer) error
	FindByRoute(ctx context.Context, origin, destination string, date time.Time) ([]*entity.RawOffer, error)
}
