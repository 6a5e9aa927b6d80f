package repository

import (
	"context"

	"flightprice-service/internal/domain/entity"
)

// AirportRepository defines the interface for airport lookups
type AirportRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Airport, error)
	List(ctx context.Context) ([]*entity.Airport, error)
}
