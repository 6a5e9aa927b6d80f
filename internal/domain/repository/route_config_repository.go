package repository

import (
	"context"
	"time"

	"flightprice-service/internal/domain/entity"
)

// RouteConfigRepository defines the interface for tracked route configuration
type RouteConfigRepository interface {
	Upsert(ctx context.Context, route *entity.RouteConfig) error
	ListActive(ctx context.Context) ([]*entity.RouteConfig, error)
	List(ctx context.Context) ([]*entity.RouteConfig, error)
	UpdateLastTracked(ctx context.Context, id uint, at time.Time) error
}
