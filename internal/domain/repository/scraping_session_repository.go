package repository

import (
	"context"
	"time"

	"flightprice-service/internal/domain/entity"
)

// ScrapingSessionRepository defines the interface for tracker session storage
type ScrapingSessionRepository interface {
	Create(ctx context.Context, session *entity.ScrapingSession) error
	Save(ctx context.Context, session *entity.ScrapingSession) error
	GetByID(ctx context.Context, id string) (*entity.ScrapingSession, error)
	GetActive(ctx context.Context) (*entity.ScrapingSession, error)
	History(ctx context.Context, limit, offset int) ([]*entity.ScrapingSession, int64, error)
	Statistics(ctx context.Context) (*entity.SessionStatistics, error)
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}
