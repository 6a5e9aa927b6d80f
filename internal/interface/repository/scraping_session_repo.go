package repository

import (
	"context"
	"errors"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormScrapingSessionRepository implements the ScrapingSessionRepository interface
type GormScrapingSessionRepository struct {
	db *gorm.DB
}

// NewGormScrapingSessionRepository creates a new GORM scraping session repository
func NewGormScrapingSessionRepository(db *gorm.DB) repository.ScrapingSessionRepository {
	return &GormScrapingSessionRepository{
		db: db,
	}
}

// ScrapingSessions GORM model for database mapping
type ScrapingSessions struct {
	ID                   string                                   `gorm:"type:uuid;primaryKey"`
	TriggerType          string                                   `gorm:"column:trigger_type;size:16"`
	Status               string                                   `gorm:"column:status;size:16;index"`
	TotalRoutes          int                                      `gorm:"column:total_routes"`
	CompletedRoutes      int                                      `gorm:"column:completed_routes"`
	FailedRoutes         int                                      `gorm:"column:failed_routes"`
	TotalFlightsFound    int                                      `gorm:"column:total_flights_found"`
	TotalFlightsSaved    int                                      `gorm:"column:total_flights_saved"`
	TotalErrors          int                                      `gorm:"column:total_errors"`
	RouteDetails         datatypes.JSONType[[]entity.RouteDetail] `gorm:"column:route_details;type:jsonb"`
	ErrorMessage         string                                   `gorm:"column:error_message"`
	StartedAt            *time.Time                               `gorm:"column:started_at"`
	PausedAt             *time.Time                               `gorm:"column:paused_at"`
	ResumedAt            *time.Time                               `gorm:"column:resumed_at"`
	CompletedAt          *time.Time                               `gorm:"column:completed_at;index"`
	DurationSeconds      int                                      `gorm:"column:duration_seconds"`
	PauseDurationSeconds int                                      `gorm:"column:pause_duration_seconds"`
	CreatedAt            time.Time                                `gorm:"index"`
	UpdatedAt            time.Time
}

// TableName overrides the default table name
func (ScrapingSessions) TableName() string {
	return "scraping_sessions"
}

// Create inserts a new session
func (r *GormScrapingSessionRepository) Create(ctx context.Context, session *entity.ScrapingSession) error {
	model := fromSessionEntity(session)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	session.CreatedAt = model.CreatedAt
	session.UpdatedAt = model.UpdatedAt
	return nil
}

// Save writes the full session state
func (r *GormScrapingSessionRepository) Save(ctx context.Context, session *entity.ScrapingSession) error {
	return r.db.WithContext(ctx).Save(fromSessionEntity(session)).Error
}

// GetByID retrieves a session by ID
func (r *GormScrapingSessionRepository) GetByID(ctx context.Context, id string) (*entity.ScrapingSession, error) {
	var model ScrapingSessions
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return model.toEntity(), nil
}

// GetActive returns the running or paused session, if any
func (r *GormScrapingSessionRepository) GetActive(ctx context.Context) (*entity.ScrapingSession, error) {
	var model ScrapingSessions
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(entity.SessionRunning), string(entity.SessionPaused)}).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return model.toEntity(), nil
}

// History returns sessions newest first with the total count
func (r *GormScrapingSessionRepository) History(ctx context.Context, limit, offset int) ([]*entity.ScrapingSession, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&ScrapingSessions{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []ScrapingSessions
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	sessions := make([]*entity.ScrapingSession, 0, len(models))
	for i := range models {
		sessions = append(sessions, models[i].toEntity())
	}
	return sessions, total, nil
}

// Statistics aggregates finished sessions
func (r *GormScrapingSessionRepository) Statistics(ctx context.Context) (*entity.SessionStatistics, error) {
	var row struct {
		TotalSessions      int64
		CompletedSessions  int64
		FailedSessions     int64
		StoppedSessions    int64
		AvgDurationSeconds float64
		TotalFlightsFound  int64
		TotalFlightsSaved  int64
	}

	err := r.db.WithContext(ctx).Model(&ScrapingSessions{}).
		Select(`COUNT(*) AS total_sessions,
			COUNT(*) FILTER (WHERE status = ?) AS completed_sessions,
			COUNT(*) FILTER (WHERE status = ?) AS failed_sessions,
			COUNT(*) FILTER (WHERE status = ?) AS stopped_sessions,
			COALESCE(AVG(duration_seconds) FILTER (WHERE status = ?), 0) AS avg_duration_seconds,
			COALESCE(SUM(total_flights_found), 0) AS total_flights_found,
			COALESCE(SUM(total_flights_saved), 0) AS total_flights_saved`,
			entity.SessionCompleted, entity.SessionFailed, entity.SessionStopped, entity.SessionCompleted).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &entity.SessionStatistics{
		TotalSessions:      row.TotalSessions,
		CompletedSessions:  row.CompletedSessions,
		FailedSessions:     row.FailedSessions,
		StoppedSessions:    row.StoppedSessions,
		AvgDurationSeconds: row.AvgDurationSeconds,
		TotalFlightsFound:  row.TotalFlightsFound,
		TotalFlightsSaved:  row.TotalFlightsSaved,
	}

	var last ScrapingSessions
	err = r.db.WithContext(ctx).
		Where("status = ?", entity.SessionCompleted).
		Order("completed_at DESC").
		First(&last).Error
	if err == nil {
		stats.LastCompletedSessionAt = last.CompletedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return stats, nil
}

// DeleteFinishedBefore removes terminal sessions created before the cutoff
func (r *GormScrapingSessionRepository) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", before, []string{
			string(entity.SessionCompleted), string(entity.SessionFailed), string(entity.SessionStopped),
		}).
		Delete(&ScrapingSessions{})
	return result.RowsAffected, result.Error
}

func fromSessionEntity(s *entity.ScrapingSession) *ScrapingSessions {
	return &ScrapingSessions{
		ID:                   s.ID,
		TriggerType:          string(s.TriggerType),
		Status:               string(s.Status),
		TotalRoutes:          s.TotalRoutes,
		CompletedRoutes:      s.CompletedRoutes,
		FailedRoutes:         s.FailedRoutes,
		TotalFlightsFound:    s.TotalFlightsFound,
		TotalFlightsSaved:    s.TotalFlightsSaved,
		TotalErrors:          s.TotalErrors,
		RouteDetails:         datatypes.NewJSONType(s.RouteDetails),
		ErrorMessage:         s.ErrorMessage,
		StartedAt:            s.StartedAt,
		PausedAt:             s.PausedAt,
		ResumedAt:            s.ResumedAt,
		CompletedAt:          s.CompletedAt,
		DurationSeconds:      s.DurationSeconds,
		PauseDurationSeconds: s.PauseDurationSeconds,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

// Convert GORM model to domain entity
func (m *ScrapingSessions) toEntity() *entity.ScrapingSession {
	return &entity.ScrapingSession{
		ID:                   m.ID,
		TriggerType:          entity.TriggerType(m.TriggerType),
		Status:               entity.SessionStatus(m.Status),
		TotalRoutes:          m.TotalRoutes,
		CompletedRoutes:      m.CompletedRoutes,
		FailedRoutes:         m.FailedRoutes,
		TotalFlightsFound:    m.TotalFlightsFound,
		TotalFlightsSaved:    m.TotalFlightsSaved,
		TotalErrors:          m.TotalErrors,
		RouteDetails:         m.RouteDetails.Data(),
		ErrorMessage:         m.ErrorMessage,
		StartedAt:            m.StartedAt,
		PausedAt:             m.PausedAt,
		ResumedAt:            m.ResumedAt,
		CompletedAt:          m.CompletedAt,
		DurationSeconds:      m.DurationSeconds,
		PauseDurationSeconds: m.PauseDurationSeconds,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
