package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRouteConfigRepository implements the RouteConfigRepository interface
type GormRouteConfigRepository struct {
	db *gorm.DB
}

// NewGormRouteConfigRepository creates a new GORM route config repository
func NewGormRouteConfigRepository(db *gorm.DB) repository.RouteConfigRepository {
	return &GormRouteConfigRepository{
		db: db,
	}
}

// RouteConfigs GORM model for database mapping
type RouteConfigs struct {
	ID                      uint                                        `gorm:"primaryKey"`
	Origin                  string                                      `gorm:"column:origin;size:3;uniqueIndex:idx_route_config_pair"`
	Destination             string                                      `gorm:"column:destination;size:3;uniqueIndex:idx_route_config_pair"`
	NameFa                  string                                      `gorm:"column:name_fa"`
	IsActive                bool                                        `gorm:"column:is_active;default:true;index"`
	DaysAhead               int                                         `gorm:"column:days_ahead;default:7"`
	TrackingIntervalMinutes int                                         `gorm:"column:tracking_interval_minutes;default:60"`
	LastTrackedAt           *time.Time                                  `gorm:"column:last_tracked_at"`
	TrackingSettings        datatypes.JSONType[entity.TrackingSettings] `gorm:"column:tracking_settings;type:jsonb"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// TableName overrides the default table name
func (RouteConfigs) TableName() string {
	return "route_configs"
}

// Upsert creates the route or updates the existing origin/destination pair
func (r *GormRouteConfigRepository) Upsert(ctx context.Context, route *entity.RouteConfig) error {
	model := RouteConfigs{
		Origin:                  strings.ToUpper(route.Origin),
		Destination:             strings.ToUpper(route.Destination),
		NameFa:                  route.NameFa,
		IsActive:                route.IsActive,
		DaysAhead:               route.DaysAhead,
		TrackingIntervalMinutes: route.TrackingIntervalMinutes,
		TrackingSettings:        datatypes.NewJSONType(route.Settings),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "origin"}, {Name: "destination"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name_fa", "is_active", "days_ahead", "tracking_interval_minutes", "tracking_settings", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert route config: %w", err)
	}

	// Reload so the caller sees the persisted id and timestamps
	var stored RouteConfigs
	if err := r.db.WithContext(ctx).
		Where("origin = ? AND destination = ?", model.Origin, model.Destination).
		First(&stored).Error; err != nil {
		return err
	}
	*route = *stored.toEntity()
	return nil
}

// ListActive returns the routes the tracker should scrape
func (r *GormRouteConfigRepository) ListActive(ctx context.Context) ([]*entity.RouteConfig, error) {
	var models []RouteConfigs
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("origin, destination").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toRouteEntities(models), nil
}

// List returns every configured route
func (r *GormRouteConfigRepository) List(ctx context.Context) ([]*entity.RouteConfig, error) {
	var models []RouteConfigs
	if err := r.db.WithContext(ctx).Order("origin, destination").Find(&models).Error; err != nil {
		return nil, err
	}
	return toRouteEntities(models), nil
}

// UpdateLastTracked stamps the route's last tracking time
func (r *GormRouteConfigRepository) UpdateLastTracked(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&RouteConfigs{}).
		Where("id = ?", id).
		Update("last_tracked_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func toRouteEntities(models []RouteConfigs) []*entity.RouteConfig {
	routes := make([]*entity.RouteConfig, 0, len(models))
	for i := range models {
		routes = append(routes, models[i].toEntity())
	}
	return routes
}

// Convert GORM model to domain entity
func (m *RouteConfigs) toEntity() *entity.RouteConfig {
	return &entity.RouteConfig{
		ID:                      m.ID,
		Origin:                  m.Origin,
		Destination:             m.Destination,
		NameFa:                  m.NameFa,
		IsActive:                m.IsActive,
		DaysAhead:               m.DaysAhead,
		TrackingIntervalMinutes: m.TrackingIntervalMinutes,
		LastTrackedAt:           m.LastTrackedAt,
		Settings:                m.TrackingSettings.Data(),
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}
