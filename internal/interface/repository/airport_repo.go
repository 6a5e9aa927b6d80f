package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormAirportRepository implements the AirportRepository interface
type GormAirportRepository struct {
	db *gorm.DB
}

// NewGormAirportRepository creates a new GORM airport repository
func NewGormAirportRepository(db *gorm.DB) repository.AirportRepository {
	return &GormAirportRepository{
		db: db,
	}
}

// Airports GORM model for database mapping
type Airports struct {
	ID        uint           `gorm:"primaryKey"`
	Code      string         `gorm:"column:airport_code;size:3;uniqueIndex"`
	NameFa    string         `gorm:"column:airport_name_fa"`
	NameEn    string         `gorm:"column:airport_name_en"`
	CityFa    string         `gorm:"column:city_name_fa"`
	CityEn    string         `gorm:"column:city_name_en"`
	TzName    string         `gorm:"column:tzname"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (Airports) TableName() string {
	return "m_airports"
}

// GetByCode finds an airport by IATA code
func (r *GormAirportRepository) GetByCode(ctx context.Context, code string) (*entity.Airport, error) {
	var airport Airports
	result := r.db.WithContext(ctx).Where("airport_code = ?", strings.ToUpper(code)).First(&airport)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return airport.toEntity(), nil
}

// List returns every airport
func (r *GormAirportRepository) List(ctx context.Context) ([]*entity.Airport, error) {
	var rows []Airports
	if err := r.db.WithContext(ctx).Order("airport_code").Find(&rows).Error; err != nil {
		return nil, err
	}

	airports := make([]*entity.Airport, 0, len(rows))
	for i := range rows {
		airports = append(airports, rows[i].toEntity())
	}
	return airports, nil
}

// Convert GORM model to domain entity
func (a Airports) toEntity() *entity.Airport {
	return &entity.Airport{
		ID:        a.ID,
		Code:      a.Code,
		NameFa:    a.NameFa,
		NameEn:    a.NameEn,
		CityFa:    a.CityFa,
		CityEn:    a.CityEn,
		TzName:    a.TzName,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		DeletedAt: a.DeletedAt,
	}
}
