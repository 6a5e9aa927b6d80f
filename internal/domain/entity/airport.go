package entity

import (
	"time"

	"gorm.io/gorm"
)

// Airport holds display information for an IATA airport code
type Airport struct {
	ID        uint
	Code      string
	NameFa    string
	NameEn    string
	CityFa    string
	CityEn    string
	TzName    string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}
