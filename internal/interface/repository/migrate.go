package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Airlines{},
		&Airports{},
		&TrackedFlights{},
		&PriceSnapshots{},
		&LowestPriceSnapshots{},
		&RouteConfigs{},
		&ScrapingSessions{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
