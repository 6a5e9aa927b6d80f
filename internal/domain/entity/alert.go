// internal/domain/entity/alert.go
package entity

import (
	"time"
)

// AlertType defines the type of an outgoing alert
type AlertType string

const (
	PriceDropAlertType AlertType = "price_drop"
)

// PriceDropAlert is published when a snapshot shows a drop past the threshold
type PriceDropAlert struct {
	ID             string                 `json:"id"`
	Type           AlertType              `json:"type"`
	TrackedFlight  string                 `json:"tracked_flight_id"`
	BaseFlightID   string                 `json:"base_flight_id"`
	Provider       string                 `json:"provider"`
	Origin         string                 `json:"origin"`
	Destination    string                 `json:"destination"`
	FlightNumber   string                 `json:"flight_number"`
	Departure      time.Time              `json:"departure"`
	PreviousPrice  int64                  `json:"previous_price"`
	CurrentPrice   int64                  `json:"current_price"`
	DropPercentage float64                `json:"drop_percentage"`
	Text           string                 `json:"text"`
	ScrapedAt      time.Time              `json:"scraped_at"`
	CreatedAt      time.Time              `json:"created_at"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// DedupeKey identifies the snapshot the alert was raised for
func (a *PriceDropAlert) DedupeKey() string {
	return "alert:" + string(a.Type) + ":" + a.TrackedFlight + ":" + a.Provider + ":" + a.ScrapedAt.UTC().Format(time.RFC3339)
}
