package entity

import "time"

// RouteConfig is an operator-defined route the tracker scrapes on a schedule
type RouteConfig struct {
	ID                      uint             `json:"id"`
	Origin                  string           `json:"origin"`
	Destination             string           `json:"destination"`
	NameFa                  string           `json:"name_fa,omitempty"`
	IsActive                bool             `json:"is_active"`
	DaysAhead               int              `json:"days_ahead"`
	TrackingIntervalMinutes int              `json:"tracking_interval_minutes"`
	LastTrackedAt           *time.Time       `json:"last_tracked_at,omitempty"`
	Settings                TrackingSettings `json:"tracking_settings"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// TrackingSettings are per-route tracking preferences
type TrackingSettings struct {
	PreferredProviders  []string `json:"preferred_providers,omitempty"`
	PriceAlertThreshold float64  `json:"price_alert_threshold,omitempty"`
	NotifyOnPriceDrop   bool     `json:"notify_on_price_drop"`
}

// DueAt reports whether the route's tracking interval has elapsed at now
func (r RouteConfig) DueAt(now time.Time) bool {
	if r.LastTrackedAt == nil || r.TrackingIntervalMinutes <= 0 {
		return true
	}
	return !now.Before(r.LastTrackedAt.Add(time.Duration(r.TrackingIntervalMinutes) * time.Minute))
}
