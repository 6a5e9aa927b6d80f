package entity

import "time"

// TrackedFlight is one physical flight whose prices are being recorded.
// Unique on (FlightNumber, FlightDate, Origin, Destination).
type TrackedFlight struct {
	ID                          string     `json:"id"`
	BaseFlightID                string     `json:"base_flight_id"`
	FlightNumber                string     `json:"flight_number"`
	FlightDate                  time.Time  `json:"flight_date"`
	Origin                      string     `json:"origin"`
	Destination                 string     `json:"destination"`
	AirlineCode                 string     `json:"airline_code"`
	AirlineNameFa               string     `json:"airline_name_fa"`
	AirlineNameEn               string     `json:"airline_name_en"`
	DepartureTime               time.Time  `json:"departure_time"`
	ArrivalTime                 time.Time  `json:"arrival_time"`
	IsActive                    bool       `json:"is_active"`
	LastTrackedAt               time.Time  `json:"last_tracked_at"`
	CurrentLowestPrice          *int64     `json:"current_lowest_price,omitempty"`
	CurrentLowestPriceProvider  string     `json:"current_lowest_price_provider,omitempty"`
	CurrentLowestPriceUpdatedAt *time.Time `json:"current_lowest_price_updated_at,omitempty"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}
