package entity

import "time"

// AirlineInfo describes the operating carrier
type AirlineInfo struct {
	Code    string `json:"code"`
	NameFa  string `json:"name_fa"`
	NameEn  string `json:"name_en,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// RouteInfo describes where the flight goes
type RouteInfo struct {
	Origin            string   `json:"origin"`
	Destination       string   `json:"destination"`
	OriginCityFa      string   `json:"origin_city_fa,omitempty"`
	DestinationCityFa string   `json:"destination_city_fa,omitempty"`
	Terminals         []string `json:"terminals,omitempty"`
}

// ScheduleInfo describes when the flight goes
type ScheduleInfo struct {
	DepartureDateTime time.Time `json:"departure_datetime"`
	ArrivalDateTime   time.Time `json:"arrival_datetime"`
	DurationMinutes   int       `json:"duration_minutes"`
	Stops             int       `json:"stops"`
}

// PricingOption is one provider's bookable price for a grouped flight
type PricingOption struct {
	FlightID     string    `json:"flight_id"`
	Provider     string    `json:"provider"`
	Price        int64     `json:"price"`
	ChildPrice   *int64    `json:"child_price,omitempty"`
	InfantPrice  *int64    `json:"infant_price,omitempty"`
	CabinClass   string    `json:"cabin_class"`
	CabinClassFa string    `json:"cabin_class_fa,omitempty"`
	Capacity     int       `json:"capacity"`
	IsRefundable bool      `json:"is_refundable"`
	IsCharter    bool      `json:"is_charter"`
	TicketType   string    `json:"ticket_type,omitempty"`
	BaggageKg    *int      `json:"baggage_kg,omitempty"`
	BookingClass string    `json:"booking_class,omitempty"`
	OriginalID   string    `json:"original_id,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// GroupedFlight is every provider's offer for one physical flight
type GroupedFlight struct {
	BaseFlightID       string          `json:"base_flight_id"`
	FlightNumber       string          `json:"flight_number"`
	Airline            AirlineInfo     `json:"airline"`
	Route              RouteInfo       `json:"route"`
	Schedule           ScheduleInfo    `json:"schedule"`
	LowestPrice        int64           `json:"lowestPrice"`
	HighestPrice       int64           `json:"highestPrice"`
	AvailableProviders int             `json:"availableProviders"`
	PricingOptions     []PricingOption `json:"pricingOptions"`
}

// CheapestOption returns the lowest priced option, false when there is none
func (g GroupedFlight) CheapestOption() (PricingOption, bool) {
	if len(g.PricingOptions) == 0 {
		return PricingOption{}, false
	}
	best := g.PricingOptions[0]
	for _, o := range g.PricingOptions[1:] {
		if o.Price < best.Price {
			best = o
		}
	}
	return best, true
}
