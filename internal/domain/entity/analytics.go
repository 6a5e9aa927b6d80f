package entity

import "time"

// PriceHistoryPoint is one snapshot in a flight's price timeline
type PriceHistoryPoint struct {
	Provider              string    `json:"provider"`
	Price                 int64     `json:"price"`
	Capacity              int       `json:"capacity"`
	ScrapedAt             time.Time `json:"scraped_at"`
	PriceChangeAmount     *int64    `json:"price_change_amount,omitempty"`
	PriceChangePercentage *float64  `json:"price_change_percentage,omitempty"`
}

// DailyStats aggregates one flight's snapshots for one day
type DailyStats struct {
	Date             string  `json:"date"`
	MinPrice         int64   `json:"min_price"`
	MaxPrice         int64   `json:"max_price"`
	AvgPrice         float64 `json:"avg_price"`
	PriceVolatility  float64 `json:"price_volatility"`
	MinCapacity      int     `json:"min_capacity"`
	MaxCapacity      int     `json:"max_capacity"`
	ScrapeCount      int     `json:"scrape_count"`
	CheapestProvider string  `json:"cheapest_provider"`
}

// PriceTrend is the direction prices are moving
type PriceTrend string

const (
	TrendIncreasing   PriceTrend = "increasing"
	TrendDecreasing   PriceTrend = "decreasing"
	TrendStable       PriceTrend = "stable"
	TrendInsufficient PriceTrend = "insufficient_data"
)

// PriceInsights summarize a flight's daily stats
type PriceInsights struct {
	MinPrice       float64    `json:"min_price"`
	MaxPrice       float64    `json:"max_price"`
	AvgPrice       float64    `json:"avg_price"`
	AvgVolatility  float64    `json:"avg_volatility"`
	Trend          PriceTrend `json:"trend"`
	ChangePercent  float64    `json:"change_percent"`
	Recommendation string     `json:"recommendation"`
}

// CapacityPoint is one point of a seat availability timeline
type CapacityPoint struct {
	ScrapedAt           time.Time `json:"scraped_at"`
	Provider            string    `json:"provider"`
	Capacity            int       `json:"capacity"`
	CapacityChange      int       `json:"capacity_change"`
	HoursUntilDeparture float64   `json:"hours_until_departure"`
	BookingVelocity     float64   `json:"booking_velocity"`
}

// BookingUrgency is how soon a traveller should book
type BookingUrgency string

const (
	UrgencyCritical BookingUrgency = "critical"
	UrgencyHigh     BookingUrgency = "high"
	UrgencyModerate BookingUrgency = "moderate"
	UrgencyLow      BookingUrgency = "low"
	UrgencyUnknown  BookingUrgency = "unknown"
)

// CapacityAnalysis is the capacity timeline plus derived figures
type CapacityAnalysis struct {
	BaseFlightID    string          `json:"base_flight_id"`
	Trend           []CapacityPoint `json:"capacity_trend"`
	BookingRate     float64         `json:"booking_rate_per_hour"`
	Urgency         BookingUrgency  `json:"urgency"`
	CurrentCapacity int             `json:"current_capacity"`
}

// ProviderPrice is a provider's latest price for a flight
type ProviderPrice struct {
	Provider  string    `json:"provider"`
	Price     int64     `json:"price"`
	Capacity  int       `json:"capacity"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ProviderComparison ranks providers for a flight
type ProviderComparison struct {
	BaseFlightID    string          `json:"base_flight_id"`
	Providers       []ProviderPrice `json:"providers"`
	BestDeal        *ProviderPrice  `json:"best_deal,omitempty"`
	PriceDifference int64           `json:"price_difference"`
}

// PriceDrop is a recent drop of at least the alert threshold
type PriceDrop struct {
	BaseFlightID      string    `json:"base_flight_id"`
	FlightNumber      string    `json:"flight_number"`
	AirlineCode       string    `json:"airline_code"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	DepartureDateTime time.Time `json:"departure_datetime"`
	CurrentPrice      int64     `json:"current_price"`
	PreviousPrice     int64     `json:"previous_price"`
	PriceDrop         int64     `json:"price_drop"`
	DropPercentage    float64   `json:"drop_percentage"`
	ProviderSource    string    `json:"provider_source"`
	HoursAgo          float64   `json:"hours_ago"`
}

// PriceDropReport lists drops on a route
type PriceDropReport struct {
	Route            string      `json:"route"`
	Dates            []string    `json:"dates"`
	ThresholdPercent float64     `json:"threshold_percent"`
	PriceDrops       []PriceDrop `json:"price_drops"`
	TotalAlerts      int         `json:"total_alerts"`
}

// ProviderScrapeCounts are the raw per-provider counts from storage
type ProviderScrapeCounts struct {
	Provider     string
	ScrapeCount  int
	FlightsFound int
	FirstScrape  time.Time
	LastScrape   time.Time
}

// ScrapingStats describes how a provider has been scraped recently
type ScrapingStats struct {
	Provider               string    `json:"provider"`
	ScrapeCount            int       `json:"scrape_count"`
	FlightsFound           int       `json:"flights_found"`
	AvgFlightsPerScrape    float64   `json:"avg_flights_per_scrape"`
	FirstScrape            time.Time `json:"first_scrape"`
	LastScrape             time.Time `json:"last_scrape"`
	ScrapeFrequencyMinutes float64   `json:"scrape_frequency_minutes"`
}

// ScrapingStatsReport wraps provider stats for a period
type ScrapingStatsReport struct {
	PeriodHours  int             `json:"period_hours"`
	Providers    []ScrapingStats `json:"providers"`
	TotalScrapes int             `json:"total_scrapes"`
	TotalFlights int             `json:"total_flights"`
}

// FlightDetails is the full analytics view of one flight
type FlightDetails struct {
	Flight         *TrackedFlight     `json:"flight_info"`
	LatestSnapshot *PriceSnapshot     `json:"latest_snapshot,omitempty"`
	Comparison     ProviderComparison `json:"provider_comparison"`
	DailyStats     []DailyStats       `json:"daily_stats"`
	Insights       PriceInsights      `json:"insights"`
}
