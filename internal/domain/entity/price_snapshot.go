package entity

import "time"

// PriceSnapshot is an immutable observation of one provider's price for one flight
type PriceSnapshot struct {
	ID                    string         `json:"id"`
	TrackedFlightID       string         `json:"tracked_flight_id"`
	Provider              string         `json:"provider"`
	AdultPrice            int64          `json:"adult_price"`
	ChildPrice            *int64         `json:"child_price,omitempty"`
	InfantPrice           *int64         `json:"infant_price,omitempty"`
	AvailableSeats        int            `json:"available_seats"`
	IsAvailable           bool           `json:"is_available"`
	ScrapedAt             time.Time      `json:"scraped_at"`
	PriceChangeAmount     *int64         `json:"price_change_amount,omitempty"`
	PriceChangePercentage *float64       `json:"price_change_percentage,omitempty"`
	RawData               map[string]any `json:"raw_data,omitempty"`
}

// LowestPriceSnapshot records the cheapest provider of one scrape cycle
type LowestPriceSnapshot struct {
	ID                    string                `json:"id"`
	TrackedFlightID       string                `json:"tracked_flight_id"`
	LowestPrice           int64                 `json:"lowest_price"`
	Provider              string                `json:"provider"`
	ScrapedAt             time.Time             `json:"scraped_at"`
	PriceChangeAmount     *int64                `json:"price_change_amount,omitempty"`
	PriceChangePercentage *float64              `json:"price_change_percentage,omitempty"`
	Comparison            LowestPriceComparison `json:"comparison_data"`
}

// LowestPriceComparison is how the winner compared to the other providers
type LowestPriceComparison struct {
	AllProviderPrices    map[string]int64 `json:"all_providers_prices"`
	SecondLowestPrice    *int64           `json:"second_lowest_price,omitempty"`
	SecondLowestProvider string           `json:"second_lowest_provider,omitempty"`
	DifferenceFromSecond *int64           `json:"price_difference_from_second,omitempty"`
}
