package entity

import "time"

// ResultSource says where a search answer came from
type ResultSource string

const (
	SourceCache ResultSource = "database"
	SourceLive  ResultSource = "scraper"
)

// Passengers is the passenger mix of a search
type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// SearchFilters narrow and order a merged result
type SearchFilters struct {
	MinPrice      int64  `json:"min_price,omitempty"`
	MaxPrice      int64  `json:"max_price,omitempty"`
	Airline       string `json:"airline,omitempty"`
	DepartureFrom string `json:"departure_from,omitempty"` // HH:MM
	DepartureTo   string `json:"departure_to,omitempty"`   // HH:MM
	SortBy        string `json:"sort_by,omitempty"`        // price|departure|duration|providers
	SortOrder     string `json:"sort_order,omitempty"`     // asc|desc
}

// SearchQuery is a validated search request
type SearchQuery struct {
	Origin        string        `json:"origin"`
	Destination   string        `json:"destination"`
	DepartureDate time.Time     `json:"departure_date"`
	ReturnDate    *time.Time    `json:"return_date,omitempty"`
	Passengers    Passengers    `json:"passengers"`
	UserID        string        `json:"user_id,omitempty"`
	Providers     []string      `json:"providers,omitempty"` // empty means every registered provider
	SkipCache     bool          `json:"skip_cache,omitempty"`
	Filters       SearchFilters `json:"filters"`
}

// ProviderRequest projects the query for one provider call
func (q SearchQuery) ProviderRequest() ProviderRequest {
	return ProviderRequest{
		Origin:        q.Origin,
		Destination:   q.Destination,
		DepartureDate: q.DepartureDate,
		ReturnDate:    q.ReturnDate,
		Passengers:    q.Passengers,
		UserID:        q.UserID,
	}
}

// SearchMetadata describes how a result was produced
type SearchMetadata struct {
	TotalFlights        int          `json:"total_flights"`
	TotalOptions        int          `json:"total_options"`
	ProvidersQueried    []string     `json:"providers_queried"`
	ProvidersSuccessful []string     `json:"providers_successful"`
	ProvidersFailed     []string     `json:"providers_failed"`
	SearchTimeMs        int64        `json:"search_time_ms"`
	Source              ResultSource `json:"source"`
	Cached              bool         `json:"cached"`
	CacheAgeMinutes     *int         `json:"cache_age_minutes,omitempty"`
	Error               string       `json:"error,omitempty"`
}

// SearchResult is the merged, price-sorted answer to a search
type SearchResult struct {
	Flights  []GroupedFlight `json:"flights"`
	Metadata SearchMetadata  `json:"metadata"`
}

// CachedOffer is the latest stored snapshot of one (flight, provider) pair
type CachedOffer struct {
	Flight   TrackedFlight
	Snapshot PriceSnapshot
}
