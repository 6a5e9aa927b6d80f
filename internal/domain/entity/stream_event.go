package entity

import "time"

// StreamEventType names the kind of a streaming search event
type StreamEventType string

const (
	EventProviderResult StreamEventType = "provider_result"
	EventProgress       StreamEventType = "progress"
	EventSearchComplete StreamEventType = "search_complete"
	EventError          StreamEventType = "error"
)

// ProviderResultMetadata describes one provider's contribution
type ProviderResultMetadata struct {
	ProviderName      string  `json:"provider_name"`
	FlightCount       int     `json:"flight_count"`
	OptionCount       int     `json:"option_count"`
	ScrapeTimeSeconds float64 `json:"scrape_time_seconds"`
	Error             string  `json:"error,omitempty"`
	ErrorKind         string  `json:"error_kind,omitempty"`
}

// ProgressData counts resolved providers
type ProgressData struct {
	Completed          int      `json:"completed"`
	Total              int      `json:"total"`
	ProvidersCompleted []string `json:"providers_completed"`
	ProvidersRemaining []string `json:"providers_remaining"`
}

// SearchCompleteData closes a stream
type SearchCompleteData struct {
	TotalProviders      int      `json:"total_providers"`
	SuccessfulProviders int      `json:"successful_providers"`
	FailedProviders     int      `json:"failed_providers"`
	ProvidersSuccessful []string `json:"providers_successful"`
	ProvidersFailed     []string `json:"providers_failed"`
	TotalFlights        int      `json:"total_flights"`
	TotalTimeMs         int64    `json:"total_time_ms"`
	Cached              bool     `json:"cached"`
	Error               string   `json:"error,omitempty"`
}

// StreamEvent is one message of a streaming search. Exactly one of the
// payload fields is set, matching Type.
type StreamEvent struct {
	Type      StreamEventType         `json:"type"`
	Provider  string                  `json:"provider,omitempty"`
	Flights   []GroupedFlight         `json:"flights,omitempty"`
	Metadata  *ProviderResultMetadata `json:"metadata,omitempty"`
	Progress  *ProgressData           `json:"data,omitempty"`
	Complete  *SearchCompleteData     `json:"summary,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// IsTerminal reports whether the event ends the stream
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventSearchComplete || e.Type == EventError
}
