package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString accepts a JSON string or number. Older clients send user ids as numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt accepts a JSON number or numeric string
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// RawSearchLeg is one entry of a batch request's requests list
type RawSearchLeg struct {
	Origin            string     `json:"origin"`
	Destination       string     `json:"destination"`
	FromDestination   string     `json:"from_destination"`
	ToDestination     string     `json:"to_destination"`
	StartDate         string     `json:"start_date"`
	FromDate          string     `json:"from_date"`
	DepartureDate     string     `json:"departure_date"`
	DepartureDateAlt  string     `json:"departureDate"`
	ReturnDate        string     `json:"return_date"`
	ToDate            string     `json:"to_date"`
	ReturnDateAlt     string     `json:"returnDate"`
	RequestedByUserID FlexString `json:"requested_by_user_id"`
	UserID            FlexString `json:"user_id"`
	IsForeignFlight   bool       `json:"is_foreign_flight"`
	Adults            FlexInt    `json:"adults"`
	Children          FlexInt    `json:"children"`
	Infants           FlexInt    `json:"infants"`
}

// RawBatchRequest is the provider style payload: a list of legs
type RawBatchRequest struct {
	ProviderName string         `json:"provider_name,omitempty"`
	Requests     []RawSearchLeg `json:"requests,omitempty"`
}

// RawSearchRequest is a search body in any of the accepted shapes: wrapped
// ({"data": {"requests": [...]}}), batch ({"requests": [...]}) or direct
// (fields at the top level, which is the embedded leg).
type RawSearchRequest struct {
	Data *RawBatchRequest `json:"data,omitempty"`
	RawBatchRequest
	RawSearchLeg

	Providers []string      `json:"providers,omitempty"`
	SkipCache bool          `json:"skip_cache,omitempty"`
	Filters   SearchFilters `json:"filters"`
}
