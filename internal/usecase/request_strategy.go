package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
)

// ExtractionStrategy turns one shape of raw search payload into a query
type ExtractionStrategy interface {
	// Name identifies the strategy in logs
	Name() string

	// CanHandle determines if this strategy recognizes the payload shape
	CanHandle(raw *entity.RawSearchRequest) bool

	// Extract builds a validated query from the payload
	Extract(raw *entity.RawSearchRequest) (entity.SearchQuery, error)
}

// RequestRouter picks the extraction strategy for a payload
type RequestRouter interface {
	// Register appends a strategy; earlier registrations win
	Register(strategy ExtractionStrategy)

	// GetStrategy returns the first strategy that can handle the payload
	GetStrategy(raw *entity.RawSearchRequest) ExtractionStrategy
}

// DefaultExtractionStrategies returns the strategies in priority order:
// wrapped batch, batch, direct.
func DefaultExtractionStrategies() []ExtractionStrategy {
	return []ExtractionStrategy{
		&WrappedBatchStrategy{},
		&BatchStrategy{},
		&DirectStrategy{},
	}
}

// WrappedBatchStrategy handles {"data": {"requests": [...]}}
type WrappedBatchStrategy struct{}

func (s *WrappedBatchStrategy) Name() string { return "wrapped_batch" }

func (s *WrappedBatchStrategy) CanHandle(raw *entity.RawSearchRequest) bool {
	return raw.Data != nil && len(raw.Data.Requests) > 0
}

func (s *WrappedBatchStrategy) Extract(raw *entity.RawSearchRequest) (entity.SearchQuery, error) {
	return buildQuery(raw, raw.Data.Requests[0])
}

// BatchStrategy handles {"requests": [...]}
type BatchStrategy struct{}

func (s *BatchStrategy) Name() string { return "batch" }

func (s *BatchStrategy) CanHandle(raw *entity.RawSearchRequest) bool {
	return len(raw.Requests) > 0
}

func (s *BatchStrategy) Extract(raw *entity.RawSearchRequest) (entity.SearchQuery, error) {
	return buildQuery(raw, raw.Requests[0])
}

// DirectStrategy reads the top-level fields and accepts anything
type DirectStrategy struct{}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) CanHandle(raw *entity.RawSearchRequest) bool {
	return true
}

func (s *DirectStrategy) Extract(raw *entity.RawSearchRequest) (entity.SearchQuery, error) {
	return buildQuery(raw, entity.RawSearchLeg{})
}

var airportCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006/01/02"}

// buildQuery resolves every field top-level first, then from the leg
func buildQuery(raw *entity.RawSearchRequest, leg entity.RawSearchLeg) (entity.SearchQuery, error) {
	top := raw.RawSearchLeg

	origin := firstNonEmpty(top.Origin, top.FromDestination, leg.FromDestination, leg.Origin)
	destination := firstNonEmpty(top.Destination, top.ToDestination, leg.ToDestination, leg.Destination)
	date := firstNonEmpty(top.StartDate, top.FromDate, top.DepartureDateAlt, top.DepartureDate,
		leg.StartDate, leg.FromDate, leg.DepartureDateAlt, leg.DepartureDate)
	returnDate := firstNonEmpty(top.ReturnDate, top.ToDate, top.ReturnDateAlt,
		leg.ReturnDate, leg.ToDate, leg.ReturnDateAlt)
	userID := firstNonEmpty(string(top.RequestedByUserID), string(top.UserID),
		string(leg.RequestedByUserID), string(leg.UserID), "1")

	if origin == "" || destination == "" || date == "" {
		return entity.SearchQuery{}, ErrMissingSearchParams
	}

	q := entity.SearchQuery{
		Origin:      strings.ToUpper(strings.TrimSpace(origin)),
		Destination: strings.ToUpper(strings.TrimSpace(destination)),
		UserID:      userID,
		Providers:   raw.Providers,
		SkipCache:   raw.SkipCache,
		Filters:     raw.Filters,
		Passengers: entity.Passengers{
			Adults:   firstPositive(int(top.Adults), int(leg.Adults), 1),
			Children: firstPositive(int(top.Children), int(leg.Children)),
			Infants:  firstPositive(int(top.Infants), int(leg.Infants)),
		},
	}

	var err error
	if q.DepartureDate, err = ParseSearchDate(date); err != nil {
		return entity.SearchQuery{}, fmt.Errorf("%w: departure date %q", ErrInvalidSearchParams, date)
	}
	if returnDate != "" {
		rd, err := ParseSearchDate(returnDate)
		if err != nil {
			return entity.SearchQuery{}, fmt.Errorf("%w: return date %q", ErrInvalidSearchParams, returnDate)
		}
		q.ReturnDate = &rd
	}

	return q, ValidateQuery(q)
}

// ValidateQuery checks the fields every search path relies on
func ValidateQuery(q entity.SearchQuery) error {
	if q.Origin == "" || q.Destination == "" || q.DepartureDate.IsZero() {
		return ErrMissingSearchParams
	}
	if !airportCodeRe.MatchString(q.Origin) || !airportCodeRe.MatchString(q.Destination) {
		return fmt.Errorf("%w: airport codes must be three letters", ErrInvalidSearchParams)
	}
	if q.Origin == q.Destination {
		return fmt.Errorf("%w: origin and destination are the same", ErrInvalidSearchParams)
	}
	if q.ReturnDate != nil && q.ReturnDate.Before(q.DepartureDate) {
		return fmt.Errorf("%w: return date before departure", ErrInvalidSearchParams)
	}
	return nil
}

// ParseSearchDate accepts the date formats clients send and keeps the calendar day
func ParseSearchDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
