package provider

import (
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/pkg/utils"
)

// UnifiedFlight is the scraper service's normalized flight document
type UnifiedFlight struct {
	BaseFlightID   string `json:"base_flight_id"`
	FlightID       string `json:"flight_id"`
	ProviderSource string `json:"provider_source"`
	FlightNumber   string `json:"flight_number"`
	Airline        struct {
		Code    string `json:"code"`
		NameFa  string `json:"name_fa"`
		NameEn  string `json:"name_en"`
		LogoURL string `json:"logo_url"`
	} `json:"airline"`
	Route struct {
		Origin      UnifiedAirport `json:"origin"`
		Destination UnifiedAirport `json:"destination"`
	} `json:"route"`
	Schedule struct {
		DepartureDateTime string `json:"departure_datetime"`
		ArrivalDateTime   string `json:"arrival_datetime"`
		DurationMinutes   int    `json:"duration_minutes"`
		Stops             int    `json:"stops"`
	} `json:"schedule"`
	Pricing struct {
		Adult    UnifiedPrice  `json:"adult"`
		Child    *UnifiedPrice `json:"child"`
		Infant   *UnifiedPrice `json:"infant"`
		Currency string        `json:"currency"`
	} `json:"pricing"`
	Cabin struct {
		Class              string `json:"class"`
		ClassDisplayNameFa string `json:"class_display_name_fa"`
		BookingClass       string `json:"booking_class"`
	} `json:"cabin"`
	TicketInfo struct {
		Type         string `json:"type"`
		IsCharter    bool   `json:"is_charter"`
		IsRefundable bool   `json:"is_refundable"`
		Capacity     int    `json:"capacity"`
	} `json:"ticket_info"`
	Baggage *struct {
		Checked *struct {
			AdultKg *float64 `json:"adult_kg"`
		} `json:"checked"`
	} `json:"baggage"`
	Metadata struct {
		ScrapedAt  string `json:"scraped_at"`
		OriginalID string `json:"original_id"`
	} `json:"metadata"`
}

// UnifiedAirport is one end of a unified route
type UnifiedAirport struct {
	AirportCode string `json:"airport_code"`
	CityNameFa  string `json:"city_name_fa"`
	Terminal    string `json:"terminal"`
}

// UnifiedPrice is a fare breakdown; only the total is used
type UnifiedPrice struct {
	BaseFare  float64 `json:"base_fare"`
	TotalFare float64 `json:"total_fare"`
}

// unifiedRequest is the body of POST /unified/{provider}
type unifiedRequest struct {
	ProviderName string       `json:"provider_name"`
	Requests     []unifiedLeg `json:"requests"`
}

type unifiedLeg struct {
	FromDestination   string `json:"from_destination"`
	ToDestination     string `json:"to_destination"`
	FromDate          string `json:"from_date"`
	ToDate            string `json:"to_date"`
	IsForeignFlight   bool   `json:"is_foreign_flight"`
	RequestedByUserID string `json:"requested_by_user_id"`
	Type              string `json:"type"`
}

func newUnifiedRequest(provider string, req entity.ProviderRequest) unifiedRequest {
	leg := unifiedLeg{
		FromDestination:   req.Origin,
		ToDestination:     req.Destination,
		FromDate:          req.DepartureDate.Format(utils.DATE_LAYOUT),
		RequestedByUserID: req.UserID,
		Type:              "1",
	}
	if req.ReturnDate != nil {
		leg.ToDate = req.ReturnDate.Format(utils.DATE_LAYOUT)
	}
	if leg.RequestedByUserID == "" {
		leg.RequestedByUserID = "1"
	}
	return unifiedRequest{ProviderName: provider, Requests: []unifiedLeg{leg}}
}

// ToRawOffer maps a unified flight to a raw offer. receivedAt stands in for
// a missing or unparsable scrape time.
func (f UnifiedFlight) ToRawOffer(provider string, receivedAt time.Time) entity.RawOffer {
	offer := entity.RawOffer{
		Provider:            provider,
		OfferID:             f.FlightID,
		FlightNumber:        strings.TrimSpace(f.FlightNumber),
		AirlineCode:         utils.NormalizeAirlineCode(f.Airline.Code),
		AirlineName:         strings.TrimSpace(f.Airline.NameFa),
		AirlineNameEn:       strings.TrimSpace(f.Airline.NameEn),
		AirlineLogo:         f.Airline.LogoURL,
		Origin:              strings.ToUpper(f.Route.Origin.AirportCode),
		Destination:         strings.ToUpper(f.Route.Destination.AirportCode),
		OriginCityFa:        f.Route.Origin.CityNameFa,
		DestinationCityFa:   f.Route.Destination.CityNameFa,
		OriginTerminal:      f.Route.Origin.Terminal,
		DestinationTerminal: f.Route.Destination.Terminal,
		DepartureTime:       parseTime(f.Schedule.DepartureDateTime),
		ArrivalTime:         parseTime(f.Schedule.ArrivalDateTime),
		DurationMinutes:     f.Schedule.DurationMinutes,
		Stops:               f.Schedule.Stops,
		Price:               int64(f.Pricing.Adult.TotalFare),
		Currency:            f.Pricing.Currency,
		Capacity:            f.TicketInfo.Capacity,
		CabinClass:          strings.ToLower(f.Cabin.Class),
		CabinClassFa:        f.Cabin.ClassDisplayNameFa,
		BookingClass:        f.Cabin.BookingClass,
		TicketType:          f.TicketInfo.Type,
		IsRefundable:        f.TicketInfo.IsRefundable,
		IsCharter:           f.TicketInfo.IsCharter,
		ScrapedAt:           parseTime(f.Metadata.ScrapedAt),
	}
	if offer.AirlineName == "" {
		offer.AirlineName = offer.AirlineNameEn
	}
	if offer.Currency == "" {
		offer.Currency = "IRR"
	}
	if offer.ScrapedAt.IsZero() {
		offer.ScrapedAt = receivedAt
	}
	if f.Pricing.Child != nil && f.Pricing.Child.TotalFare > 0 {
		v := int64(f.Pricing.Child.TotalFare)
		offer.ChildPrice = &v
	}
	if f.Pricing.Infant != nil && f.Pricing.Infant.TotalFare > 0 {
		v := int64(f.Pricing.Infant.TotalFare)
		offer.InfantPrice = &v
	}
	if f.Baggage != nil && f.Baggage.Checked != nil && f.Baggage.Checked.AdultKg != nil {
		v := int(*f.Baggage.Checked.AdultKg)
		offer.BaggageKg = &v
	}
	if offer.OfferID == "" {
		offer.OfferID = f.Metadata.OriginalID
	}
	return offer
}

// parseTime accepts RFC3339 with or without a zone; zone-less times are UTC
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, utils.DATETIME_LAYOUT, "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
