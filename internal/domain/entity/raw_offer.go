// internal/domain/entity/raw_offer.go
package entity

import (
	"time"
)

// RawOffer is one provider's offer for one flight, before grouping
type RawOffer struct {
	ID                  string    `json:"-" bson:"_id,omitempty"`
	OfferKey            string    `json:"-" bson:"offerKey"` // {provider}:{baseFlightId}:{offerId} - unique index
	Provider            string    `json:"provider" bson:"provider"`
	OfferID             string    `json:"offer_id" bson:"offerId"`
	FlightNumber        string    `json:"flight_number" bson:"flightNumber"`
	AirlineCode         string    `json:"airline_code" bson:"airlineCode"`
	AirlineName         string    `json:"airline_name" bson:"airlineName"`
	AirlineNameEn       string    `json:"airline_name_en,omitempty" bson:"airlineNameEn,omitempty"`
	AirlineLogo         string    `json:"airline_logo,omitempty" bson:"airlineLogo,omitempty"`
	Origin              string    `json:"origin" bson:"origin"`
	Destination         string    `json:"destination" bson:"destination"`
	OriginCityFa        string    `json:"origin_city_fa,omitempty" bson:"originCityFa,omitempty"`
	DestinationCityFa   string    `json:"destination_city_fa,omitempty" bson:"destinationCityFa,omitempty"`
	OriginTerminal      string    `json:"origin_terminal,omitempty" bson:"originTerminal,omitempty"`
	DestinationTerminal string    `json:"destination_terminal,omitempty" bson:"destinationTerminal,omitempty"`
	DepartureTime       time.Time `json:"departure_time" bson:"departureTime"`
	ArrivalTime         time.Time `json:"arrival_time" bson:"arrivalTime"`
	DurationMinutes     int       `json:"duration_minutes" bson:"durationMinutes"`
	Stops               int       `json:"stops" bson:"stops"`
	Price               int64     `json:"price" bson:"price"`
	ChildPrice          *int64    `json:"child_price,omitempty" bson:"childPrice,omitempty"`
	InfantPrice         *int64    `json:"infant_price,omitempty" bson:"infantPrice,omitempty"`
	Currency            string    `json:"currency" bson:"currency"`
	Capacity            int       `json:"capacity" bson:"capacity"`
	CabinClass          string    `json:"cabin_class" bson:"cabinClass"`
	CabinClassFa        string    `json:"cabin_class_fa,omitempty" bson:"cabinClassFa,omitempty"`
	BookingClass        string    `json:"booking_class,omitempty" bson:"bookingClass,omitempty"`
	TicketType          string    `json:"ticket_type,omitempty" bson:"ticketType,omitempty"`
	BaggageKg           *int      `json:"baggage_kg,omitempty" bson:"baggageKg,omitempty"`
	IsRefundable        bool      `json:"is_refundable" bson:"isRefundable"`
	IsCharter           bool      `json:"is_charter" bson:"isCharter"`
	ScrapedAt           time.Time `json:"scraped_at" bson:"scrapedAt"`
	CreatedAt           time.Time `json:"-" bson:"createdAt"`
	UpdatedAt           time.Time `json:"-" bson:"updatedAt"`
}

// Valid reports whether the offer can be sold at all
func (o RawOffer) Valid() bool {
	return o.Price > 0 && o.Capacity > 0 && o.FlightNumber != "" && o.Origin != "" && o.Destination != ""
}
