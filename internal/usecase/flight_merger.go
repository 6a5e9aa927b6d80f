package usecase

import (
	"sort"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/pkg/utils"
)

// FlightMerger groups provider offers into GroupedFlights by canonical flight key.
//
// Merging is commutative and idempotent: each flight keeps at most one option
// per provider (the first one seen), and descriptive fields are always taken
// from the alphabetically first provider, so the result does not depend on
// the order providers answered in.
type FlightMerger struct {
	fallbackDate time.Time
	location     *time.Location
	groups       map[string]*flightGroup
	merged       map[string]bool
}

type flightGroup struct {
	key     utils.FlightKey
	options map[string]entity.PricingOption
	infos   map[string]entity.RawOffer
}

// NewFlightMerger creates a merger. fallbackDate keys offers that carry no
// departure time. Offer times are moved to loc (UTC when nil) so providers
// reporting one departure in different zones land in the same group.
func NewFlightMerger(fallbackDate time.Time, loc *time.Location) *FlightMerger {
	if loc == nil {
		loc = time.UTC
	}
	if !fallbackDate.IsZero() {
		y, mo, d := fallbackDate.Date()
		fallbackDate = time.Date(y, mo, d, 0, 0, 0, 0, loc)
	}
	return &FlightMerger{
		fallbackDate: fallbackDate,
		location:     loc,
		groups:       make(map[string]*flightGroup),
		merged:       make(map[string]bool),
	}
}

// Merge folds one provider's offers in and returns how many new options were added
func (m *FlightMerger) Merge(provider string, offers []entity.RawOffer) int {
	m.merged[provider] = true

	added := 0
	for _, offer := range offers {
		if offer.Price <= 0 || offer.Capacity <= 0 {
			continue
		}
		if offer.Provider == "" {
			offer.Provider = provider
		}
		if !offer.DepartureTime.IsZero() {
			offer.DepartureTime = offer.DepartureTime.In(m.location)
		}
		if !offer.ArrivalTime.IsZero() {
			offer.ArrivalTime = offer.ArrivalTime.In(m.location)
		}

		key := m.keyFor(offer)
		id := key.BaseFlightID()
		g, ok := m.groups[id]
		if !ok {
			g = &flightGroup{
				key:     key,
				options: make(map[string]entity.PricingOption),
				infos:   make(map[string]entity.RawOffer),
			}
			m.groups[id] = g
		}

		if _, seen := g.options[offer.Provider]; seen {
			continue
		}
		g.options[offer.Provider] = toPricingOption(offer)
		g.infos[offer.Provider] = offer
		added++
	}
	return added
}

// Providers returns every provider merged so far
func (m *FlightMerger) Providers() []string {
	providers := make([]string, 0, len(m.merged))
	for p := range m.merged {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// Flights returns the grouped flights, cheapest first
func (m *FlightMerger) Flights() []entity.GroupedFlight {
	flights := make([]entity.GroupedFlight, 0, len(m.groups))
	for id, g := range m.groups {
		flights = append(flights, g.build(id))
	}
	SortFlights(flights, "price", "asc")
	return flights
}

// OptionCount returns the number of pricing options across all flights
func (m *FlightMerger) OptionCount() int {
	n := 0
	for _, g := range m.groups {
		n += len(g.options)
	}
	return n
}

func (m *FlightMerger) keyFor(offer entity.RawOffer) utils.FlightKey {
	date := offer.DepartureTime
	if date.IsZero() {
		date = m.fallbackDate
	}
	airline := offer.AirlineName
	if strings.TrimSpace(airline) == "" {
		airline = utils.NormalizeAirlineCode(offer.AirlineCode)
	}
	return utils.NewFlightKey(airline, offer.FlightNumber, date, offer.Origin, offer.Destination, m.location)
}

func (g *flightGroup) build(id string) entity.GroupedFlight {
	providers := make([]string, 0, len(g.options))
	for p := range g.options {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	flight := entity.GroupedFlight{
		BaseFlightID:   id,
		FlightNumber:   g.key.FlightNumber,
		PricingOptions: make([]entity.PricingOption, 0, len(providers)),
		Route: entity.RouteInfo{
			Origin:      g.key.Origin,
			Destination: g.key.Destination,
		},
	}

	terminals := make(map[string]bool)
	for _, p := range providers {
		info := g.infos[p]
		fillFlightInfo(&flight, info)
		for _, t := range []string{info.OriginTerminal, info.DestinationTerminal} {
			if t != "" {
				terminals[t] = true
			}
		}
		flight.PricingOptions = append(flight.PricingOptions, g.options[p])
	}
	for t := range terminals {
		flight.Route.Terminals = append(flight.Route.Terminals, t)
	}
	sort.Strings(flight.Route.Terminals)

	sort.SliceStable(flight.PricingOptions, func(i, j int) bool {
		a, b := flight.PricingOptions[i], flight.PricingOptions[j]
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.Provider < b.Provider
	})

	flight.LowestPrice = flight.PricingOptions[0].Price
	flight.HighestPrice = flight.PricingOptions[len(flight.PricingOptions)-1].Price
	flight.AvailableProviders = len(providers)
	return flight
}

// fillFlightInfo sets descriptive fields that are still empty
func fillFlightInfo(f *entity.GroupedFlight, o entity.RawOffer) {
	setIfEmpty(&f.Airline.Code, utils.NormalizeAirlineCode(o.AirlineCode))
	setIfEmpty(&f.Airline.NameFa, strings.TrimSpace(o.AirlineName))
	setIfEmpty(&f.Airline.NameEn, strings.TrimSpace(o.AirlineNameEn))
	setIfEmpty(&f.Airline.LogoURL, o.AirlineLogo)
	setIfEmpty(&f.Route.OriginCityFa, o.OriginCityFa)
	setIfEmpty(&f.Route.DestinationCityFa, o.DestinationCityFa)

	if f.Schedule.DepartureDateTime.IsZero() {
		f.Schedule.DepartureDateTime = o.DepartureTime
	}
	if f.Schedule.ArrivalDateTime.IsZero() {
		f.Schedule.ArrivalDateTime = o.ArrivalTime
	}
	if f.Schedule.DurationMinutes == 0 {
		f.Schedule.DurationMinutes = o.DurationMinutes
		if f.Schedule.DurationMinutes == 0 && !o.ArrivalTime.IsZero() && o.ArrivalTime.After(o.DepartureTime) {
			f.Schedule.DurationMinutes = int(o.ArrivalTime.Sub(o.DepartureTime).Minutes())
		}
	}
	if f.Schedule.Stops == 0 {
		f.Schedule.Stops = o.Stops
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func toPricingOption(o entity.RawOffer) entity.PricingOption {
	flightID := o.OfferID
	if flightID == "" {
		flightID = utils.OfferID(o.Origin, o.Destination, o.DepartureTime, o.IsCharter,
			o.AirlineCode, o.FlightNumber, o.BookingClass, o.CabinClass)
	}
	cabin := o.CabinClass
	if cabin == "" {
		cabin = "economy"
	}

	return entity.PricingOption{
		FlightID:     flightID,
		Provider:     o.Provider,
		Price:        o.Price,
		ChildPrice:   o.ChildPrice,
		InfantPrice:  o.InfantPrice,
		CabinClass:   cabin,
		CabinClassFa: o.CabinClassFa,
		Capacity:     o.Capacity,
		IsRefundable: o.IsRefundable,
		IsCharter:    o.IsCharter,
		TicketType:   o.TicketType,
		BaggageKg:    o.BaggageKg,
		BookingClass: o.BookingClass,
		OriginalID:   o.OfferID,
		ScrapedAt:    o.ScrapedAt,
	}
}
