package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/utils"
)

// FlightDirectory holds airline and airport display data in memory. It is
// loaded once at start and fills in what providers leave out.
type FlightDirectory struct {
	airlineRepo repository.AirlineRepository
	airportRepo repository.AirportRepository
	logger      logger.Logger

	mu       sync.RWMutex
	airlines map[string]*entity.Airline
	byName   map[string]*entity.Airline
	airports map[string]*entity.Airport
}

// NewFlightDirectory creates an empty directory
func NewFlightDirectory(airlineRepo repository.AirlineRepository, airportRepo repository.AirportRepository, logger logger.Logger) *FlightDirectory {
	return &FlightDirectory{
		airlineRepo: airlineRepo,
		airportRepo: airportRepo,
		logger:      logger,
		airlines:    make(map[string]*entity.Airline),
		byName:      make(map[string]*entity.Airline),
		airports:    make(map[string]*entity.Airport),
	}
}

// Load reads every airline and airport
func (d *FlightDirectory) Load(ctx context.Context) error {
	airlines, err := d.airlineRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load airlines: %w", err)
	}
	airports, err := d.airportRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load airports: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range airlines {
		d.airlines[utils.NormalizeAirlineCode(a.Code)] = a
		if a.NameFa != "" {
			d.byName[utils.NormalizeAirlineName(a.NameFa)] = a
		}
		if a.NameEn != "" {
			d.byName[strings.ToLower(utils.NormalizeAirlineName(a.NameEn))] = a
		}
	}
	for _, a := range airports {
		d.airports[strings.ToUpper(a.Code)] = a
	}

	d.logger.Info("Flight directory loaded", "airlines", len(airlines), "airports", len(airports))
	return nil
}

// Airline finds an airline by code, falling back to its name
func (d *FlightDirectory) Airline(code, name string) (*entity.Airline, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if a, ok := d.airlines[utils.NormalizeAirlineCode(code)]; ok && code != "" {
		return a, true
	}
	n := utils.NormalizeAirlineName(name)
	if a, ok := d.byName[n]; ok {
		return a, true
	}
	a, ok := d.byName[strings.ToLower(n)]
	return a, ok
}

// Airport finds an airport by IATA code
func (d *FlightDirectory) Airport(code string) (*entity.Airport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.airports[strings.ToUpper(code)]
	return a, ok
}

// Enrich fills empty airline and city fields in place
func (d *FlightDirectory) Enrich(flights []entity.GroupedFlight) {
	for i := range flights {
		f := &flights[i]
		if a, ok := d.Airline(f.Airline.Code, f.Airline.NameFa); ok {
			setIfEmpty(&f.Airline.Code, a.Code)
			setIfEmpty(&f.Airline.NameFa, a.NameFa)
			setIfEmpty(&f.Airline.NameEn, a.NameEn)
			setIfEmpty(&f.Airline.LogoURL, a.LogoURL)
		}
		if a, ok := d.Airport(f.Route.Origin); ok {
			setIfEmpty(&f.Route.OriginCityFa, a.CityFa)
		}
		if a, ok := d.Airport(f.Route.Destination); ok {
			setIfEmpty(&f.Route.DestinationCityFa, a.CityFa)
		}
	}
}
