package repository

import (
	"context"
	"time"

	"flightprice-service/internal/domain/entity"
)

// FlightRepository is the persistence contract for tracked flights and their price history
type FlightRepository interface {
	// FindCachedOffers returns the latest snapshot of every (flight, provider)
	// pair on the route for the departure date, cheapest first.
	FindCachedOffers(ctx context.Context, origin, destination string, date time.Time, limit int) ([]entity.CachedOffer, error)

	UpsertTrackedFlight(ctx context.Context, flight *entity.TrackedFlight) (*entity.TrackedFlight, error)
	GetTrackedFlight(ctx context.Context, baseFlightID string) (*entity.TrackedFlight, error)
	UpdateLowestPrice(ctx context.Context, trackedFlightID string, price int64, provider string, at time.Time) error

	AppendSnapshot(ctx context.Context, snapshot *entity.PriceSnapshot) error
	// LatestSnapshot returns the newest snapshot of the flight, restricted to
	// provider when it is not empty. ErrNotFound when there is none.
	LatestSnapshot(ctx context.Context, trackedFlightID, provider string) (*entity.PriceSnapshot, error)
	// Snapshots returns the flight's snapshots since the given time, oldest first
	Snapshots(ctx context.Context, trackedFlightID string, since time.Time) ([]entity.PriceSnapshot, error)
	LatestPerProvider(ctx context.Context, trackedFlightID string) ([]entity.PriceSnapshot, error)

	AppendLowestPriceSnapshot(ctx context.Context, snapshot *entity.LowestPriceSnapshot) error
	LatestLowestPriceSnapshot(ctx context.Context, trackedFlightID string) (*entity.LowestPriceSnapshot, error)
	LowestPriceHistory(ctx context.Context, trackedFlightID string, since time.Time) ([]entity.LowestPriceSnapshot, error)

	// RecentRouteSnapshots returns the latest snapshot per (flight, provider)
	// for flights on the route departing on one of the dates.
	RecentRouteSnapshots(ctx context.Context, origin, destination string, dates []time.Time) ([]entity.CachedOffer, error)
	ScrapeCounts(ctx context.Context, since time.Time) ([]entity.ProviderScrapeCounts, error)
	LatestRouteScrape(ctx context.Context, origin, destination string, date time.Time) (time.Time, error)
}
