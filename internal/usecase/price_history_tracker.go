package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/analytics"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/metrics"
)

const snapshotLockStripes = 64

// SnapshotInput is one observed price to record
type SnapshotInput struct {
	Flight      entity.TrackedFlight
	Provider    string
	Price       int64
	ChildPrice  *int64
	InfantPrice *int64
	Capacity    int
	ScrapedAt   time.Time
	RawData     map[string]any
}

// SnapshotResult describes what happened to one input
type SnapshotResult struct {
	Flight    *entity.TrackedFlight
	Snapshot  *entity.PriceSnapshot
	Skipped   bool
	NewLowest bool
}

// CycleResult is the outcome of recording one grouped flight
type CycleResult struct {
	Flight    *entity.TrackedFlight
	Snapshots []SnapshotResult
	Lowest    *entity.LowestPriceSnapshot
	NewLowest bool
	Saved     int
	Skipped   int
	Failed    int
}

// BatchResult sums up a batch of cycles
type BatchResult struct {
	Cycles  []CycleResult
	Saved   int
	Skipped int
	Failed  int
}

// PriceHistoryTracker records price snapshots and answers history queries
type PriceHistoryTracker struct {
	flightRepo  repository.FlightRepository
	logger      logger.Logger
	metrics     *metrics.Metrics
	minInterval time.Duration
	location    *time.Location
	now         func() time.Time
	locks       [snapshotLockStripes]sync.Mutex
}

// NewPriceHistoryTracker creates a tracker. minInterval > 0 skips snapshots
// that follow the previous one of the same (flight, provider) too closely.
func NewPriceHistoryTracker(
	flightRepo repository.FlightRepository,
	minInterval time.Duration,
	location *time.Location,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *PriceHistoryTracker {
	if location == nil {
		location = time.UTC
	}
	return &PriceHistoryTracker{
		flightRepo:  flightRepo,
		logger:      logger,
		metrics:     metrics,
		minInterval: minInterval,
		location:    location,
		now:         time.Now,
	}
}

// RecordSnapshot upserts the flight, appends the snapshot with its change
// against the previous one, and moves the flight's lowest price when beaten.
func (t *PriceHistoryTracker) RecordSnapshot(ctx context.Context, in SnapshotInput) (*SnapshotResult, error) {
	flight, err := t.flightRepo.UpsertTrackedFlight(ctx, &in.Flight)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tracked flight: %w", err)
	}

	res, err := t.record(ctx, flight, in)
	if err != nil || res.Skipped {
		return res, err
	}

	if in.Price > 0 && (flight.CurrentLowestPrice == nil || in.Price < *flight.CurrentLowestPrice) {
		if _, err := t.storeLowest(ctx, flight, map[string]int64{in.Provider: in.Price}, in.ScrapedAt); err != nil {
			return res, err
		}
		if err := t.flightRepo.UpdateLowestPrice(ctx, flight.ID, in.Price, in.Provider, in.ScrapedAt); err != nil {
			return res, fmt.Errorf("failed to update lowest price: %w", err)
		}
		res.NewLowest = true
	}
	return res, nil
}

// RecordFlightCycle records every pricing option of a grouped flight and
// writes one lowest price snapshot for the cycle.
func (t *PriceHistoryTracker) RecordFlightCycle(ctx context.Context, group entity.GroupedFlight) (*CycleResult, error) {
	tracked := trackedFlightFromGroup(group, t.location)
	flight, err := t.flightRepo.UpsertTrackedFlight(ctx, &tracked)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tracked flight: %w", err)
	}

	options := make([]entity.PricingOption, len(group.PricingOptions))
	copy(options, group.PricingOptions)
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].ScrapedAt.Before(options[j].ScrapedAt)
	})

	result := &CycleResult{Flight: flight}
	prices := make(map[string]int64)
	var cycleAt time.Time
	for _, opt := range options {
		res, err := t.record(ctx, flight, snapshotInputFromOption(*flight, opt))
		if err != nil {
			result.Failed++
			t.logger.Warn("Failed to record snapshot",
				"baseFlightId", flight.BaseFlightID,
				"provider", opt.Provider,
				"error", err)
			continue
		}
		if res.Skipped {
			result.Skipped++
			continue
		}
		result.Saved++
		result.Snapshots = append(result.Snapshots, *res)
		prices[opt.Provider] = opt.Price
		if opt.ScrapedAt.After(cycleAt) {
			cycleAt = opt.ScrapedAt
		}
	}

	if len(prices) == 0 {
		return result, nil
	}

	lowest, err := t.storeLowest(ctx, flight, prices, cycleAt)
	if err != nil {
		return result, err
	}
	result.Lowest = lowest
	result.NewLowest = lowest != nil && (flight.CurrentLowestPrice == nil || lowest.LowestPrice < *flight.CurrentLowestPrice)
	if result.NewLowest {
		if err := t.flightRepo.UpdateLowestPrice(ctx, flight.ID, lowest.LowestPrice, lowest.Provider, lowest.ScrapedAt); err != nil {
			return result, fmt.Errorf("failed to update lowest price: %w", err)
		}
	}
	return result, nil
}

// RecordSearchResults records a batch of grouped flights. Individual failures
// are counted and logged, never returned.
func (t *PriceHistoryTracker) RecordSearchResults(ctx context.Context, groups []entity.GroupedFlight) BatchResult {
	var batch BatchResult
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			t.logger.Warn("Stopped recording search results", "remaining", len(groups)-len(batch.Cycles), "error", err)
			break
		}

		cycle, err := t.RecordFlightCycle(ctx, g)
		if err != nil {
			t.logger.Error("Failed to record flight cycle", "baseFlightId", g.BaseFlightID, "error", err)
			if t.metrics != nil {
				t.metrics.PersistenceErrors.Inc()
			}
			if cycle == nil {
				batch.Failed += len(g.PricingOptions)
				continue
			}
		}
		batch.Cycles = append(batch.Cycles, *cycle)
		batch.Saved += cycle.Saved
		batch.Skipped += cycle.Skipped
		batch.Failed += cycle.Failed
	}

	t.logger.Info("Recorded search results",
		"flights", len(groups),
		"saved", batch.Saved,
		"skipped", batch.Skipped,
		"failed", batch.Failed)
	return batch
}

// record appends one snapshot for an already resolved flight. Writes for the
// same (flight, provider) pair are serialized so deltas are never computed
// against a stale predecessor.
func (t *PriceHistoryTracker) record(ctx context.Context, flight *entity.TrackedFlight, in SnapshotInput) (*SnapshotResult, error) {
	mu := t.lockFor(flight.ID, in.Provider)
	mu.Lock()
	defer mu.Unlock()

	prev, err := t.flightRepo.LatestSnapshot(ctx, flight.ID, in.Provider)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	if prev != nil {
		if in.ScrapedAt.Before(prev.ScrapedAt) {
			return nil, fmt.Errorf("%w: %s %s at %s before %s", ErrOutOfOrderSnapshot,
				flight.BaseFlightID, in.Provider, in.ScrapedAt.Format(time.RFC3339), prev.ScrapedAt.Format(time.RFC3339))
		}
		if t.minInterval > 0 && in.ScrapedAt.Sub(prev.ScrapedAt) < t.minInterval {
			return &SnapshotResult{Flight: flight, Skipped: true}, nil
		}
	}

	snap := &entity.PriceSnapshot{
		TrackedFlightID: flight.ID,
		Provider:        in.Provider,
		AdultPrice:      in.Price,
		ChildPrice:      in.ChildPrice,
		InfantPrice:     in.InfantPrice,
		AvailableSeats:  in.Capacity,
		IsAvailable:     in.Capacity > 0,
		ScrapedAt:       in.ScrapedAt,
		RawData:         in.RawData,
	}
	if prev != nil {
		if amount, pct, ok := analytics.PriceChange(prev.AdultPrice, in.Price); ok {
			snap.PriceChangeAmount = &amount
			snap.PriceChangePercentage = &pct
		}
	}

	if err := t.flightRepo.AppendSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to append snapshot: %w", err)
	}
	if t.metrics != nil {
		t.metrics.SnapshotsRecorded.Inc()
	}

	return &SnapshotResult{Flight: flight, Snapshot: snap}, nil
}

// storeLowest writes a lowest price snapshot for the given provider prices
func (t *PriceHistoryTracker) storeLowest(ctx context.Context, flight *entity.TrackedFlight, prices map[string]int64, at time.Time) (*entity.LowestPriceSnapshot, error) {
	ranked := make([]entity.ProviderPrice, 0, len(prices))
	for provider, price := range prices {
		if price > 0 {
			ranked = append(ranked, entity.ProviderPrice{Provider: provider, Price: price})
		}
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Price != ranked[j].Price {
			return ranked[i].Price < ranked[j].Price
		}
		return ranked[i].Provider < ranked[j].Provider
	})

	lowest := &entity.LowestPriceSnapshot{
		TrackedFlightID: flight.ID,
		LowestPrice:     ranked[0].Price,
		Provider:        ranked[0].Provider,
		ScrapedAt:       at,
		Comparison:      entity.LowestPriceComparison{AllProviderPrices: prices},
	}
	if len(ranked) > 1 {
		second := ranked[1].Price
		diff := second - ranked[0].Price
		lowest.Comparison.SecondLowestPrice = &second
		lowest.Comparison.SecondLowestProvider = ranked[1].Provider
		lowest.Comparison.DifferenceFromSecond = &diff
	}

	prev, err := t.flightRepo.LatestLowestPriceSnapshot(ctx, flight.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load previous lowest price: %w", err)
	}
	if prev != nil {
		if amount, pct, ok := analytics.PriceChange(prev.LowestPrice, lowest.LowestPrice); ok {
			lowest.PriceChangeAmount = &amount
			lowest.PriceChangePercentage = &pct
		}
	}

	if err := t.flightRepo.AppendLowestPriceSnapshot(ctx, lowest); err != nil {
		return nil, fmt.Errorf("failed to append lowest price snapshot: %w", err)
	}
	return lowest, nil
}

func (t *PriceHistoryTracker) lockFor(flightID, provider string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(flightID))
	h.Write([]byte{0})
	h.Write([]byte(provider))
	return &t.locks[h.Sum32()%snapshotLockStripes]
}

// GetHistory returns the flight's snapshots of the last hoursBack hours
func (t *PriceHistoryTracker) GetHistory(ctx context.Context, baseFlightID string, hoursBack int) ([]entity.PriceHistoryPoint, error) {
	_, snaps, err := t.snapshots(ctx, baseFlightID, hoursBack)
	if err != nil {
		return nil, err
	}
	return analytics.HistoryPoints(snaps), nil
}

// GetChanges returns the history points where the price moved
func (t *PriceHistoryTracker) GetChanges(ctx context.Context, baseFlightID string, hoursBack int) ([]entity.PriceHistoryPoint, error) {
	history, err := t.GetHistory(ctx, baseFlightID, hoursBack)
	if err != nil {
		return nil, err
	}
	return analytics.FilterChanges(history), nil
}

// GetDailyStats returns per-day statistics over the flight's whole history
func (t *PriceHistoryTracker) GetDailyStats(ctx context.Context, baseFlightID string) ([]entity.DailyStats, error) {
	_, snaps, err := t.snapshots(ctx, baseFlightID, 0)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeDailyStats(snaps, t.location), nil
}

// GetProviderComparison ranks the latest price of every provider
func (t *PriceHistoryTracker) GetProviderComparison(ctx context.Context, baseFlightID string) (entity.ProviderComparison, error) {
	flight, err := t.flightRepo.GetTrackedFlight(ctx, baseFlightID)
	if err != nil {
		return entity.ProviderComparison{}, err
	}
	latest, err := t.flightRepo.LatestPerProvider(ctx, flight.ID)
	if err != nil {
		return entity.ProviderComparison{}, fmt.Errorf("failed to load latest prices: %w", err)
	}
	return analytics.CompareProviders(baseFlightID, latest), nil
}

// GetCapacityTrend returns seat availability over the last hoursBack hours
func (t *PriceHistoryTracker) GetCapacityTrend(ctx context.Context, baseFlightID string, hoursBack int) (entity.CapacityAnalysis, error) {
	flight, snaps, err := t.snapshots(ctx, baseFlightID, hoursBack)
	if err != nil {
		return entity.CapacityAnalysis{}, err
	}
	return analytics.AnalyzeCapacity(baseFlightID, snaps, flight.DepartureTime), nil
}

// GetLowestPriceHistory returns the per-cycle cheapest prices of the last hoursBack hours
func (t *PriceHistoryTracker) GetLowestPriceHistory(ctx context.Context, baseFlightID string, hoursBack int) ([]entity.LowestPriceSnapshot, error) {
	flight, err := t.flightRepo.GetTrackedFlight(ctx, baseFlightID)
	if err != nil {
		return nil, err
	}
	return t.flightRepo.LowestPriceHistory(ctx, flight.ID, t.since(hoursBack))
}

// CacheAge returns minutes since the route was last scraped for the date, -1 when never
func (t *PriceHistoryTracker) CacheAge(ctx context.Context, origin, destination string, date, now time.Time) (int, error) {
	last, err := t.flightRepo.LatestRouteScrape(ctx, origin, destination, date)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && last.IsZero()) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return int(now.Sub(last).Minutes()), nil
}

func (t *PriceHistoryTracker) snapshots(ctx context.Context, baseFlightID string, hoursBack int) (*entity.TrackedFlight, []entity.PriceSnapshot, error) {
	flight, err := t.flightRepo.GetTrackedFlight(ctx, baseFlightID)
	if err != nil {
		return nil, nil, err
	}
	snaps, err := t.flightRepo.Snapshots(ctx, flight.ID, t.since(hoursBack))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return flight, snaps, nil
}

// since converts a look-back window to a start time; 0 means all history
func (t *PriceHistoryTracker) since(hoursBack int) time.Time {
	if hoursBack <= 0 {
		return time.Time{}
	}
	return t.now().Add(-time.Duration(hoursBack) * time.Hour)
}

func trackedFlightFromGroup(g entity.GroupedFlight, loc *time.Location) entity.TrackedFlight {
	dep := g.Schedule.DepartureDateTime.In(loc)
	return entity.TrackedFlight{
		BaseFlightID:  g.BaseFlightID,
		FlightNumber:  g.FlightNumber,
		FlightDate:    time.Date(dep.Year(), dep.Month(), dep.Day(), 0, 0, 0, 0, time.UTC),
		Origin:        g.Route.Origin,
		Destination:   g.Route.Destination,
		AirlineCode:   g.Airline.Code,
		AirlineNameFa: g.Airline.NameFa,
		AirlineNameEn: g.Airline.NameEn,
		DepartureTime: dep,
		ArrivalTime:   g.Schedule.ArrivalDateTime,
		IsActive:      true,
	}
}

func snapshotInputFromOption(flight entity.TrackedFlight, opt entity.PricingOption) SnapshotInput {
	raw := map[string]any{
		"flight_id":     opt.FlightID,
		"cabin_class":   opt.CabinClass,
		"is_refundable": opt.IsRefundable,
		"is_charter":    opt.IsCharter,
	}
	if opt.BookingClass != "" {
		raw["booking_class"] = opt.BookingClass
	}
	if opt.TicketType != "" {
		raw["ticket_type"] = opt.TicketType
	}
	if opt.BaggageKg != nil {
		raw["baggage_kg"] = *opt.BaggageKg
	}
	if opt.OriginalID != "" {
		raw["original_id"] = opt.OriginalID
	}

	return SnapshotInput{
		Flight:      flight,
		Provider:    opt.Provider,
		Price:       opt.Price,
		ChildPrice:  opt.ChildPrice,
		InfantPrice: opt.InfantPrice,
		Capacity:    opt.Capacity,
		ScrapedAt:   opt.ScrapedAt,
		RawData:     raw,
	}
}
