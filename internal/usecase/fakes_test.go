package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
)

// memFlightRepo is an in-memory FlightRepository
type memFlightRepo struct {
	mu        sync.Mutex
	seq       int
	flights   map[string]*entity.TrackedFlight // by base flight id
	snapshots []entity.PriceSnapshot
	lowest    []entity.LowestPriceSnapshot
	cached    []entity.CachedOffer
	cacheErr  error
	counts    []entity.ProviderScrapeCounts
	since     time.Time
}

func newMemFlightRepo() *memFlightRepo {
	return &memFlightRepo{flights: make(map[string]*entity.TrackedFlight)}
}

func (r *memFlightRepo) FindCachedOffers(ctx context.Context, origin, destination string, date time.Time, limit int) ([]entity.CachedOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.CachedOffer(nil), r.cached...), r.cacheErr
}

func (r *memFlightRepo) UpsertTrackedFlight(ctx context.Context, flight *entity.TrackedFlight) (*entity.TrackedFlight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.flights[flight.BaseFlightID]
	if !ok {
		r.seq++
		stored = &entity.TrackedFlight{ID: fmt.Sprintf("tf-%d", r.seq)}
		r.flights[flight.BaseFlightID] = stored
	}
	id, lowest, lowestProvider, lowestAt := stored.ID, stored.CurrentLowestPrice, stored.CurrentLowestPriceProvider, stored.CurrentLowestPriceUpdatedAt
	*stored = *flight
	stored.ID = id
	stored.CurrentLowestPrice, stored.CurrentLowestPriceProvider, stored.CurrentLowestPriceUpdatedAt = lowest, lowestProvider, lowestAt
	out := *stored
	return &out, nil
}

func (r *memFlightRepo) GetTrackedFlight(ctx context.Context, baseFlightID string) (*entity.TrackedFlight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[baseFlightID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *f
	return &out, nil
}

func (r *memFlightRepo) UpdateLowestPrice(ctx context.Context, trackedFlightID string, price int64, provider string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.flights {
		if f.ID == trackedFlightID {
			f.CurrentLowestPrice = &price
			f.CurrentLowestPriceProvider = provider
			f.CurrentLowestPriceUpdatedAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memFlightRepo) AppendSnapshot(ctx context.Context, s *entity.PriceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = fmt.Sprintf("snap-%d", len(r.snapshots)+1)
	r.snapshots = append(r.snapshots, *s)
	return nil
}

func (r *memFlightRepo) LatestSnapshot(ctx context.Context, trackedFlightID, provider string) (*entity.PriceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.PriceSnapshot
	for i := range r.snapshots {
		s := r.snapshots[i]
		if s.TrackedFlightID != trackedFlightID || (provider != "" && s.Provider != provider) {
			continue
		}
		if latest == nil || s.ScrapedAt.After(latest.ScrapedAt) {
			latest = &s
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *memFlightRepo) Snapshots(ctx context.Context, trackedFlightID string, since time.Time) ([]entity.PriceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.PriceSnapshot
	for _, s := range r.snapshots {
		if s.TrackedFlightID == trackedFlightID && !s.ScrapedAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScrapedAt.Before(out[j].ScrapedAt) })
	return out, nil
}

func (r *memFlightRepo) LatestPerProvider(ctx context.Context, trackedFlightID string) ([]entity.PriceSnapshot, error) {
	r.mu.Lock()
	latest := make(map[string]entity.PriceSnapshot)
	for _, s := range r.snapshots {
		if s.TrackedFlightID != trackedFlightID {
			continue
		}
		if prev, ok := latest[s.Provider]; !ok || s.ScrapedAt.After(prev.ScrapedAt) {
			latest[s.Provider] = s
		}
	}
	r.mu.Unlock()

	out := make([]entity.PriceSnapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (r *memFlightRepo) AppendLowestPriceSnapshot(ctx context.Context, s *entity.LowestPriceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = fmt.Sprintf("low-%d", len(r.lowest)+1)
	r.lowest = append(r.lowest, *s)
	return nil
}

func (r *memFlightRepo) LatestLowestPriceSnapshot(ctx context.Context, trackedFlightID string) (*entity.LowestPriceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.lowest) - 1; i >= 0; i-- {
		if r.lowest[i].TrackedFlightID == trackedFlightID {
			out := r.lowest[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memFlightRepo) LowestPriceHistory(ctx context.Context, trackedFlightID string, since time.Time) ([]entity.LowestPriceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.LowestPriceSnapshot
	for _, s := range r.lowest {
		if s.TrackedFlightID == trackedFlightID && !s.ScrapedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memFlightRepo) RecentRouteSnapshots(ctx context.Context, origin, destination string, dates []time.Time) ([]entity.CachedOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.CachedOffer(nil), r.cached...), nil
}

func (r *memFlightRepo) ScrapeCounts(ctx context.Context, since time.Time) ([]entity.ProviderScrapeCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.since = since
	return r.counts, nil
}

func (r *memFlightRepo) LatestRouteScrape(ctx context.Context, origin, destination string, date time.Time) (time.Time, error) {
	return time.Time{}, repository.ErrNotFound
}

func (r *memFlightRepo) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// providerFunc answers one provider query
type providerFunc func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error)

// fakeGateway routes queries to per-provider functions and counts calls
type fakeGateway struct {
	names []string
	funcs map[string]providerFunc
	calls atomic.Int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{funcs: make(map[string]providerFunc)}
}

func (g *fakeGateway) with(name string, fn providerFunc) *fakeGateway {
	g.names = append(g.names, name)
	g.funcs[name] = fn
	return g
}

func (g *fakeGateway) Providers() []string {
	return g.names
}

func (g *fakeGateway) Query(ctx context.Context, provider string, req entity.ProviderRequest) ([]entity.RawOffer, error) {
	g.calls.Add(1)
	fn, ok := g.funcs[provider]
	if !ok {
		return nil, &entity.ProviderError{Provider: provider, Kind: entity.ProviderErrorProvider, Err: errors.New("unknown provider")}
	}
	return fn(ctx, req)
}

func returns(offers ...entity.RawOffer) providerFunc {
	return func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error) {
		return offers, nil
	}
}

func fails(kind entity.ProviderErrorKind) providerFunc {
	return func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error) {
		return nil, &entity.ProviderError{Kind: kind, Err: errors.New("boom")}
	}
}

// hangs ignores ctx entirely, so only the engine's own timeout can end the call
func hangs(release <-chan struct{}) providerFunc {
	return func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error) {
		<-release
		return nil, nil
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	alerts []*entity.PriceDropAlert
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, alert *entity.PriceDropAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

type fakeDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *fakeDedupe) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

type fakeAirlineRepo struct {
	airlines []*entity.Airline
	err      error
}

func (r *fakeAirlineRepo) GetByCode(ctx context.Context, code string) (*entity.Airline, error) {
	for _, a := range r.airlines {
		if a.Code == code {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAirlineRepo) List(ctx context.Context) ([]*entity.Airline, error) {
	return r.airlines, r.err
}

type fakeAirportRepo struct {
	airports []*entity.Airport
}

func (r *fakeAirportRepo) GetByCode(ctx context.Context, code string) (*entity.Airport, error) {
	for _, a := range r.airports {
		if a.Code == code {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAirportRepo) List(ctx context.Context) ([]*entity.Airport, error) {
	return r.airports, nil
}

type fakeRouteRepo struct {
	mu      sync.Mutex
	routes  []*entity.RouteConfig
	tracked map[uint]time.Time
}

func (r *fakeRouteRepo) Upsert(ctx context.Context, route *entity.RouteConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	route.ID = uint(len(r.routes) + 1)
	r.routes = append(r.routes, route)
	return nil
}

func (r *fakeRouteRepo) ListActive(ctx context.Context) ([]*entity.RouteConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.RouteConfig
	for _, route := range r.routes {
		if route.IsActive {
			out = append(out, route)
		}
	}
	return out, nil
}

func (r *fakeRouteRepo) List(ctx context.Context) ([]*entity.RouteConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.RouteConfig(nil), r.routes...), nil
}

func (r *fakeRouteRepo) UpdateLastTracked(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tracked == nil {
		r.tracked = make(map[uint]time.Time)
	}
	r.tracked[id] = at
	return nil
}

func (r *fakeRouteRepo) trackedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracked)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]entity.ScrapingSession
	saves    int
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *entity.ScrapingSession) error {
	return r.Save(ctx, s)
}

func (r *fakeSessionRepo) Save(ctx context.Context, s *entity.ScrapingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = make(map[string]entity.ScrapingSession)
	}
	r.sessions[s.ID] = *s
	r.saves++
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*entity.ScrapingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSessionRepo) GetActive(ctx context.Context) (*entity.ScrapingSession, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) History(ctx context.Context, limit, offset int) ([]*entity.ScrapingSession, int64, error) {
	return nil, 0, nil
}

func (r *fakeSessionRepo) Statistics(ctx context.Context) (*entity.SessionStatistics, error) {
	return &entity.SessionStatistics{}, nil
}

func (r *fakeSessionRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// testRouter picks the first default strategy that handles a payload
type testRouter struct {
	strategies []ExtractionStrategy
}

func (r *testRouter) Register(s ExtractionStrategy) { r.strategies = append(r.strategies, s) }

func (r *testRouter) GetStrategy(raw *entity.RawSearchRequest) ExtractionStrategy {
	for _, s := range r.strategies {
		if s.CanHandle(raw) {
			return s
		}
	}
	return nil
}

var testDeparture = time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)

// offer builds a sellable THR-MHD offer for flight 452
func offer(provider string, price int64) entity.RawOffer {
	return entity.RawOffer{
		Provider:      provider,
		FlightNumber:  "452",
		AirlineCode:   "IR",
		AirlineName:   "Iran Air",
		Origin:        "THR",
		Destination:   "MHD",
		DepartureTime: testDeparture,
		ArrivalTime:   testDeparture.Add(90 * time.Minute),
		Price:         price,
		Currency:      "IRR",
		Capacity:      9,
		CabinClass:    "economy",
		ScrapedAt:     testDeparture.Add(-48 * time.Hour),
	}
}
