package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/pkg/logger"
)

var testSearchDate = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func newTestEngine(repo *memFlightRepo, gw *fakeGateway, cfg AggregationConfig, opts ...EngineOption) *AggregationEngine {
	log := logger.NewNopLogger()
	tracker := NewPriceHistoryTracker(repo, 0, time.UTC, log, nil)
	return NewAggregationEngine(repo, gw, tracker, cfg, log, opts...)
}

func testQuery() entity.SearchQuery {
	return entity.SearchQuery{
		Origin:        "THR",
		Destination:   "MHD",
		DepartureDate: testSearchDate,
		Passengers:    entity.Passengers{Adults: 1},
	}
}

func cachedOffer(provider string, price int64, scrapedAt time.Time) entity.CachedOffer {
	return entity.CachedOffer{
		Flight: entity.TrackedFlight{
			ID:            "tf-1",
			BaseFlightID:  "Iran_452_20250110_THR_MHD",
			FlightNumber:  "452",
			FlightDate:    testSearchDate,
			Origin:        "THR",
			Destination:   "MHD",
			AirlineCode:   "IR",
			AirlineNameFa: "Iran Air",
			DepartureTime: testDeparture,
			ArrivalTime:   testDeparture.Add(90 * time.Minute),
		},
		Snapshot: entity.PriceSnapshot{
			TrackedFlightID: "tf-1",
			Provider:        provider,
			AdultPrice:      price,
			AvailableSeats:  5,
			IsAvailable:     true,
			ScrapedAt:       scrapedAt,
		},
	}
}

func TestSearchServesFreshCache(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	repo := newMemFlightRepo()
	repo.cached = []entity.CachedOffer{
		cachedOffer("alibaba", 100, now.Add(-10*time.Minute)),
		cachedOffer("safar366", 90, now.Add(-25*time.Minute)),
	}
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 80)))

	e := newTestEngine(repo, gw, AggregationConfig{})
	e.now = func() time.Time { return now }

	result := e.Search(context.Background(), testQuery())

	if calls := gw.calls.Load(); calls != 0 {
		t.Errorf("Expected no provider calls, got %d", calls)
	}
	meta := result.Metadata
	if meta.Source != entity.SourceCache || !meta.Cached {
		t.Errorf("Expected cached result from database, got source %q cached %v", meta.Source, meta.Cached)
	}
	if meta.CacheAgeMinutes == nil || *meta.CacheAgeMinutes != 10 {
		t.Errorf("Expected cache age 10, got %v", meta.CacheAgeMinutes)
	}
	if len(result.Flights) != 1 || result.Flights[0].LowestPrice != 90 {
		t.Fatalf("Expected one flight at 90, got %+v", result.Flights)
	}
	if !reflect.DeepEqual(meta.ProvidersSuccessful, []string{"alibaba", "safar366"}) {
		t.Errorf("Expected cached providers, got %v", meta.ProvidersSuccessful)
	}
}

func TestSearchCacheFreshnessBoundary(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		age        time.Duration
		wantCached bool
		wantAge    int
	}{
		{"one second under max age", 59*time.Minute + 59*time.Second, true, 60},
		{"exactly max age", 60 * time.Minute, false, 0},
		{"one second over max age", 60*time.Minute + time.Second, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemFlightRepo()
			repo.cached = []entity.CachedOffer{cachedOffer("alibaba", 100, now.Add(-tt.age))}
			gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 80)))

			e := newTestEngine(repo, gw, AggregationConfig{MaxAge: time.Hour})
			e.now = func() time.Time { return now }

			meta := e.Search(context.Background(), testQuery()).Metadata
			if meta.Cached != tt.wantCached {
				t.Fatalf("Expected cached %v, got %v", tt.wantCached, meta.Cached)
			}
			if tt.wantCached {
				if calls := gw.calls.Load(); calls != 0 {
					t.Errorf("Expected no provider calls, got %d", calls)
				}
				if meta.CacheAgeMinutes == nil || *meta.CacheAgeMinutes != tt.wantAge {
					t.Errorf("Expected cache age %d, got %v", tt.wantAge, meta.CacheAgeMinutes)
				}
			} else if calls := gw.calls.Load(); calls != 1 {
				t.Errorf("Expected 1 provider call, got %d", calls)
			}
		})
	}
}

func TestSearchKeysFlightsInLocation(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	instant := time.Date(2025, 1, 10, 2, 0, 0, 0, tehran)

	local := offer("alibaba", 100)
	local.DepartureTime = instant
	local.ArrivalTime = instant.Add(90 * time.Minute)
	utc := offer("mrbilit", 95)
	utc.DepartureTime = instant.UTC()
	utc.ArrivalTime = instant.Add(90 * time.Minute).UTC()

	repo := newMemFlightRepo()
	gw := newFakeGateway().with("alibaba", returns(local)).with("mrbilit", returns(utc))
	log := logger.NewNopLogger()
	tracker := NewPriceHistoryTracker(repo, 0, tehran, log, nil)
	e := NewAggregationEngine(repo, gw, tracker, AggregationConfig{Location: tehran}, log)

	q := testQuery()
	q.SkipCache = true
	live := e.Search(context.Background(), q)

	if len(live.Flights) != 1 {
		t.Fatalf("Expected 1 flight, got %d", len(live.Flights))
	}
	id := live.Flights[0].BaseFlightID
	if !strings.HasSuffix(id, "_452_20250110_THR_MHD") {
		t.Errorf("Expected Tehran departure date in id, got %q", id)
	}
	if live.Flights[0].AvailableProviders != 2 {
		t.Errorf("Expected 2 providers, got %d", live.Flights[0].AvailableProviders)
	}
	stored, ok := repo.flights[id]
	if !ok {
		t.Fatalf("Expected tracked flight %q", id)
	}
	if got := stored.FlightDate.Format("20060102"); got != "20250110" {
		t.Errorf("Expected flight date 20250110, got %s", got)
	}

	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	c := cachedOffer("alibaba", 100, now.Add(-5*time.Minute))
	c.Flight.DepartureTime = instant.UTC()
	c.Flight.ArrivalTime = instant.Add(90 * time.Minute).UTC()
	repo.cached = []entity.CachedOffer{c}
	e.now = func() time.Time { return now }

	cached := e.Search(context.Background(), testQuery())
	if len(cached.Flights) != 1 {
		t.Fatalf("Expected 1 cached flight, got %d", len(cached.Flights))
	}
	if cached.Flights[0].BaseFlightID != id {
		t.Errorf("Expected cached id %q, got %q", id, cached.Flights[0].BaseFlightID)
	}
}

func TestSearchGoesLive(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		cached []entity.CachedOffer
		err    error
		skip   bool
	}{
		{"stale cache", []entity.CachedOffer{cachedOffer("alibaba", 100, now.Add(-61*time.Minute))}, nil, false},
		{"exactly max age is stale", []entity.CachedOffer{cachedOffer("alibaba", 100, now.Add(-60*time.Minute))}, nil, false},
		{"empty cache", nil, nil, false},
		{"cache lookup error", nil, errors.New("db down"), false},
		{"skip cache", []entity.CachedOffer{cachedOffer("alibaba", 100, now.Add(-time.Minute))}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemFlightRepo()
			repo.cached = tt.cached
			repo.cacheErr = tt.err
			gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 80)))

			e := newTestEngine(repo, gw, AggregationConfig{})
			e.now = func() time.Time { return now }

			q := testQuery()
			q.SkipCache = tt.skip
			result := e.Search(context.Background(), q)

			if calls := gw.calls.Load(); calls != 1 {
				t.Errorf("Expected 1 provider call, got %d", calls)
			}
			if result.Metadata.Source != entity.SourceLive || result.Metadata.Cached {
				t.Errorf("Expected live result, got source %q cached %v", result.Metadata.Source, result.Metadata.Cached)
			}
			if len(result.Flights) != 1 || result.Flights[0].LowestPrice != 80 {
				t.Errorf("Expected one live flight at 80, got %+v", result.Flights)
			}
		})
	}
}

func TestSearchPartialFailure(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	repo := newMemFlightRepo()
	gw := newFakeGateway().
		with("A", returns(offer("A", 100))).
		with("B", hangs(release)).
		with("C", returns(offer("C", 90)))

	e := newTestEngine(repo, gw, AggregationConfig{ProviderTimeout: 50 * time.Millisecond})

	q := testQuery()
	q.SkipCache = true
	result := e.Search(context.Background(), q)

	if len(result.Flights) != 1 {
		t.Fatalf("Expected 1 flight, got %d", len(result.Flights))
	}
	f := result.Flights[0]
	if f.LowestPrice != 90 {
		t.Errorf("Expected lowest price 90, got %d", f.LowestPrice)
	}
	if f.AvailableProviders != 2 {
		t.Errorf("Expected 2 providers, got %d", f.AvailableProviders)
	}
	meta := result.Metadata
	if !reflect.DeepEqual(meta.ProvidersFailed, []string{"B"}) {
		t.Errorf("Expected failed [B], got %v", meta.ProvidersFailed)
	}
	if !reflect.DeepEqual(meta.ProvidersSuccessful, []string{"A", "C"}) {
		t.Errorf("Expected successful [A C], got %v", meta.ProvidersSuccessful)
	}
	if !reflect.DeepEqual(meta.ProvidersQueried, []string{"A", "B", "C"}) {
		t.Errorf("Expected queried [A B C], got %v", meta.ProvidersQueried)
	}
	if meta.Error != "" {
		t.Errorf("Expected no error, got %q", meta.Error)
	}
	if n := repo.snapshotCount(); n != 2 {
		t.Errorf("Expected 2 snapshots persisted, got %d", n)
	}
}

func TestSearchAllProvidersFailed(t *testing.T) {
	repo := newMemFlightRepo()
	gw := newFakeGateway().
		with("alibaba", fails(entity.ProviderErrorTransport)).
		with("mrbilit", fails(entity.ProviderErrorProvider))

	e := newTestEngine(repo, gw, AggregationConfig{})
	q := testQuery()
	q.SkipCache = true
	result := e.Search(context.Background(), q)

	want := "All providers failed (alibaba: transport, mrbilit: provider)"
	if result.Metadata.Error != want {
		t.Errorf("Expected %q, got %q", want, result.Metadata.Error)
	}
	if len(result.Flights) != 0 {
		t.Errorf("Expected no flights, got %d", len(result.Flights))
	}
	if n := repo.snapshotCount(); n != 0 {
		t.Errorf("Expected nothing persisted, got %d snapshots", n)
	}
}

func TestSearchEmptyProviderIsSuccess(t *testing.T) {
	repo := newMemFlightRepo()
	gw := newFakeGateway().with("alibaba", returns())

	e := newTestEngine(repo, gw, AggregationConfig{})
	q := testQuery()
	q.SkipCache = true
	result := e.Search(context.Background(), q)

	if result.Metadata.Error != "" {
		t.Errorf("Expected no error, got %q", result.Metadata.Error)
	}
	if !reflect.DeepEqual(result.Metadata.ProvidersSuccessful, []string{"alibaba"}) {
		t.Errorf("Expected alibaba successful, got %v", result.Metadata.ProvidersSuccessful)
	}
}

func TestSearchRejectsInvalidQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   entity.SearchQuery
		wantErr string
	}{
		{"missing origin", entity.SearchQuery{Destination: "MHD", DepartureDate: testSearchDate}, ErrMissingSearchParams.Error()},
		{"missing date", entity.SearchQuery{Origin: "THR", Destination: "MHD"}, ErrMissingSearchParams.Error()},
		{"same airports", entity.SearchQuery{Origin: "THR", Destination: "THR", DepartureDate: testSearchDate}, "origin and destination are the same"},
		{"bad code", entity.SearchQuery{Origin: "TEHRAN", Destination: "MHD", DepartureDate: testSearchDate}, "three letters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100)))
			e := newTestEngine(newMemFlightRepo(), gw, AggregationConfig{})

			result := e.Search(context.Background(), tt.query)

			if !strings.Contains(result.Metadata.Error, tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, result.Metadata.Error)
			}
			if calls := gw.calls.Load(); calls != 0 {
				t.Errorf("Expected no provider calls, got %d", calls)
			}
			if result.Flights == nil {
				t.Error("Expected empty flights slice, got nil")
			}
		})
	}
}

func TestSearchSelectsRequestedProviders(t *testing.T) {
	gw := newFakeGateway().
		with("alibaba", returns(offer("alibaba", 100))).
		with("mrbilit", returns(offer("mrbilit", 90))).
		with("safar366", returns(offer("safar366", 80)))
	e := newTestEngine(newMemFlightRepo(), gw, AggregationConfig{})

	q := testQuery()
	q.SkipCache = true
	q.Providers = []string{" MrBilit ", "alibaba", "unknown"}
	result := e.Search(context.Background(), q)

	if !reflect.DeepEqual(result.Metadata.ProvidersQueried, []string{"alibaba", "mrbilit"}) {
		t.Errorf("Expected queried [alibaba mrbilit], got %v", result.Metadata.ProvidersQueried)
	}
	if calls := gw.calls.Load(); calls != 2 {
		t.Errorf("Expected 2 provider calls, got %d", calls)
	}

	q.Providers = []string{"unknown"}
	result = e.Search(context.Background(), q)
	if result.Metadata.Error != "no providers available" {
		t.Errorf("Expected no providers error, got %q", result.Metadata.Error)
	}
}

func TestSearchAppliesFilters(t *testing.T) {
	cheap := offer("alibaba", 70)
	cheap.FlightNumber = "820"
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100), cheap))
	repo := newMemFlightRepo()
	e := newTestEngine(repo, gw, AggregationConfig{})

	q := testQuery()
	q.SkipCache = true
	q.Filters = entity.SearchFilters{MinPrice: 80}
	result := e.Search(context.Background(), q)

	if result.Metadata.TotalFlights != 1 || result.Flights[0].LowestPrice != 100 {
		t.Errorf("Expected only the 100 flight, got %+v", result.Flights)
	}
	if n := repo.snapshotCount(); n != 2 {
		t.Errorf("Expected filtered-out flights still persisted, got %d snapshots", n)
	}
}

func TestSearchRaw(t *testing.T) {
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100)))
	e := newTestEngine(newMemFlightRepo(), gw, AggregationConfig{})
	router := &testRouter{strategies: DefaultExtractionStrategies()}

	raw := &entity.RawSearchRequest{
		RawBatchRequest: entity.RawBatchRequest{
			Requests: []entity.RawSearchLeg{{FromDestination: "thr", ToDestination: "mhd", FromDate: "2025-01-10"}},
		},
	}
	result := e.SearchRaw(context.Background(), router, raw)
	if result.Metadata.Error != "" || len(result.Flights) != 1 {
		t.Errorf("Expected one flight and no error, got %d flights error %q", len(result.Flights), result.Metadata.Error)
	}

	result = e.SearchRaw(context.Background(), router, &entity.RawSearchRequest{})
	if result.Metadata.Error != ErrMissingSearchParams.Error() {
		t.Errorf("Expected %q, got %q", ErrMissingSearchParams.Error(), result.Metadata.Error)
	}
}

func drain(events <-chan entity.StreamEvent) []entity.StreamEvent {
	var out []entity.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []entity.StreamEvent) []entity.StreamEventType {
	types := make([]entity.StreamEventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestStreamEmitsProviderResultsThenComplete(t *testing.T) {
	repo := newMemFlightRepo()
	gw := newFakeGateway().
		with("alibaba", returns(offer("alibaba", 100))).
		with("mrbilit", fails(entity.ProviderErrorTimeout))
	e := newTestEngine(repo, gw, AggregationConfig{})

	q := testQuery()
	q.SkipCache = true
	events := drain(e.Stream(context.Background(), q))

	want := []entity.StreamEventType{
		entity.EventProviderResult, entity.EventProgress,
		entity.EventProviderResult, entity.EventProgress,
		entity.EventSearchComplete,
	}
	if got := eventTypes(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}

	terminal := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Errorf("Expected exactly one terminal event, got %d", terminal)
	}

	last := events[len(events)-2].Progress
	if last.Completed != 2 || last.Total != 2 || len(last.ProvidersRemaining) != 0 {
		t.Errorf("Expected final progress 2/2, got %+v", last)
	}

	done := events[len(events)-1].Complete
	if done.SuccessfulProviders != 1 || done.FailedProviders != 1 || done.TotalFlights != 1 {
		t.Errorf("Expected 1 success 1 failure 1 flight, got %+v", done)
	}
	if done.Cached {
		t.Error("Expected live stream, got cached")
	}
	if n := repo.snapshotCount(); n != 1 {
		t.Errorf("Expected 1 snapshot persisted before close, got %d", n)
	}
}

func TestStreamPersistsAfterClientDisconnect(t *testing.T) {
	repo := newMemFlightRepo()
	gw := newFakeGateway().
		with("alibaba", func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error) {
			time.Sleep(50 * time.Millisecond)
			return []entity.RawOffer{offer("alibaba", 100)}, nil
		})
	e := newTestEngine(repo, gw, AggregationConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	q := testQuery()
	q.SkipCache = true
	events := e.Stream(ctx, q)
	cancel()

	delivered := drain(events)
	if len(delivered) > 0 {
		t.Errorf("Expected no events after disconnect, got %v", eventTypes(delivered))
	}
	if n := repo.snapshotCount(); n != 1 {
		t.Errorf("Expected persistence to complete, got %d snapshots", n)
	}
}

func TestStreamAllFailed(t *testing.T) {
	gw := newFakeGateway().with("alibaba", fails(entity.ProviderErrorProvider))
	e := newTestEngine(newMemFlightRepo(), gw, AggregationConfig{})

	q := testQuery()
	q.SkipCache = true
	events := drain(e.Stream(context.Background(), q))

	last := events[len(events)-1]
	if last.Type != entity.EventSearchComplete {
		t.Fatalf("Expected search_complete last, got %s", last.Type)
	}
	if !strings.HasPrefix(last.Complete.Error, "All providers failed (") {
		t.Errorf("Expected all failed error, got %q", last.Complete.Error)
	}
	if events[0].Metadata == nil || events[0].Metadata.ErrorKind != string(entity.ProviderErrorProvider) {
		t.Errorf("Expected provider error kind on result, got %+v", events[0].Metadata)
	}
}

func TestStreamValidationError(t *testing.T) {
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100)))
	e := newTestEngine(newMemFlightRepo(), gw, AggregationConfig{})

	events := drain(e.Stream(context.Background(), entity.SearchQuery{Origin: "THR"}))

	if len(events) != 1 || events[0].Type != entity.EventError {
		t.Fatalf("Expected a single error event, got %v", eventTypes(events))
	}
	if events[0].Error != ErrMissingSearchParams.Error() {
		t.Errorf("Expected %q, got %q", ErrMissingSearchParams.Error(), events[0].Error)
	}
	if calls := gw.calls.Load(); calls != 0 {
		t.Errorf("Expected no provider calls, got %d", calls)
	}
}

func TestStreamServesCache(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	repo := newMemFlightRepo()
	repo.cached = []entity.CachedOffer{cachedOffer("alibaba", 100, now.Add(-5*time.Minute))}
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 80)))
	e := newTestEngine(repo, gw, AggregationConfig{})
	e.now = func() time.Time { return now }

	events := drain(e.Stream(context.Background(), testQuery()))

	want := []entity.StreamEventType{entity.EventProviderResult, entity.EventSearchComplete}
	if got := eventTypes(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	if events[0].Provider != string(entity.SourceCache) {
		t.Errorf("Expected provider %q, got %q", entity.SourceCache, events[0].Provider)
	}
	if !events[1].Complete.Cached {
		t.Error("Expected cached completion")
	}
	if calls := gw.calls.Load(); calls != 0 {
		t.Errorf("Expected no provider calls, got %d", calls)
	}
}

func TestStreamRawExtractionError(t *testing.T) {
	e := newTestEngine(newMemFlightRepo(), newFakeGateway(), AggregationConfig{})
	router := &testRouter{strategies: DefaultExtractionStrategies()}

	events := drain(e.StreamRaw(context.Background(), router, &entity.RawSearchRequest{}))
	if len(events) != 1 || events[0].Type != entity.EventError {
		t.Fatalf("Expected a single error event, got %v", eventTypes(events))
	}
}

func TestTrackBypassesCache(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	repo := newMemFlightRepo()
	repo.cached = []entity.CachedOffer{cachedOffer("alibaba", 100, now.Add(-time.Minute))}
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 80)))
	e := newTestEngine(repo, gw, AggregationConfig{})
	e.now = func() time.Time { return now }

	result, batch := e.Track(context.Background(), testQuery())

	if result.Metadata.Source != entity.SourceLive {
		t.Errorf("Expected live source, got %q", result.Metadata.Source)
	}
	if batch.Saved != 1 || len(batch.Cycles) != 1 {
		t.Errorf("Expected 1 saved snapshot in 1 cycle, got %+v", batch)
	}
}
