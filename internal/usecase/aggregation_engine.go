package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/metrics"
	"flightprice-service/pkg/utils"
)

// AggregationConfig holds the engine's tunables
type AggregationConfig struct {
	MaxAge             time.Duration
	ProviderTimeout    time.Duration
	PriceDropThreshold float64
	PersistTimeout     time.Duration
	CacheLimit         int
	// Location is the zone flight keys take their departure date in
	Location *time.Location
}

// DefaultAggregationConfig returns the production defaults
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		MaxAge:             60 * time.Minute,
		ProviderTimeout:    30 * time.Second,
		PriceDropThreshold: 10,
		PersistTimeout:     2 * time.Minute,
		CacheLimit:         500,
		Location:           time.UTC,
	}
}

// AggregationEngine answers searches from fresh stored prices or from a live
// fan-out to every provider, and writes live results through to history.
type AggregationEngine struct {
	flightRepo repository.FlightRepository
	gateway    repository.ProviderGateway
	tracker    *PriceHistoryTracker
	archive    repository.RawOfferRepository
	notifier   *AlertNotifier
	directory  *FlightDirectory
	metrics    *metrics.Metrics
	logger     logger.Logger
	cfg        AggregationConfig
	now        func() time.Time
}

// EngineOption configures optional collaborators
type EngineOption func(*AggregationEngine)

// WithRawOfferArchive stores every live offer as received
func WithRawOfferArchive(archive repository.RawOfferRepository) EngineOption {
	return func(e *AggregationEngine) { e.archive = archive }
}

// WithAlertNotifier publishes price drops found while persisting
func WithAlertNotifier(n *AlertNotifier) EngineOption {
	return func(e *AggregationEngine) { e.notifier = n }
}

// WithDirectory fills airline and city names from reference data
func WithDirectory(d *FlightDirectory) EngineOption {
	return func(e *AggregationEngine) { e.directory = d }
}

// WithMetrics records search and provider metrics
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *AggregationEngine) { e.metrics = m }
}

// NewAggregationEngine creates an engine. Zero config values take the defaults.
func NewAggregationEngine(
	flightRepo repository.FlightRepository,
	gateway repository.ProviderGateway,
	tracker *PriceHistoryTracker,
	cfg AggregationConfig,
	logger logger.Logger,
	opts ...EngineOption,
) *AggregationEngine {
	def := DefaultAggregationConfig()
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = def.ProviderTimeout
	}
	if cfg.PriceDropThreshold <= 0 {
		cfg.PriceDropThreshold = def.PriceDropThreshold
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.CacheLimit <= 0 {
		cfg.CacheLimit = def.CacheLimit
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	e := &AggregationEngine{
		flightRepo: flightRepo,
		gateway:    gateway,
		tracker:    tracker,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *AggregationEngine) Config() AggregationConfig {
	return e.cfg
}

// providerOutcome is one provider's resolved call
type providerOutcome struct {
	provider string
	offers   []entity.RawOffer
	err      error
	elapsed  time.Duration
}

// SearchRaw extracts a query from a loosely shaped request and searches it
func (e *AggregationEngine) SearchRaw(ctx context.Context, router RequestRouter, raw *entity.RawSearchRequest) entity.SearchResult {
	q, err := e.extract(router, raw)
	if err != nil {
		return errorResult(err, 0)
	}
	return e.Search(ctx, q)
}

// Search answers a query. Failures never escape: invalid input, provider
// failures and persistence failures are all reported in the result metadata.
func (e *AggregationEngine) Search(ctx context.Context, q entity.SearchQuery) entity.SearchResult {
	start := e.now()

	if err := ValidateQuery(q); err != nil {
		e.logger.Warn("Rejected search", "origin", q.Origin, "destination", q.Destination, "error", err)
		e.countError("validate")
		return errorResult(err, 0)
	}

	if !q.SkipCache {
		if result, ok := e.fromCache(ctx, q, start); ok {
			e.observeSearch(result.Metadata.Source, start)
			return result
		}
	}

	result, _ := e.searchLive(ctx, q, start)
	return result
}

// Track runs a live search that bypasses the cache and also reports what was
// written to history.
func (e *AggregationEngine) Track(ctx context.Context, q entity.SearchQuery) (entity.SearchResult, BatchResult) {
	start := e.now()
	if err := ValidateQuery(q); err != nil {
		e.countError("validate")
		return errorResult(err, 0), BatchResult{}
	}
	return e.searchLive(ctx, q, start)
}

func (e *AggregationEngine) searchLive(ctx context.Context, q entity.SearchQuery, start time.Time) (entity.SearchResult, BatchResult) {
	providers := e.selectProviders(q.Providers)
	if len(providers) == 0 {
		e.countError("no_providers")
		return errorResult(errors.New("no providers available"), e.since(start)), BatchResult{}
	}

	merger := NewFlightMerger(q.DepartureDate, e.cfg.Location)
	outcomes := e.fanOut(ctx, providers, q.ProviderRequest())

	meta := entity.SearchMetadata{
		ProvidersQueried:    providers,
		ProvidersSuccessful: []string{},
		ProvidersFailed:     []string{},
		Source:              entity.SourceLive,
	}
	for _, o := range outcomes {
		if o.err != nil {
			meta.ProvidersFailed = append(meta.ProvidersFailed, o.provider)
			continue
		}
		meta.ProvidersSuccessful = append(meta.ProvidersSuccessful, o.provider)
		merger.Merge(o.provider, o.offers)
	}
	sort.Strings(meta.ProvidersSuccessful)
	sort.Strings(meta.ProvidersFailed)

	flights := merger.Flights()
	e.enrich(flights)

	var batch BatchResult
	if len(meta.ProvidersSuccessful) == 0 {
		meta.Error = allFailedMessage(outcomes)
		e.logger.Error("All providers failed",
			"origin", q.Origin,
			"destination", q.Destination,
			"date", q.DepartureDate.Format(utils.DATE_LAYOUT),
			"providers", strings.Join(providers, ","))
		e.countError("all_providers_failed")
	} else {
		batch = e.persist(ctx, flights, outcomes)
	}

	flights = ApplyFilters(flights, q.Filters)
	meta.TotalFlights = len(flights)
	meta.TotalOptions = countOptions(flights)
	meta.SearchTimeMs = e.since(start)

	e.logger.Info("Live search finished",
		"origin", q.Origin,
		"destination", q.Destination,
		"date", q.DepartureDate.Format(utils.DATE_LAYOUT),
		"flights", meta.TotalFlights,
		"successful", len(meta.ProvidersSuccessful),
		"failed", len(meta.ProvidersFailed),
		"elapsedMs", meta.SearchTimeMs)
	e.observeSearch(entity.SourceLive, start)

	return entity.SearchResult{Flights: flights, Metadata: meta}, batch
}

// Stream runs a search and emits events as providers resolve. The channel
// is closed after the terminal event and after live results are persisted.
// Cancelling ctx stops delivery only; provider calls and writes carry on.
func (e *AggregationEngine) Stream(ctx context.Context, q entity.SearchQuery) <-chan entity.StreamEvent {
	providers := e.selectProviders(q.Providers)
	events := make(chan entity.StreamEvent, 2*len(providers)+2)

	go func() {
		defer close(events)
		if e.metrics != nil {
			e.metrics.ActiveStreamClients.Inc()
			defer e.metrics.ActiveStreamClients.Dec()
		}
		e.stream(ctx, q, providers, events)
	}()

	return events
}

// StreamRaw extracts a query the same way SearchRaw does and streams it
func (e *AggregationEngine) StreamRaw(ctx context.Context, router RequestRouter, raw *entity.RawSearchRequest) <-chan entity.StreamEvent {
	q, err := e.extract(router, raw)
	if err != nil {
		events := make(chan entity.StreamEvent, 1)
		events <- entity.StreamEvent{Type: entity.EventError, Error: err.Error(), Timestamp: e.now()}
		close(events)
		return events
	}
	return e.Stream(ctx, q)
}

func (e *AggregationEngine) stream(ctx context.Context, q entity.SearchQuery, providers []string, events chan<- entity.StreamEvent) {
	start := e.now()
	emit := func(ev entity.StreamEvent) {
		ev.Timestamp = e.now()
		if ctx.Err() != nil {
			return
		}
		select {
		case events <- ev:
		default:
			e.logger.Warn("Dropped stream event", "type", ev.Type, "provider", ev.Provider)
		}
	}

	if err := ValidateQuery(q); err != nil {
		e.countError("validate")
		emit(entity.StreamEvent{Type: entity.EventError, Error: err.Error()})
		return
	}

	if !q.SkipCache {
		if result, ok := e.fromCache(ctx, q, start); ok {
			emit(entity.StreamEvent{
				Type:     entity.EventProviderResult,
				Provider: string(entity.SourceCache),
				Flights:  result.Flights,
				Metadata: &entity.ProviderResultMetadata{
					ProviderName: string(entity.SourceCache),
					FlightCount:  result.Metadata.TotalFlights,
					OptionCount:  result.Metadata.TotalOptions,
				},
			})
			emit(entity.StreamEvent{
				Type: entity.EventSearchComplete,
				Complete: &entity.SearchCompleteData{
					ProvidersSuccessful: []string{},
					ProvidersFailed:     []string{},
					TotalFlights:        result.Metadata.TotalFlights,
					TotalTimeMs:         e.since(start),
					Cached:              true,
				},
			})
			e.observeSearch(entity.SourceCache, start)
			return
		}
	}

	if len(providers) == 0 {
		emit(entity.StreamEvent{Type: entity.EventError, Error: "no providers available"})
		return
	}

	// Provider calls and persistence outlive the client.
	work := context.WithoutCancel(ctx)
	req := q.ProviderRequest()
	results := make(chan providerOutcome, len(providers))
	for _, p := range providers {
		go func(provider string) {
			results <- e.callProvider(work, provider, req)
		}(p)
	}

	merger := NewFlightMerger(q.DepartureDate, e.cfg.Location)
	outcomes := make([]providerOutcome, 0, len(providers))
	remaining := make(map[string]bool, len(providers))
	for _, p := range providers {
		remaining[p] = true
	}
	var completed, successful, failed []string

	for range providers {
		o := <-results
		outcomes = append(outcomes, o)
		delete(remaining, o.provider)
		completed = append(completed, o.provider)

		meta := &entity.ProviderResultMetadata{
			ProviderName:      o.provider,
			ScrapeTimeSeconds: o.elapsed.Seconds(),
		}
		if o.err != nil {
			failed = append(failed, o.provider)
			meta.Error = o.err.Error()
			meta.ErrorKind = string(errorKind(o.err))
		} else {
			successful = append(successful, o.provider)
			meta.FlightCount = len(o.offers)
			meta.OptionCount = merger.Merge(o.provider, o.offers)
		}

		flights := merger.Flights()
		e.enrich(flights)
		emit(entity.StreamEvent{
			Type:     entity.EventProviderResult,
			Provider: o.provider,
			Flights:  ApplyFilters(flights, q.Filters),
			Metadata: meta,
		})
		emit(entity.StreamEvent{
			Type: entity.EventProgress,
			Progress: &entity.ProgressData{
				Completed:          len(completed),
				Total:              len(providers),
				ProvidersCompleted: sortedCopy(completed),
				ProvidersRemaining: sortedKeys(remaining),
			},
		})
	}

	flights := merger.Flights()
	e.enrich(flights)
	visible := ApplyFilters(flights, q.Filters)

	summary := &entity.SearchCompleteData{
		TotalProviders:      len(providers),
		SuccessfulProviders: len(successful),
		FailedProviders:     len(failed),
		ProvidersSuccessful: sortedCopy(successful),
		ProvidersFailed:     sortedCopy(failed),
		TotalFlights:        len(visible),
		TotalTimeMs:         e.since(start),
	}
	if len(successful) == 0 {
		summary.Error = allFailedMessage(outcomes)
		e.countError("all_providers_failed")
	}
	emit(entity.StreamEvent{Type: entity.EventSearchComplete, Complete: summary})
	e.observeSearch(entity.SourceLive, start)

	if len(successful) > 0 {
		e.persist(work, flights, outcomes)
	}
}

// fromCache serves the query from stored snapshots when the freshest of them
// is younger than MaxAge.
func (e *AggregationEngine) fromCache(ctx context.Context, q entity.SearchQuery, start time.Time) (entity.SearchResult, bool) {
	cached, err := e.flightRepo.FindCachedOffers(ctx, q.Origin, q.Destination, q.DepartureDate, e.cfg.CacheLimit)
	if err != nil {
		e.logger.Warn("Cache lookup failed, searching live", "origin", q.Origin, "destination", q.Destination, "error", err)
		e.countError("cache_lookup")
		return entity.SearchResult{}, false
	}
	if len(cached) == 0 {
		return entity.SearchResult{}, false
	}

	times := make([]time.Time, len(cached))
	for i, c := range cached {
		times[i] = c.Snapshot.ScrapedAt
	}
	freshest := utils.FreshestTime(times)
	now := e.now()
	if !utils.IsFresh(freshest, e.cfg.MaxAge, now) {
		e.logger.Debug("Cached prices are stale", "origin", q.Origin, "destination", q.Destination, "age", utils.FormatAge(utils.AgeMinutes(freshest, now)))
		return entity.SearchResult{}, false
	}

	merger := NewFlightMerger(q.DepartureDate, e.cfg.Location)
	byProvider := make(map[string][]entity.RawOffer)
	for _, c := range cached {
		byProvider[c.Snapshot.Provider] = append(byProvider[c.Snapshot.Provider], cachedToRawOffer(c, e.cfg.Location))
	}
	for provider, offers := range byProvider {
		merger.Merge(provider, offers)
	}

	flights := merger.Flights()
	e.enrich(flights)
	flights = ApplyFilters(flights, q.Filters)

	age := utils.AgeMinutes(freshest, now)
	e.logger.Info("Serving search from cache",
		"origin", q.Origin,
		"destination", q.Destination,
		"date", q.DepartureDate.Format(utils.DATE_LAYOUT),
		"flights", len(flights),
		"ageMinutes", age)

	return entity.SearchResult{
		Flights: flights,
		Metadata: entity.SearchMetadata{
			TotalFlights:        len(flights),
			TotalOptions:        countOptions(flights),
			ProvidersQueried:    []string{},
			ProvidersSuccessful: merger.Providers(),
			ProvidersFailed:     []string{},
			SearchTimeMs:        e.since(start),
			Source:              entity.SourceCache,
			Cached:              true,
			CacheAgeMinutes:     &age,
		},
	}, true
}

// fanOut queries every provider concurrently. The returned slice follows the
// order of providers; a failure of one never affects the others.
func (e *AggregationEngine) fanOut(ctx context.Context, providers []string, req entity.ProviderRequest) []providerOutcome {
	outcomes := make([]providerOutcome, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			outcomes[i] = e.callProvider(ctx, p, req)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// callProvider enforces the provider timeout even if the gateway ignores ctx
func (e *AggregationEngine) callProvider(ctx context.Context, provider string, req entity.ProviderRequest) providerOutcome {
	start := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()

	done := make(chan providerOutcome, 1)
	go func() {
		offers, err := e.gateway.Query(ctx, provider, req)
		done <- providerOutcome{provider: provider, offers: offers, err: err}
	}()

	var out providerOutcome
	select {
	case out = <-done:
		if out.err != nil {
			out.err = classifyProviderError(provider, out.err)
		}
	case <-ctx.Done():
		out = providerOutcome{provider: provider, err: &entity.ProviderError{
			Provider: provider,
			Kind:     entity.ProviderErrorTimeout,
			Err:      ctx.Err(),
		}}
	}
	out.elapsed = e.now().Sub(start)

	status := "success"
	if out.err != nil {
		status = string(errorKind(out.err))
		e.logger.Warn("Provider query failed",
			"provider", provider,
			"origin", req.Origin,
			"destination", req.Destination,
			"error", out.err)
	} else {
		e.logger.Debug("Provider query finished", "provider", provider, "offers", len(out.offers), "elapsed", out.elapsed)
	}
	if e.metrics != nil {
		e.metrics.ProviderRequests.WithLabelValues(provider, status).Inc()
		e.metrics.ProviderLatency.WithLabelValues(provider).Observe(out.elapsed.Seconds())
	}
	return out
}

// persist writes live results through to history. It runs on a context
// detached from the caller so a disconnect cannot cut a write short.
func (e *AggregationEngine) persist(ctx context.Context, flights []entity.GroupedFlight, outcomes []providerOutcome) BatchResult {
	if e.tracker == nil && e.archive == nil {
		return BatchResult{}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.PersistTimeout)
	defer cancel()

	if e.archive != nil {
		var raw []*entity.RawOffer
		for _, o := range outcomes {
			for i := range o.offers {
				offer := o.offers[i]
				if offer.Provider == "" {
					offer.Provider = o.provider
				}
				raw = append(raw, &offer)
			}
		}
		if len(raw) > 0 {
			if err := e.archive.UpsertMany(ctx, raw); err != nil {
				e.logger.Error("Failed to archive raw offers", "count", len(raw), "error", err)
				e.countError("archive")
			}
		}
	}

	if e.tracker == nil || len(flights) == 0 {
		return BatchResult{}
	}
	batch := e.tracker.RecordSearchResults(ctx, flights)
	if batch.Failed > 0 && e.metrics != nil {
		e.metrics.PersistenceErrors.Add(float64(batch.Failed))
	}
	if e.notifier != nil {
		e.notifier.NotifyDrops(ctx, batch.Cycles)
	}
	return batch
}

func (e *AggregationEngine) extract(router RequestRouter, raw *entity.RawSearchRequest) (entity.SearchQuery, error) {
	if raw == nil {
		return entity.SearchQuery{}, ErrMissingSearchParams
	}
	strategy := router.GetStrategy(raw)
	if strategy == nil {
		return entity.SearchQuery{}, ErrMissingSearchParams
	}
	q, err := strategy.Extract(raw)
	if err != nil {
		e.logger.Warn("Failed to extract search request", "strategy", strategy.Name(), "error", err)
		return entity.SearchQuery{}, err
	}
	return q, nil
}

// selectProviders keeps the requested providers the gateway knows, in the
// gateway's order. No request means all of them.
func (e *AggregationEngine) selectProviders(requested []string) []string {
	all := e.gateway.Providers()
	if len(requested) == 0 {
		return append([]string(nil), all...)
	}
	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[strings.ToLower(strings.TrimSpace(p))] = true
	}
	var out []string
	for _, p := range all {
		if want[strings.ToLower(p)] {
			out = append(out, p)
		}
	}
	return out
}

func (e *AggregationEngine) enrich(flights []entity.GroupedFlight) {
	if e.directory != nil {
		e.directory.Enrich(flights)
	}
}

func (e *AggregationEngine) since(start time.Time) int64 {
	return e.now().Sub(start).Milliseconds()
}

func (e *AggregationEngine) observeSearch(source entity.ResultSource, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchesTotal.WithLabelValues(string(source)).Inc()
	e.metrics.SearchDuration.Observe(e.now().Sub(start).Seconds())
}

func (e *AggregationEngine) countError(operation string) {
	if e.metrics != nil {
		e.metrics.ErrorsCount.WithLabelValues(operation).Inc()
	}
}

func classifyProviderError(provider string, err error) error {
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	kind := entity.ProviderErrorProvider
	if errors.Is(err, context.DeadlineExceeded) {
		kind = entity.ProviderErrorTimeout
	}
	return &entity.ProviderError{Provider: provider, Kind: kind, Err: err}
}

func errorKind(err error) entity.ProviderErrorKind {
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return entity.ProviderErrorProvider
}

func allFailedMessage(outcomes []providerOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			parts = append(parts, fmt.Sprintf("%s: %s", o.provider, errorKind(o.err)))
		}
	}
	sort.Strings(parts)
	return "All providers failed (" + strings.Join(parts, ", ") + ")"
}

func errorResult(err error, elapsedMs int64) entity.SearchResult {
	return entity.SearchResult{
		Flights: []entity.GroupedFlight{},
		Metadata: entity.SearchMetadata{
			ProvidersQueried:    []string{},
			ProvidersSuccessful: []string{},
			ProvidersFailed:     []string{},
			SearchTimeMs:        elapsedMs,
			Error:               err.Error(),
		},
	}
}

func countOptions(flights []entity.GroupedFlight) int {
	n := 0
	for _, f := range flights {
		n += len(f.PricingOptions)
	}
	return n
}

func sortedCopy(values []string) []string {
	out := append([]string{}, values...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// cachedToRawOffer rebuilds an offer from stored data so cached results go
// through the same merge as live ones. Stored times come back in the
// database's zone and are moved to loc.
func cachedToRawOffer(c entity.CachedOffer, loc *time.Location) entity.RawOffer {
	f, s := c.Flight, c.Snapshot
	offer := entity.RawOffer{
		Provider:      s.Provider,
		FlightNumber:  f.FlightNumber,
		AirlineCode:   f.AirlineCode,
		AirlineName:   f.AirlineNameFa,
		AirlineNameEn: f.AirlineNameEn,
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime.In(loc),
		ArrivalTime:   f.ArrivalTime.In(loc),
		Price:         s.AdultPrice,
		ChildPrice:    s.ChildPrice,
		InfantPrice:   s.InfantPrice,
		Capacity:      s.AvailableSeats,
		ScrapedAt:     s.ScrapedAt,
	}
	if offer.AirlineName == "" {
		offer.AirlineName = f.AirlineNameEn
	}
	if s.RawData != nil {
		offer.OfferID, _ = s.RawData["flight_id"].(string)
		offer.CabinClass, _ = s.RawData["cabin_class"].(string)
		offer.BookingClass, _ = s.RawData["booking_class"].(string)
		offer.TicketType, _ = s.RawData["ticket_type"].(string)
		offer.IsRefundable, _ = s.RawData["is_refundable"].(bool)
		offer.IsCharter, _ = s.RawData["is_charter"].(bool)
		if kg, ok := s.RawData["baggage_kg"].(float64); ok {
			v := int(kg)
			offer.BaggageKg = &v
		} else if kg, ok := s.RawData["baggage_kg"].(int); ok {
			offer.BaggageKg = &kg
		}
	}
	return offer
}
