package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/metrics"
	"flightprice-service/pkg/utils"
)

// TrackingConfig holds the route tracker's tunables
type TrackingConfig struct {
	MaxConcurrentRoutes  int
	DefaultDaysAhead     int
	SessionRetentionDays int
	Location             *time.Location
}

// routeTask is one (route, date) pair of a run
type routeTask struct {
	route *entity.RouteConfig
	date  time.Time
}

// RouteTracker scrapes the configured routes on a schedule and keeps one
// ScrapingSession per run. Only one run may be active at a time.
type RouteTracker struct {
	engine      *AggregationEngine
	routeRepo   repository.RouteConfigRepository
	sessionRepo repository.ScrapingSessionRepository
	cfg         TrackingConfig
	logger      logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu       sync.Mutex
	session  *entity.ScrapingSession
	cancel   context.CancelFunc
	stopped  bool
	resumeCh chan struct{}
}

// NewRouteTracker creates a tracker. metrics may be nil.
func NewRouteTracker(
	engine *AggregationEngine,
	routeRepo repository.RouteConfigRepository,
	sessionRepo repository.ScrapingSessionRepository,
	cfg TrackingConfig,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *RouteTracker {
	if cfg.MaxConcurrentRoutes <= 0 {
		cfg.MaxConcurrentRoutes = 2
	}
	if cfg.DefaultDaysAhead <= 0 {
		cfg.DefaultDaysAhead = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &RouteTracker{
		engine:      engine,
		routeRepo:   routeRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Start runs the tracker every interval until ctx is done
func (t *RouteTracker) Start(ctx context.Context, interval time.Duration) {
	t.logger.Info("Starting route tracker", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Route tracker stopped")
			return
		case <-ticker.C:
			if _, err := t.RunOnce(ctx, entity.TriggerCron); err != nil {
				if errors.Is(err, ErrTrackingAlreadyRunning) {
					t.logger.Info("Skipping scheduled run, previous run still active")
				} else {
					t.logger.Error("Scheduled tracking run failed", "error", err)
				}
			}
			if _, err := t.CleanupOldSessions(ctx); err != nil {
				t.logger.Error("Failed to clean up old sessions", "error", err)
			}
		}
	}
}

// RunOnce runs one tracking pass and blocks until it finishes
func (t *RouteTracker) RunOnce(ctx context.Context, trigger entity.TriggerType) (*entity.ScrapingSession, error) {
	runCtx, tasks, err := t.begin(ctx, trigger)
	if err != nil {
		return nil, err
	}
	return t.execute(runCtx, tasks), nil
}

// Trigger starts a tracking pass in the background and returns its session
// as soon as it is running.
func (t *RouteTracker) Trigger(ctx context.Context, trigger entity.TriggerType) (*entity.ScrapingSession, error) {
	runCtx, tasks, err := t.begin(context.WithoutCancel(ctx), trigger)
	if err != nil {
		return nil, err
	}
	snapshot := t.currentCopy()
	go t.execute(runCtx, tasks)
	return snapshot, nil
}

// begin claims the single run slot, plans the tasks and opens the session
func (t *RouteTracker) begin(ctx context.Context, trigger entity.TriggerType) (context.Context, []routeTask, error) {
	t.mu.Lock()
	if t.session != nil {
		t.mu.Unlock()
		return nil, nil, ErrTrackingAlreadyRunning
	}
	// Reserve the slot before any I/O.
	session := &entity.ScrapingSession{
		ID:          uuid.NewString(),
		TriggerType: trigger,
		Status:      entity.SessionPending,
	}
	t.session = session
	t.stopped = false
	t.resumeCh = nil
	t.mu.Unlock()

	tasks, err := t.plan(ctx, trigger)
	if err != nil {
		t.release()
		return nil, nil, err
	}

	now := t.now()
	session.TotalRoutes = len(tasks)
	session.RouteDetails = []entity.RouteDetail{}
	session.CreatedAt = now
	session.UpdatedAt = now
	if err := t.sessionRepo.Create(ctx, session); err != nil {
		t.release()
		return nil, nil, fmt.Errorf("failed to create scraping session: %w", err)
	}

	t.mu.Lock()
	if err := session.Transition(entity.SessionRunning, t.now()); err != nil {
		t.mu.Unlock()
		t.release()
		return nil, nil, err
	}
	t.saveLocked(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.logger.Info("Tracking run started",
		"sessionId", session.ID,
		"trigger", trigger,
		"tasks", len(tasks))
	return runCtx, tasks, nil
}

// plan expands active routes into (route, date) tasks. Scheduled runs only
// take routes whose interval has elapsed.
func (t *RouteTracker) plan(ctx context.Context, trigger entity.TriggerType) ([]routeTask, error) {
	routes, err := t.routeRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active routes: %w", err)
	}

	now := t.now()
	local := now.In(t.cfg.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	var tasks []routeTask
	for _, r := range routes {
		if trigger == entity.TriggerCron && !r.DueAt(now) {
			continue
		}
		days := r.DaysAhead
		if days <= 0 {
			days = t.cfg.DefaultDaysAhead
		}
		for d := 0; d < days; d++ {
			tasks = append(tasks, routeTask{route: r, date: today.AddDate(0, 0, d)})
		}
	}
	return tasks, nil
}

// execute scrapes every task with bounded concurrency and finalizes the session
func (t *RouteTracker) execute(ctx context.Context, tasks []routeTask) *entity.ScrapingSession {
	defer t.release()

	g := new(errgroup.Group)
	g.SetLimit(t.cfg.MaxConcurrentRoutes)

	var mu sync.Mutex
	done := make(map[uint]bool)
	failed := make(map[uint]bool)

	for _, task := range tasks {
		if err := t.waitIfPaused(ctx); err != nil {
			break
		}
		task := task
		g.Go(func() error {
			if err := t.waitIfPaused(ctx); err != nil {
				return nil
			}
			detail := t.trackRoute(ctx, task)
			t.recordDetail(ctx, detail)

			mu.Lock()
			done[task.route.ID] = true
			if detail.Error != "" {
				failed[task.route.ID] = true
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	finishedAt := t.now()
	seen := make(map[uint]bool)
	for _, task := range tasks {
		id := task.route.ID
		if seen[id] || !done[id] {
			continue
		}
		seen[id] = true
		if err := t.routeRepo.UpdateLastTracked(context.WithoutCancel(ctx), id, finishedAt); err != nil {
			t.logger.Error("Failed to update route last tracked time", "routeId", id, "error", err)
		}
	}

	return t.finish(ctx, len(failed) > 0)
}

// trackRoute runs one live search for a task and turns it into a route detail
func (t *RouteTracker) trackRoute(ctx context.Context, task routeTask) entity.RouteDetail {
	r := task.route
	q := entity.SearchQuery{
		Origin:        strings.ToUpper(r.Origin),
		Destination:   strings.ToUpper(r.Destination),
		DepartureDate: task.date,
		Passengers:    entity.Passengers{Adults: 1},
		UserID:        "tracker",
		Providers:     r.Settings.PreferredProviders,
		SkipCache:     true,
	}

	result, batch := t.engine.Track(ctx, q)
	detail := entity.RouteDetail{
		Route:        q.Origin + "-" + q.Destination,
		Date:         task.date.Format(utils.DATE_LAYOUT),
		Status:       string(entity.SessionCompleted),
		FlightsFound: result.Metadata.TotalFlights,
		FlightsSaved: batch.Saved,
		FinishedAt:   t.now(),
	}
	if result.Metadata.Error != "" {
		detail.Status = string(entity.SessionFailed)
		detail.Error = result.Metadata.Error
		t.logger.Warn("Route tracking failed",
			"route", detail.Route,
			"date", detail.Date,
			"error", detail.Error)
	} else {
		t.logger.Info("Route tracked",
			"route", detail.Route,
			"date", detail.Date,
			"flights", detail.FlightsFound,
			"saved", detail.FlightsSaved,
			"failedProviders", len(result.Metadata.ProvidersFailed))
	}
	return detail
}

func (t *RouteTracker) recordDetail(ctx context.Context, detail entity.RouteDetail) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return
	}
	t.session.RecordRoute(detail)
	t.session.UpdatedAt = t.now()
	t.saveLocked(context.WithoutCancel(ctx))
}

// finish moves the session to its terminal status
func (t *RouteTracker) finish(ctx context.Context, anyFailed bool) *entity.ScrapingSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session
	if s.Status == entity.SessionPaused {
		// A pause that outlived the run ends with the run.
		t.stopped = true
	}

	status := entity.SessionCompleted
	switch {
	case t.stopped:
		status = entity.SessionStopped
	case s.TotalRoutes > 0 && s.CompletedRoutes == 0 && anyFailed:
		status = entity.SessionFailed
		s.ErrorMessage = "all routes failed"
	}
	if err := s.Transition(status, t.now()); err != nil {
		t.logger.Error("Failed to finalize session", "sessionId", s.ID, "error", err)
	}
	t.saveLocked(context.WithoutCancel(ctx))

	if t.metrics != nil {
		t.metrics.TrackingSessions.WithLabelValues(string(s.Status)).Inc()
	}
	t.logger.Info("Tracking run finished",
		"sessionId", s.ID,
		"status", s.Status,
		"completedRoutes", s.CompletedRoutes,
		"failedRoutes", s.FailedRoutes,
		"flightsFound", s.TotalFlightsFound,
		"flightsSaved", s.TotalFlightsSaved,
		"durationSeconds", s.DurationSeconds)

	out := *s
	return &out
}

// Pause holds back routes that have not started yet
func (t *RouteTracker) Pause(ctx context.Context) (*entity.ScrapingSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil || t.session.Status != entity.SessionRunning {
		return nil, ErrNoActiveSession
	}
	if err := t.session.Transition(entity.SessionPaused, t.now()); err != nil {
		return nil, err
	}
	t.resumeCh = make(chan struct{})
	t.saveLocked(ctx)
	t.logger.Info("Tracking run paused", "sessionId", t.session.ID)
	out := *t.session
	return &out, nil
}

// Resume continues a paused run
func (t *RouteTracker) Resume(ctx context.Context) (*entity.ScrapingSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil || t.session.Status != entity.SessionPaused {
		return nil, ErrNoActiveSession
	}
	if err := t.session.Transition(entity.SessionRunning, t.now()); err != nil {
		return nil, err
	}
	if t.resumeCh != nil {
		close(t.resumeCh)
		t.resumeCh = nil
	}
	t.saveLocked(ctx)
	t.logger.Info("Tracking run resumed", "sessionId", t.session.ID)
	out := *t.session
	return &out, nil
}

// Stop cancels the active run. Routes already in flight finish their writes.
func (t *RouteTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil || t.cancel == nil {
		return ErrNoActiveSession
	}
	t.stopped = true
	t.cancel()
	t.logger.Info("Tracking run stop requested", "sessionId", t.session.ID)
	return nil
}

// IsRunning reports whether a run holds the slot
func (t *RouteTracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil
}

// ActiveSession returns the running or paused session
func (t *RouteTracker) ActiveSession(ctx context.Context) (*entity.ScrapingSession, error) {
	if s := t.currentCopy(); s != nil {
		return s, nil
	}
	s, err := t.sessionRepo.GetActive(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	return s, err
}

// Session returns a session by id
func (t *RouteTracker) Session(ctx context.Context, id string) (*entity.ScrapingSession, error) {
	return t.sessionRepo.GetByID(ctx, id)
}

// History pages through sessions, newest first
func (t *RouteTracker) History(ctx context.Context, limit, offset int) ([]*entity.ScrapingSession, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return t.sessionRepo.History(ctx, limit, offset)
}

// Statistics summarizes finished sessions
func (t *RouteTracker) Statistics(ctx context.Context) (*entity.SessionStatistics, error) {
	return t.sessionRepo.Statistics(ctx)
}

// Routes lists every configured route
func (t *RouteTracker) Routes(ctx context.Context) ([]*entity.RouteConfig, error) {
	return t.routeRepo.List(ctx)
}

// SaveRoute validates and stores a route configuration
func (t *RouteTracker) SaveRoute(ctx context.Context, route *entity.RouteConfig) error {
	route.Origin = strings.ToUpper(strings.TrimSpace(route.Origin))
	route.Destination = strings.ToUpper(strings.TrimSpace(route.Destination))
	if len(route.Origin) != 3 || len(route.Destination) != 3 || route.Origin == route.Destination {
		return fmt.Errorf("%w: route %s-%s", ErrInvalidSearchParams, route.Origin, route.Destination)
	}
	if route.DaysAhead <= 0 {
		route.DaysAhead = t.cfg.DefaultDaysAhead
	}
	if route.TrackingIntervalMinutes < 0 {
		return fmt.Errorf("%w: negative tracking interval", ErrInvalidSearchParams)
	}
	return t.routeRepo.Upsert(ctx, route)
}

// CleanupOldSessions deletes finished sessions older than the retention period
func (t *RouteTracker) CleanupOldSessions(ctx context.Context) (int64, error) {
	if t.cfg.SessionRetentionDays <= 0 {
		return 0, nil
	}
	before := t.now().AddDate(0, 0, -t.cfg.SessionRetentionDays)
	n, err := t.sessionRepo.DeleteFinishedBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.logger.Info("Deleted old scraping sessions", "count", n, "before", before.Format(utils.DATE_LAYOUT))
	}
	return n, nil
}

func (t *RouteTracker) waitIfPaused(ctx context.Context) error {
	t.mu.Lock()
	ch := t.resumeCh
	t.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (t *RouteTracker) saveLocked(ctx context.Context) {
	if err := t.sessionRepo.Save(ctx, t.session); err != nil {
		t.logger.Error("Failed to save scraping session", "sessionId", t.session.ID, "error", err)
	}
}

func (t *RouteTracker) currentCopy() *entity.ScrapingSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	out := *t.session
	out.RouteDetails = append([]entity.RouteDetail(nil), t.session.RouteDetails...)
	return &out
}

func (t *RouteTracker) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.session = nil
	t.cancel = nil
	t.resumeCh = nil
}
