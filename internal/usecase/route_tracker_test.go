package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/pkg/logger"
)

func newTestTracker(gw *fakeGateway, routes ...*entity.RouteConfig) (*RouteTracker, *fakeRouteRepo, *fakeSessionRepo, *memFlightRepo) {
	repo := newMemFlightRepo()
	routeRepo := &fakeRouteRepo{routes: routes}
	sessionRepo := &fakeSessionRepo{}
	e := newTestEngine(repo, gw, AggregationConfig{})
	tr := NewRouteTracker(e, routeRepo, sessionRepo, TrackingConfig{MaxConcurrentRoutes: 2}, logger.NewNopLogger(), nil)
	return tr, routeRepo, sessionRepo, repo
}

func activeRoute(id uint, origin, destination string, days int) *entity.RouteConfig {
	return &entity.RouteConfig{ID: id, Origin: origin, Destination: destination, IsActive: true, DaysAhead: days}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunOnceCompletes(t *testing.T) {
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100)))
	tr, routeRepo, sessionRepo, repo := newTestTracker(gw,
		activeRoute(1, "THR", "MHD", 2),
		&entity.RouteConfig{ID: 2, Origin: "THR", Destination: "KIH", DaysAhead: 3},
	)

	session, err := tr.RunOnce(context.Background(), entity.TriggerManual)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if session.Status != entity.SessionCompleted {
		t.Errorf("Expected completed, got %s", session.Status)
	}
	if session.TotalRoutes != 2 || session.CompletedRoutes != 2 || len(session.RouteDetails) != 2 {
		t.Errorf("Expected 2 of 2 routes completed, got %+v", session)
	}
	if session.TotalFlightsFound != 2 || session.TotalFlightsSaved != 2 {
		t.Errorf("Expected 2 flights found and saved, got %d and %d", session.TotalFlightsFound, session.TotalFlightsSaved)
	}
	if session.StartedAt == nil || session.CompletedAt == nil {
		t.Error("Expected start and completion times")
	}
	if routeRepo.trackedCount() != 1 {
		t.Errorf("Expected 1 route marked tracked, got %d", routeRepo.trackedCount())
	}
	stored, err := sessionRepo.GetByID(context.Background(), session.ID)
	if err != nil || stored.Status != entity.SessionCompleted {
		t.Errorf("Expected stored completed session, got %+v (%v)", stored, err)
	}
	if repo.snapshotCount() != 2 {
		t.Errorf("Expected 2 snapshots, got %d", repo.snapshotCount())
	}
	if tr.IsRunning() {
		t.Error("Expected run slot released")
	}
}

func TestRunOnceAllRoutesFailed(t *testing.T) {
	gw := newFakeGateway().with("alibaba", fails(entity.ProviderErrorTransport))
	tr, _, _, _ := newTestTracker(gw, activeRoute(1, "THR", "MHD", 2))

	session, err := tr.RunOnce(context.Background(), entity.TriggerManual)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if session.Status != entity.SessionFailed {
		t.Errorf("Expected failed, got %s", session.Status)
	}
	if session.FailedRoutes != 2 || session.ErrorMessage != "all routes failed" {
		t.Errorf("Expected 2 failed routes, got %d (%q)", session.FailedRoutes, session.ErrorMessage)
	}
}

func TestRunOnceCronSkipsRoutesNotDue(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	notDue := activeRoute(1, "THR", "MHD", 1)
	notDue.TrackingIntervalMinutes = 60
	notDue.LastTrackedAt = &recent

	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100)))
	tr, _, _, _ := newTestTracker(gw, notDue, activeRoute(2, "THR", "KIH", 3))
	tr.now = func() time.Time { return now }

	session, err := tr.RunOnce(context.Background(), entity.TriggerCron)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if session.TotalRoutes != 3 {
		t.Errorf("Expected only the due route's 3 days, got %d", session.TotalRoutes)
	}
	for _, d := range session.RouteDetails {
		if d.Route != "THR-KIH" {
			t.Errorf("Expected only THR-KIH, got %s", d.Route)
		}
	}

	session, err = tr.RunOnce(context.Background(), entity.TriggerManual)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if session.TotalRoutes != 4 {
		t.Errorf("Expected manual runs to take every route, got %d", session.TotalRoutes)
	}
}

func TestTriggerPauseResumeStop(t *testing.T) {
	started := make(chan struct{}, 1)
	gw := newFakeGateway().with("alibaba", func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	tr, _, sessionRepo, _ := newTestTracker(gw, activeRoute(1, "THR", "MHD", 1))
	ctx := context.Background()

	session, err := tr.Trigger(ctx, entity.TriggerAPI)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if session.Status != entity.SessionRunning || session.TriggerType != entity.TriggerAPI {
		t.Errorf("Expected running api session, got %s %s", session.Status, session.TriggerType)
	}
	<-started

	if _, err := tr.Trigger(ctx, entity.TriggerAPI); !errors.Is(err, ErrTrackingAlreadyRunning) {
		t.Errorf("Expected ErrTrackingAlreadyRunning, got %v", err)
	}
	if _, err := tr.RunOnce(ctx, entity.TriggerCron); !errors.Is(err, ErrTrackingAlreadyRunning) {
		t.Errorf("Expected ErrTrackingAlreadyRunning, got %v", err)
	}

	paused, err := tr.Pause(ctx)
	if err != nil || paused.Status != entity.SessionPaused {
		t.Fatalf("Expected paused session, got %+v (%v)", paused, err)
	}
	if _, err := tr.Pause(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Expected pausing twice to fail, got %v", err)
	}
	active, err := tr.ActiveSession(ctx)
	if err != nil || active.ID != session.ID {
		t.Errorf("Expected active session %s, got %+v (%v)", session.ID, active, err)
	}

	resumed, err := tr.Resume(ctx)
	if err != nil || resumed.Status != entity.SessionRunning || resumed.ResumedAt == nil {
		t.Fatalf("Expected resumed session, got %+v (%v)", resumed, err)
	}

	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	waitUntil(t, func() bool { return !tr.IsRunning() })

	stored, err := tr.Session(ctx, session.ID)
	if err != nil {
		t.Fatalf("Expected stored session, got %v", err)
	}
	if stored.Status != entity.SessionStopped {
		t.Errorf("Expected stopped, got %s", stored.Status)
	}
	if sessionRepo.saves < 4 {
		t.Errorf("Expected the session saved at every step, got %d saves", sessionRepo.saves)
	}

	if err := tr.Stop(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Expected ErrNoActiveSession, got %v", err)
	}
	if _, err := tr.ActiveSession(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Expected ErrNoActiveSession, got %v", err)
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	gw := newFakeGateway().with("alibaba", returns(offer("alibaba", 100)))
	tr, routeRepo, _, _ := newTestTracker(gw, activeRoute(1, "THR", "MHD", 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	waitUntil(t, func() bool { return routeRepo.trackedCount() == 1 })
	cancel()
	<-done
}

func TestSaveRoute(t *testing.T) {
	tests := []struct {
		name    string
		route   entity.RouteConfig
		wantErr bool
	}{
		{"valid lowercase", entity.RouteConfig{Origin: " thr", Destination: "mhd "}, false},
		{"same airports", entity.RouteConfig{Origin: "THR", Destination: "thr"}, true},
		{"long code", entity.RouteConfig{Origin: "TEHRAN", Destination: "MHD"}, true},
		{"negative interval", entity.RouteConfig{Origin: "THR", Destination: "MHD", TrackingIntervalMinutes: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, routeRepo, _, _ := newTestTracker(newFakeGateway())
			route := tt.route

			err := tr.SaveRoute(context.Background(), &route)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSearchParams) {
					t.Errorf("Expected ErrInvalidSearchParams, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if route.Origin != "THR" || route.Destination != "MHD" || route.DaysAhead != 7 {
				t.Errorf("Expected normalized THR-MHD with 7 days, got %+v", route)
			}
			if len(routeRepo.routes) != 1 || route.ID == 0 {
				t.Errorf("Expected route stored with an id, got %+v", routeRepo.routes)
			}
		})
	}
}

func TestCleanupOldSessionsDisabled(t *testing.T) {
	tr, _, _, _ := newTestTracker(newFakeGateway())
	n, err := tr.CleanupOldSessions(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Expected nothing deleted, got %d (%v)", n, err)
	}
}
