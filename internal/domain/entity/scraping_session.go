package entity

import (
	"errors"
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a scraping session
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

// TriggerType says what started a session
type TriggerType string

const (
	TriggerCron   TriggerType = "cron"
	TriggerManual TriggerType = "manual"
	TriggerAPI    TriggerType = "api"
)

var ErrInvalidTransition = errors.New("invalid session status transition")

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPending: {SessionRunning, SessionFailed, SessionStopped},
	SessionRunning: {SessionPaused, SessionCompleted, SessionFailed, SessionStopped},
	SessionPaused:  {SessionRunning, SessionFailed, SessionStopped},
}

// IsTerminal reports whether no further transitions are possible
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionStopped
}

// RouteDetail is the per-route outcome inside a session
type RouteDetail struct {
	Route        string    `json:"route"`
	Date         string    `json:"date"`
	Status       string    `json:"status"`
	FlightsFound int       `json:"flights_found"`
	FlightsSaved int       `json:"flights_saved"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// ScrapingSession is one run of the automated route tracker
type ScrapingSession struct {
	ID                   string        `json:"id"`
	TriggerType          TriggerType   `json:"trigger_type"`
	Status               SessionStatus `json:"status"`
	TotalRoutes          int           `json:"total_routes"`
	CompletedRoutes      int           `json:"completed_routes"`
	FailedRoutes         int           `json:"failed_routes"`
	TotalFlightsFound    int           `json:"total_flights_found"`
	TotalFlightsSaved    int           `json:"total_flights_saved"`
	TotalErrors          int           `json:"total_errors"`
	RouteDetails         []RouteDetail `json:"route_details"`
	ErrorMessage         string        `json:"error_message,omitempty"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	PausedAt             *time.Time    `json:"paused_at,omitempty"`
	ResumedAt            *time.Time    `json:"resumed_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	DurationSeconds      int           `json:"duration_seconds"`
	PauseDurationSeconds int           `json:"pause_duration_seconds"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Transition moves the session to status at now, keeping the timing fields consistent
func (s *ScrapingSession) Transition(to SessionStatus, now time.Time) error {
	allowed := false
	for _, next := range sessionTransitions[s.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}

	switch to {
	case SessionRunning:
		if s.Status == SessionPaused && s.PausedAt != nil {
			s.PauseDurationSeconds += int(now.Sub(*s.PausedAt).Seconds())
			s.ResumedAt = &now
			s.PausedAt = nil
		}
		if s.StartedAt == nil {
			s.StartedAt = &now
		}
	case SessionPaused:
		s.PausedAt = &now
		s.DurationSeconds = s.activeSeconds(now)
	default:
		if s.Status == SessionPaused && s.PausedAt != nil {
			s.PauseDurationSeconds += int(now.Sub(*s.PausedAt).Seconds())
			s.PausedAt = nil
		}
		s.CompletedAt = &now
		s.DurationSeconds = s.activeSeconds(now)
	}

	s.Status = to
	s.UpdatedAt = now
	return nil
}

func (s *ScrapingSession) activeSeconds(now time.Time) int {
	if s.StartedAt == nil {
		return 0
	}
	d := int(now.Sub(*s.StartedAt).Seconds()) - s.PauseDurationSeconds
	if d < 0 {
		return 0
	}
	return d
}

// RecordRoute folds one route outcome into the counters
func (s *ScrapingSession) RecordRoute(detail RouteDetail) {
	s.RouteDetails = append(s.RouteDetails, detail)
	s.TotalFlightsFound += detail.FlightsFound
	s.TotalFlightsSaved += detail.FlightsSaved
	if detail.Error != "" {
		s.FailedRoutes++
		s.TotalErrors++
		return
	}
	s.CompletedRoutes++
}

// SessionStatistics summarizes finished sessions
type SessionStatistics struct {
	TotalSessions          int64      `json:"total_sessions"`
	CompletedSessions      int64      `json:"completed_sessions"`
	FailedSessions         int64      `json:"failed_sessions"`
	StoppedSessions        int64      `json:"stopped_sessions"`
	AvgDurationSeconds     float64    `json:"avg_duration_seconds"`
	TotalFlightsFound      int64      `json:"total_flights_found"`
	TotalFlightsSaved      int64      `json:"total_flights_saved"`
	LastCompletedSessionAt *time.Time `json:"last_completed_session_at,omitempty"`
}
