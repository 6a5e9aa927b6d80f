package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/internal/usecase"
	"flightprice-service/pkg/logger"
)

// SearchEngine answers searches, all at once or as a stream
type SearchEngine interface {
	SearchRaw(ctx context.Context, router usecase.RequestRouter, raw *entity.RawSearchRequest) entity.SearchResult
	StreamRaw(ctx context.Context, router usecase.RequestRouter, raw *entity.RawSearchRequest) <-chan entity.StreamEvent
}

// FlightAnalytics is the aggregated read side
type FlightAnalytics interface {
	FlightDetails(ctx context.Context, baseFlightID string) (*entity.FlightDetails, error)
	PriceDrops(ctx context.Context, origin, destination string, dates []time.Time, threshold float64) (entity.PriceDropReport, error)
	ScrapingStats(ctx context.Context, hours int) (entity.ScrapingStatsReport, error)
}

// PriceHistory is the per-flight history read side
type PriceHistory interface {
	GetHistory(ctx context.Context, baseFlightID string, hoursBack int) ([]entity.PriceHistoryPoint, error)
	GetChanges(ctx context.Context, baseFlightID string, hoursBack int) ([]entity.PriceHistoryPoint, error)
	GetDailyStats(ctx context.Context, baseFlightID string) ([]entity.DailyStats, error)
	GetProviderComparison(ctx context.Context, baseFlightID string) (entity.ProviderComparison, error)
	GetCapacityTrend(ctx context.Context, baseFlightID string, hoursBack int) (entity.CapacityAnalysis, error)
	GetLowestPriceHistory(ctx context.Context, baseFlightID string, hoursBack int) ([]entity.LowestPriceSnapshot, error)
}

// Tracking controls the scheduled route tracker
type Tracking interface {
	Trigger(ctx context.Context, trigger entity.TriggerType) (*entity.ScrapingSession, error)
	Pause(ctx context.Context) (*entity.ScrapingSession, error)
	Resume(ctx context.Context) (*entity.ScrapingSession, error)
	Stop(ctx context.Context) error
	ActiveSession(ctx context.Context) (*entity.ScrapingSession, error)
	Session(ctx context.Context, id string) (*entity.ScrapingSession, error)
	History(ctx context.Context, limit, offset int) ([]*entity.ScrapingSession, int64, error)
	Statistics(ctx context.Context) (*entity.SessionStatistics, error)
	Routes(ctx context.Context) ([]*entity.RouteConfig, error)
	SaveRoute(ctx context.Context, route *entity.RouteConfig) error
}

// Handler serves the public HTTP API
type Handler struct {
	engine    SearchEngine
	router    usecase.RequestRouter
	analytics FlightAnalytics
	history   PriceHistory
	tracking  Tracking
	logger    logger.Logger
}

// NewHandler creates the API handler. tracking may be nil when the route
// tracker is disabled; its endpoints then answer 503.
func NewHandler(engine SearchEngine, router usecase.RequestRouter, analytics FlightAnalytics, history PriceHistory, tracking Tracking, logger logger.Logger) *Handler {
	return &Handler{
		engine:    engine,
		router:    router,
		analytics: analytics,
		history:   history,
		tracking:  tracking,
		logger:    logger,
	}
}

// RegisterRoutes mounts every API route on e
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/api/v1")

	flights := v1.Group("/flights")
	flights.POST("/search", h.SearchPost)
	flights.GET("/search", h.SearchGet)
	flights.GET("/stream", h.Stream)
	flights.GET("/ws", h.WebSocket)
	flights.GET("/:id", h.FlightDetails)
	flights.GET("/:id/history", h.FlightHistory)
	flights.GET("/:id/changes", h.FlightChanges)
	flights.GET("/:id/daily-stats", h.FlightDailyStats)
	flights.GET("/:id/comparison", h.FlightComparison)
	flights.GET("/:id/capacity", h.FlightCapacity)
	flights.GET("/:id/lowest", h.FlightLowest)

	v1.GET("/routes/:origin/:destination/price-drops", h.PriceDrops)
	v1.GET("/stats/scraping", h.ScrapingStats)

	tracking := v1.Group("/tracking")
	tracking.GET("/routes", h.ListRoutes)
	tracking.PUT("/routes", h.SaveRoute)
	tracking.POST("/run", h.RunTracking)
	tracking.POST("/pause", h.PauseTracking)
	tracking.POST("/resume", h.ResumeTracking)
	tracking.POST("/stop", h.StopTracking)
	tracking.GET("/sessions", h.SessionHistory)
	tracking.GET("/sessions/active", h.ActiveSession)
	tracking.GET("/sessions/statistics", h.SessionStatistics)
	tracking.GET("/sessions/:id", h.GetSession)
}

// Health answers load balancer health checks
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "Healthy")
}

// errorResponse maps domain errors onto HTTP status codes
func (h *Handler) errorResponse(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, usecase.ErrMissingSearchParams), errors.Is(err, usecase.ErrInvalidSearchParams):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, usecase.ErrTrackingAlreadyRunning), errors.Is(err, usecase.ErrNoActiveSession),
		errors.Is(err, entity.ErrInvalidTransition):
		status, code = http.StatusConflict, "conflict"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, echo.Map{
		"error":   code,
		"message": err.Error(),
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":   "invalid_request",
		"message": message,
	})
}
