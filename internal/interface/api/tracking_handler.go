package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/usecase"
)

func (h *Handler) trackingDisabled(c echo.Context) bool {
	if h.tracking != nil {
		return false
	}
	_ = c.JSON(http.StatusServiceUnavailable, echo.Map{
		"error":   "tracking_disabled",
		"message": "route tracking is not enabled",
	})
	return true
}

func (h *Handler) ListRoutes(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	routes, err := h.tracking.Routes(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  routes,
		"total": len(routes),
	})
}

// SaveRoute creates or updates a tracked route
func (h *Handler) SaveRoute(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	route := entity.RouteConfig{IsActive: true}
	if err := c.Bind(&route); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := h.tracking.SaveRoute(c.Request().Context(), &route); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, route)
}

// RunTracking starts a tracking run in the background
func (h *Handler) RunTracking(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	session, err := h.tracking.Trigger(c.Request().Context(), entity.TriggerAPI)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, session)
}

func (h *Handler) PauseTracking(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	session, err := h.tracking.Pause(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) ResumeTracking(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	session, err := h.tracking.Resume(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) StopTracking(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	if err := h.tracking.Stop(c.Request().Context()); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "stopping"})
}

// SessionHistory pages through past sessions, newest first
func (h *Handler) SessionHistory(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	sessions, total, err := h.tracking.History(c.Request().Context(), limit, offset)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":   sessions,
		"total":  total,
		"offset": offset,
	})
}

func (h *Handler) ActiveSession(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	session, err := h.tracking.ActiveSession(c.Request().Context())
	if errors.Is(err, usecase.ErrNoActiveSession) {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":   "not_found",
			"message": err.Error(),
		})
	}
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) SessionStatistics(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	stats, err := h.tracking.Statistics(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetSession(c echo.Context) error {
	if h.trackingDisabled(c) {
		return nil
	}
	session, err := h.tracking.Session(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, session)
}
