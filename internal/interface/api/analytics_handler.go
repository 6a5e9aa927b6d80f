package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"flightprice-service/internal/usecase"
)

// defaultHoursBack is the history window when hours is not given
const defaultHoursBack = 168

// FlightDetails returns the full analytics view of one flight
func (h *Handler) FlightDetails(c echo.Context) error {
	details, err := h.analytics.FlightDetails(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

func (h *Handler) FlightHistory(c echo.Context) error {
	hours, err := hoursParam(c, defaultHoursBack)
	if err != nil {
		return badRequest(c, err.Error())
	}
	points, err := h.history.GetHistory(c.Request().Context(), c.Param("id"), hours)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"base_flight_id": c.Param("id"),
		"hours_back":     hours,
		"history":        points,
	})
}

func (h *Handler) FlightChanges(c echo.Context) error {
	hours, err := hoursParam(c, defaultHoursBack)
	if err != nil {
		return badRequest(c, err.Error())
	}
	changes, err := h.history.GetChanges(c.Request().Context(), c.Param("id"), hours)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"base_flight_id": c.Param("id"),
		"hours_back":     hours,
		"changes":        changes,
	})
}

func (h *Handler) FlightDailyStats(c echo.Context) error {
	stats, err := h.history.GetDailyStats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"base_flight_id": c.Param("id"),
		"daily_stats":    stats,
	})
}

func (h *Handler) FlightComparison(c echo.Context) error {
	comparison, err := h.history.GetProviderComparison(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, comparison)
}

func (h *Handler) FlightCapacity(c echo.Context) error {
	hours, err := hoursParam(c, 72)
	if err != nil {
		return badRequest(c, err.Error())
	}
	analysis, err := h.history.GetCapacityTrend(c.Request().Context(), c.Param("id"), hours)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, analysis)
}

func (h *Handler) FlightLowest(c echo.Context) error {
	hours, err := hoursParam(c, defaultHoursBack)
	if err != nil {
		return badRequest(c, err.Error())
	}
	snapshots, err := h.history.GetLowestPriceHistory(c.Request().Context(), c.Param("id"), hours)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"base_flight_id": c.Param("id"),
		"hours_back":     hours,
		"lowest_prices":  snapshots,
	})
}

// PriceDrops lists drops on a route for comma separated dates
func (h *Handler) PriceDrops(c echo.Context) error {
	origin := strings.ToUpper(c.Param("origin"))
	destination := strings.ToUpper(c.Param("destination"))

	var dates []time.Time
	for _, s := range strings.Split(c.QueryParam("dates"), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		d, err := usecase.ParseSearchDate(s)
		if err != nil {
			return badRequest(c, err.Error())
		}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return badRequest(c, "at least one date is required")
	}

	var threshold float64
	if v := c.QueryParam("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			return badRequest(c, "invalid threshold")
		}
		threshold = t
	}

	report, err := h.analytics.PriceDrops(c.Request().Context(), origin, destination, dates, threshold)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ScrapingStats(c echo.Context) error {
	hours, err := hoursParam(c, 24)
	if err != nil {
		return badRequest(c, err.Error())
	}
	report, err := h.analytics.ScrapingStats(c.Request().Context(), hours)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func hoursParam(c echo.Context, def int) (int, error) {
	v := c.QueryParam("hours")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("hours must be a positive integer")
	}
	return n, nil
}
