package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"flightprice-service/internal/domain/entity"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SearchPost accepts a search body in any supported shape
func (h *Handler) SearchPost(c echo.Context) error {
	var raw entity.RawSearchRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	return c.JSON(http.StatusOK, h.engine.SearchRaw(c.Request().Context(), h.router, &raw))
}

// SearchGet searches with query parameters
func (h *Handler) SearchGet(c echo.Context) error {
	raw, err := rawFromQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, h.engine.SearchRaw(c.Request().Context(), h.router, raw))
}

// Stream sends search events as Server-Sent Events
func (h *Handler) Stream(c echo.Context) error {
	raw, err := rawFromQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for ev := range h.engine.StreamRaw(ctx, h.router, raw) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("Failed to encode stream event", "type", ev.Type, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			// Client went away; the engine keeps persisting on its own
			h.logger.Debug("Stream client disconnected", "error", err)
			return nil
		}
		resp.Flush()
	}
	return nil
}

// WebSocket streams search events over a websocket. The search comes from
// the query string, or from the first message when the query is empty.
func (h *Handler) WebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	var raw *entity.RawSearchRequest
	if c.QueryParam("origin") != "" {
		if raw, err = rawFromQuery(c); err != nil {
			h.writeWSError(conn, err.Error())
			return nil
		}
	} else {
		raw = &entity.RawSearchRequest{}
		if err := conn.ReadJSON(raw); err != nil {
			h.writeWSError(conn, "invalid search message")
			return nil
		}
	}

	for ev := range h.engine.StreamRaw(c.Request().Context(), h.router, raw) {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("WebSocket client disconnected", "error", err)
			return nil
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "search complete"))
	return nil
}

func (h *Handler) writeWSError(conn *websocket.Conn, message string) {
	_ = conn.WriteJSON(entity.StreamEvent{Type: entity.EventError, Error: message})
}

// rawFromQuery maps query parameters onto the direct request shape
func rawFromQuery(c echo.Context) (*entity.RawSearchRequest, error) {
	raw := &entity.RawSearchRequest{}
	raw.Origin = c.QueryParam("origin")
	raw.Destination = c.QueryParam("destination")
	raw.StartDate = firstQuery(c, "date", "start_date", "departure_date")
	raw.ReturnDate = c.QueryParam("return_date")
	raw.UserID = entity.FlexString(c.QueryParam("user_id"))

	for name, dst := range map[string]*entity.FlexInt{
		"adults":   &raw.Adults,
		"children": &raw.Children,
		"infants":  &raw.Infants,
	} {
		if v := c.QueryParam(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid %s %q", name, v)
			}
			*dst = entity.FlexInt(n)
		}
	}

	if p := c.QueryParam("providers"); p != "" {
		for _, name := range strings.Split(p, ",") {
			if name = strings.TrimSpace(name); name != "" {
				raw.Providers = append(raw.Providers, name)
			}
		}
	}
	if v := c.QueryParam("skip_cache"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid skip_cache %q", v)
		}
		raw.SkipCache = skip
	}

	f := &raw.Filters
	var err error
	if f.MinPrice, err = queryInt64(c, "min_price"); err != nil {
		return nil, err
	}
	if f.MaxPrice, err = queryInt64(c, "max_price"); err != nil {
		return nil, err
	}
	f.Airline = c.QueryParam("airline")
	f.DepartureFrom = c.QueryParam("departure_from")
	f.DepartureTo = c.QueryParam("departure_to")
	f.SortBy = c.QueryParam("sort_by")
	f.SortOrder = c.QueryParam("sort_order")
	return raw, nil
}

func firstQuery(c echo.Context, names ...string) string {
	for _, name := range names {
		if v := c.QueryParam(name); v != "" {
			return v
		}
	}
	return ""
}

func queryInt64(c echo.Context, name string) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
