package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"seedbazaar/internal/infrastructure/sse"
	"seedbazaar/pkg/logger"
)

const keepaliveInterval = 30 * time.Second

type EventsHandler struct {
	hub       *sse.Hub
	keepalive time.Duration
}

func NewEventsHandler(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{
		hub:       hub,
		keepalive: keepaliveInterval,
	}
}

// Stream pushes badge changes to the UI as server-sent events until the
// client goes away.
func (h *EventsHandler) Stream(c echo.Context) error {
	w := c.Response()
	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Streaming not supported")
	}

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events, cleanup := h.hub.Subscribe()
	defer cleanup()
	logger.Debug("Event stream attached from %s, %d open", c.RealIP(), h.hub.SubscriberCount())

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				logger.Warn("Dropping %s event: %v", event.Name, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-ctx.Done():
			return nil
		}
	}
}
