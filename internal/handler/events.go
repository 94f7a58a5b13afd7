package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"adgrid/internal/events"

	"github.com/labstack/echo/v4"
)

type EventsHandler struct {
	hub       *events.Hub
	heartbeat time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub, heartbeat: 25 * time.Second, done: make(chan struct{})}
}

// Close ends every open stream so the HTTP server can drain.
func (h *EventsHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Stream serves purchase and ad change events as Server-Sent Events.
func (h *EventsHandler) Stream(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Version, ev.Type, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
