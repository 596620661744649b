package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"keyshop/internal/stream"
)

type EventsHandler struct {
	hub *stream.Hub
}

func NewEventsHandler(hub *stream.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream serves the per-user live event stream as server-sent events. A
// dropped connection just ends the stream; clients reconnect with backoff
// and catch up from the persisted notifications.
func (h *EventsHandler) Stream(c echo.Context) error {
	userID := userIDFromContext(c)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ctx := c.Request().Context()
	events, cancel := h.hub.Subscribe(ctx, userID)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
