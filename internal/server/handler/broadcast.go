package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/server/ws"
)

// Broadcaster is the part of ws.Hub the handlers use.
type Broadcaster interface {
	Publish(ctx context.Context, msg domain.BusMessage) error
	Stats() ws.Stats
}

// BroadcastHandler lets operators push messages to WebSocket clients.
type BroadcastHandler struct {
	hub    Broadcaster
	logger *slog.Logger
}

// NewBroadcastHandler creates a BroadcastHandler.
func NewBroadcastHandler(hub Broadcaster, logger *slog.Logger) *BroadcastHandler {
	return &BroadcastHandler{hub: hub, logger: logHandler(logger, "broadcast")}
}

// Broadcast publishes {"type": ..., "data": ...} on a topic.
// POST /api/broadcast/{topic}
func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if body.Type == "" {
		body.Type = "broadcast"
	}
	msg := domain.BusMessage{Type: body.Type, Topic: r.PathValue("topic"), Data: body.Data}
	if err := h.hub.Publish(r.Context(), msg); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "topic": msg.Topic})
}

// Stats reports hub counters.
// GET /api/ws/stats
func (h *BroadcastHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}
