package handlers

import (
	"net/http"

	"transitwatch/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the feed is public
	},
}

// FeedHandler serves the live report feed over WebSocket
type FeedHandler struct {
	hub *services.FeedHub
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(hub *services.FeedHub) *FeedHandler {
	return &FeedHandler{
		hub: hub,
	}
}

// HandleFeed handles GET /api/v1/ws/reports. The subscriber gets the
// current snapshot right away and a new one after every change.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	id := uuid.New().String()
	h.hub.Register(id, conn)
	defer h.hub.Unregister(id)

	if err := h.hub.SendSnapshot(r.Context(), id); err != nil {
		log.Error().Err(err).Str("conn_id", id).Msg("Failed to send initial snapshot")
		return
	}

	// Subscribers never send anything meaningful; reading only detects
	// the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", id).Msg("Feed connection closed")
			}
			return
		}
	}
}
