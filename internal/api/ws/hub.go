package ws

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"

	"github.com/stacktrail/stacktrail/internal/events"
)

// Hub manages WebSocket connections backed by the engine's event bus.
type Hub struct {
	bus *events.Bus
}

// NewHub creates a new WebSocket hub.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{bus: bus}
}

// ServeFeed handles WebSocket connections for live dashboard updates.
// Subscribes to every engine topic and streams the JSON payloads the
// engine published, in order. A client that stops reading loses messages
// rather than stalling the engine.
func (h *Hub) ServeFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	messages, cleanup := h.bus.Subscribe(ctx)
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "bus closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg.Payload); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
