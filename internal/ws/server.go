// Package ws exposes the WebSocket endpoint that connects a user to the
// realtime core: it upgrades the HTTP request, registers the connection,
// marks the user online, and pumps outbound frames until the socket dies.
package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dialoghub/dialog-backend/internal/presence"
	"github.com/dialoghub/dialog-backend/internal/realtime"
)

// Inbound client frame types.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
)

// clientFrame is the JSON shape of everything a client may send.
type clientFrame struct {
	Type     string `json:"type"`
	DialogID string `json:"dialog_id,omitempty"`
}

// Handler serves GET /ws.
type Handler struct {
	reg      *realtime.Registry
	bc       *realtime.Broadcaster
	presence *presence.Tracker
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler wires the endpoint. The origin check accepts all origins;
// browsers talking to this API cross-origin are expected, and user identity
// comes from the trusted proxy layer, not the socket itself.
func NewHandler(reg *realtime.Registry, bc *realtime.Broadcaster, pt *presence.Tracker, log zerolog.Logger) *Handler {
	return &Handler{
		reg:      reg,
		bc:       bc,
		presence: pt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// Serve upgrades the connection and runs the session until the client
// disconnects. The user_id query parameter identifies the caller.
func (h *Handler) Serve(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn().Err(err).Str("user_id", userID).Msg("upgrade failed")
		return
	}

	// The session outlives the request context once the connection is
	// hijacked, so presence updates use a background context.
	ctx := context.Background()
	ch := h.reg.Register(userID)
	_ = h.presence.SetOnline(ctx, userID)
	h.bc.Connected(userID)
	h.log.Debug().Str("user_id", userID).Msg("connected")

	// Writer pump: the only goroutine writing to the socket. It ends when
	// the channel closes, either on deregistration or on replacement by a
	// newer connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug().Err(err).Str("user_id", userID).Msg("write failed")
				break
			}
		}
		_ = conn.Close()
	}()

	h.readLoop(conn, userID)

	// A reconnect may have replaced this session already. Only the current
	// handle flips the user offline; a stale session going away must not
	// clobber the presence of the connection that replaced it.
	if h.reg.Deregister(userID, ch) {
		_ = h.presence.SetOffline(ctx, userID)
	}
	<-done
	h.log.Debug().Str("user_id", userID).Msg("disconnected")
}

// readLoop consumes client frames until the socket errors out. Subscribe
// and unsubscribe are advisory: every event is broadcast regardless, so
// they are only logged. Pings refresh the presence TTL.
func (h *Handler) readLoop(conn *websocket.Conn, userID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.bc.ErrorTo(userID, "invalid frame")
			continue
		}

		switch frame.Type {
		case framePing:
			// Refresh failures are already logged by the tracker; the pong
			// still goes out so the client keeps its ping cadence.
			_ = h.presence.Refresh(context.Background(), userID)
			h.bc.Pong(userID)
		case frameSubscribe, frameUnsubscribe:
			h.log.Debug().Str("user_id", userID).Str("dialog_id", frame.DialogID).
				Str("frame", frame.Type).Msg("subscription frame")
		default:
			h.bc.ErrorTo(userID, "unknown frame type")
		}
	}
}
