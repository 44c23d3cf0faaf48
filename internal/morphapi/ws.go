package morphapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WSServer is the WebSocket counterpart to Server's SSE surface: the
// same Hub broadcast, pushed over a different wire.
type WSServer struct {
	hub *Hub
}

// NewWSServer returns a WSServer streaming from hub.
func NewWSServer(hub *Hub) *WSServer {
	return &WSServer{hub: hub}
}

// RegisterRoutes installs the WebSocket endpoint on mux.
func (s *WSServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/morph/{symbol}/{granularity}/{layer}/ws", s.handleWS)
}

// handleWS upgrades the connection, subscribes to one layer's event
// stream, and forwards every broadcast Event as a text frame until the
// client disconnects. Each connection gets a session ID for log
// correlation; the Hub itself is session-agnostic.
func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	layer, ok := parseLayer(r.PathValue("layer"))
	if !ok {
		http.Error(w, "unknown layer", http.StatusBadRequest)
		return
	}
	symbol, granularity := r.PathValue("symbol"), r.PathValue("granularity")
	sessionID := uuid.NewString()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("morphapi: websocket accept", "session", sessionID, "error", err)
		return
	}
	defer conn.CloseNow()

	// This connection never reads application data, only control frames;
	// CloseRead pumps those and cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	subID, ch := s.hub.Subscribe(symbol, granularity, layer, 16)
	defer s.hub.Unsubscribe(symbol, granularity, layer, subID)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
