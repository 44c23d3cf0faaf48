package morphapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Server wraps a Hub with its HTTP surface.
type Server struct {
	hub *Hub
}

// NewServer returns a Server streaming from hub.
func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

// RegisterRoutes installs the streaming endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/morph/{symbol}/{granularity}/{layer}/stream", s.handleStream)
}

// handleStream streams one layer's delta events for one (symbol,
// granularity) pair as SSE, grounded on httpapi.handleTargetStream's
// subscribe-then-forward loop.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	granularity := r.PathValue("granularity")
	layer, ok := parseLayer(r.PathValue("layer"))
	if !ok {
		http.Error(w, fmt.Sprintf("unknown layer %q", r.PathValue("layer")), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.hub.Subscribe(symbol, granularity, layer, 64)
	defer s.hub.Unsubscribe(symbol, granularity, layer, subID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
