package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// handleLive streams the target's events as server-sent events until
// the client disconnects.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := s.hub.Subscribe(t.ID, 16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("live stream opened", zap.Int64("target_id", t.ID))
	defer s.logger.Debug("live stream closed", zap.Int64("target_id", t.ID))

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
