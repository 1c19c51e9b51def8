package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/claude/fitconsole/internal/views"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event store not configured"})
		return
	}
	v := views.NewEvents(s.docs, s.log)
	s.serveView(w, r, v, func() any { return v.State() })
}

// handleEventsStream sends the event list as server-sent events, once on
// connect and again after every change, until the client goes away.
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event store not configured"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	ch := make(chan views.EventsState, 8)
	v := views.NewEvents(s.docs, s.log)
	defer v.Close()
	v.OnChange(func(st views.EventsState) {
		select {
		case ch <- st:
		default:
			// slow subscriber, skip
		}
	})
	if err := v.Load(r.Context()); err != nil {
		return
	}
	// The current state below already covers anything queued during Load.
	for len(ch) > 0 {
		<-ch
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "events", v.State())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-ch:
			writeEvent(w, "events", st)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, mustJSON(v))
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
