package server

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	sseRetryMs   = 1000
	sseKeepAlive = 25 * time.Second
)

// handleStream serves the event stream as server-sent events. A new observer
// first gets the event matching the current phase, then live events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	q, initial, unsubscribe := s.observe()
	defer unsubscribe()
	s.metrics.IncrSSEConn()
	defer s.metrics.DecrSSEConn()

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if initial != nil {
		if err := writeSSE(w, initial.Payload); err != nil {
			return
		}
	}
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryMs)
	if err := rc.Flush(); err != nil {
		s.logger.Error("sse flush", "err", err)
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-q.ch:
			if err := writeSSE(w, msg.Payload); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w io.Writer, payload []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
