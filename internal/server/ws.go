package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	wsWriteTimeout        = 5 * time.Second
	defaultWSPingInterval = 30 * time.Second
	wsReadLimit           = 4096
)

// WSMessage is the envelope for inbound WebSocket messages.
type WSMessage struct {
	Type string `json:"type"`
}

var pongMessage = Message{Type: "pong", Payload: []byte(`{"type":"pong"}`)}

// handleWS serves the same event stream as handleStream over a WebSocket,
// one JSON text frame per event.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	q, initial, unsubscribe := s.observe()
	defer unsubscribe()
	s.metrics.IncrWSConn()
	defer s.metrics.DecrWSConn()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.readPump(ctx, cancel, conn, q)
	s.writePump(ctx, conn, q, initial)
}

func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, q *queue) {
	defer cancel()
	for {
		var msg WSMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			q.Send(pongMessage)
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, q *queue, initial *Message) {
	defer func() {
		if err := conn.CloseNow(); err != nil {
			s.logger.Debug("close conn", "err", err)
		}
	}()

	if initial != nil {
		if err := writeFrame(ctx, conn, *initial); err != nil {
			return
		}
	}

	interval := s.cfg.WSPingInterval
	if interval <= 0 {
		interval = defaultWSPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case msg := <-q.ch:
			if err := writeFrame(ctx, conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, json.RawMessage(msg.Payload))
}
