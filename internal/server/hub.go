package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Message is one encoded event. The payload is marshaled once and shared by
// every subscriber.
type Message struct {
	Type    string
	Payload []byte
}

func Encode(eventType string, v any) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: eventType, Payload: payload}, nil
}

// Sink receives broadcast messages. Send must not block; it reports false
// when the message was dropped.
type Sink interface {
	Send(msg Message) bool
}

// Hub fans engine events out to every subscribed observer.
type Hub struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	logger  *slog.Logger
	metrics *Metrics
}

func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Hub{
		sinks:   make(map[string]Sink),
		logger:  logger,
		metrics: metrics,
	}
}

// Subscribe registers s and returns its id and an idempotent unsubscribe.
func (h *Hub) Subscribe(s Sink) (string, func()) {
	id := uuid.NewString()
	h.mu.Lock()
	h.sinks[id] = s
	h.mu.Unlock()

	var once sync.Once
	return id, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.sinks, id)
			h.mu.Unlock()
		})
	}
}

// Publish encodes v and broadcasts it. It satisfies game.Publisher.
func (h *Hub) Publish(eventType string, v any) {
	msg, err := Encode(eventType, v)
	if err != nil {
		h.logger.Error("encode event", "type", eventType, "err", err)
		return
	}
	h.Broadcast(msg)
}

// Broadcast delivers msg to every subscriber. A slow or failed subscriber
// only loses its own copy.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.metrics.IncrEvent()
	for id, s := range h.sinks {
		if !h.deliver(id, s, msg) {
			h.metrics.IncrDropped()
			h.logger.Warn("delivery dropped", "subscriber", id, "type", msg.Type)
		}
	}
}

// deliver sends msg to one sink. A panicking sink counts as a dropped delivery.
func (h *Hub) deliver(id string, s Sink, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("sink panicked", "subscriber", id, "type", msg.Type, "err", r)
			ok = false
		}
	}()
	return s.Send(msg)
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// queue is a bounded per-observer buffer drained by the observer's writer.
type queue struct {
	ch chan Message
}

func newQueue(size int) *queue {
	return &queue{ch: make(chan Message, size)}
}

func (q *queue) Send(msg Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}
