package server

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics collects basic application counters, served as JSON at /metrics.
type Metrics struct {
	wsConnections   atomic.Int64
	sseConnections  atomic.Int64
	eventsPublished atomic.Int64
	dropped         atomic.Int64
	roundsPlayed    atomic.Int64
	startTime       time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrWSConn()       { m.wsConnections.Add(1) }
func (m *Metrics) DecrWSConn()       { m.wsConnections.Add(-1) }
func (m *Metrics) IncrSSEConn()      { m.sseConnections.Add(1) }
func (m *Metrics) DecrSSEConn()      { m.sseConnections.Add(-1) }
func (m *Metrics) IncrEvent()        { m.eventsPublished.Add(1) }
func (m *Metrics) IncrDropped()      { m.dropped.Add(1) }
func (m *Metrics) IncrRoundsPlayed() { m.roundsPlayed.Add(1) }

func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"uptime_seconds":     int(time.Since(m.startTime).Seconds()),
		"ws_connections":     m.wsConnections.Load(),
		"sse_connections":    m.sseConnections.Load(),
		"events_published":   m.eventsPublished.Load(),
		"deliveries_dropped": m.dropped.Load(),
		"rounds_played":      m.roundsPlayed.Load(),
		"goroutines":         runtime.NumGoroutine(),
		"heap_alloc_mb":      mem.HeapAlloc / 1024 / 1024,
		"sys_mb":             mem.Sys / 1024 / 1024,
	}
}
