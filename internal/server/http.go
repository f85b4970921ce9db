package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/Russioo/pixelarena/internal/auth"
	"github.com/Russioo/pixelarena/internal/config"
	"github.com/Russioo/pixelarena/internal/game"
	"github.com/Russioo/pixelarena/internal/leaderboard"
	"github.com/Russioo/pixelarena/internal/round"
	"github.com/Russioo/pixelarena/internal/store"
)

const (
	sinkBuffer   = 64
	maxStartBody = 1 << 20
)

// Engine is the round facade the HTTP layer drives.
type Engine interface {
	State(withPixels bool) game.State
	Ensure() bool
	RequestStart(opts game.FlowOptions) (game.StartResult, error)
	Attach(fn func(eventType string, initial any, ok bool))
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg         *config.Config
	engine      Engine
	hub         *Hub
	winners     store.WinnerStore
	leaderboard *leaderboard.Service
	logger      *slog.Logger
	mux         *http.ServeMux
	metrics     *Metrics
	limiter     *RateLimiter
	now         func() time.Time
}

func New(cfg *config.Config, engine Engine, hub *Hub, metrics *Metrics, logger *slog.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		hub:     hub,
		logger:  logger,
		mux:     http.NewServeMux(),
		metrics: metrics,
		limiter: NewRateLimiter(30, 60),
		now:     time.Now,
	}
	s.routes()
	return s
}

func (s *Server) SetWinnerStore(ws store.WinnerStore) {
	s.winners = ws
}

func (s *Server) SetLeaderboard(lb *leaderboard.Service) {
	s.leaderboard = lb
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Streams are long-lived: no compression, no rate limit.
	s.mux.HandleFunc("GET /api/stream", s.handleStream)
	s.mux.HandleFunc("GET /ws", s.handleWS)

	s.mux.Handle("GET /api/round/state", s.api(s.handleState))
	s.mux.Handle("GET /api/round/ensure", s.api(s.handleEnsure))
	s.mux.Handle("POST /api/round/start", s.api(s.handleStart))

	s.mux.Handle("GET /api/winners", s.api(s.handleWinners))
	s.mux.Handle("GET /api/leaderboard", s.api(s.handleLeaderboard))
}

// api wraps a JSON endpoint with rate limiting and gzip.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	return RateLimitMiddleware(s.limiter, s.logger)(gzhttp.GzipHandler(h))
}

// observe subscribes a fresh queue to the hub and returns the event the new
// observer must see first, if any.
func (s *Server) observe() (*queue, *Message, func()) {
	q := newQueue(sinkBuffer)
	var (
		initial     *Message
		unsubscribe func()
	)
	s.engine.Attach(func(eventType string, v any, ok bool) {
		if ok {
			msg, err := Encode(eventType, v)
			if err != nil {
				s.logger.Error("encode initial event", "type", eventType, "err", err)
			} else {
				initial = &msg
			}
		}
		_, unsubscribe = s.hub.Subscribe(q)
	})
	return q, initial, unsubscribe
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	withPixels := r.URL.Query().Get("pixels") == "1"
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, s.engine.State(withPixels))
}

func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request) {
	started := s.engine.Ensure()
	writeJSON(w, map[string]bool{"ok": true, "started": started})
}

type startRequest struct {
	Holders []round.Participant `json:"holders"`
}

type startResponse struct {
	OK bool `json:"ok"`
	game.StartResult
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStartBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if s.cfg.AdminSecret != "" {
		err := auth.ValidateSignature(s.cfg.AdminSecret,
			r.Header.Get("X-Signature"), r.Header.Get("X-Timestamp"), body, s.now())
		if err != nil {
			s.logger.Warn("start rejected", "err", err, "ip", clientIP(r))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var req startRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}

	res, err := s.engine.RequestStart(game.FlowOptions{Participants: req.Holders})
	if err != nil && !errors.Is(err, game.ErrFlowInProgress) {
		s.logger.Error("start round", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, startResponse{OK: true, StartResult: res})
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	if s.winners == nil {
		writeJSON(w, map[string]any{"winners": []store.Winner{}})
		return
	}
	limit := store.DefaultRecentLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = store.ClampLimit(n)
		}
	}
	winners, err := s.winners.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent winners", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if winners == nil {
		winners = []store.Winner{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, map[string]any{"winners": winners})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		writeJSON(w, []leaderboard.Entry{})
		return
	}
	count := int64(50)
	if c := r.URL.Query().Get("count"); c != "" {
		if n, err := strconv.ParseInt(c, 10, 64); err == nil && n > 0 && n <= 100 {
			count = n
		}
	}
	entries, err := s.leaderboard.Top(r.Context(), count)
	if err != nil {
		s.logger.Error("leaderboard", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{
		"status": "ok",
		"phase":  s.engine.State(false).Phase.String(),
	}
	checks := map[string]pinger{}
	if s.winners != nil {
		checks["db"] = s.winners
	}
	if s.leaderboard != nil {
		checks["redis"] = s.leaderboard
	}
	for name, p := range checks {
		if err := p.Ping(ctx); err != nil {
			status[name] = "down"
			status["status"] = "degraded"
		} else {
			status[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("write json", "err", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	data := s.metrics.Snapshot()
	st := s.engine.State(false)
	data["phase"] = st.Phase.String()
	data["tick"] = st.Tick
	data["round_id"] = st.RoundID
	data["subscribers"] = s.hub.Count()
	writeJSON(w, data)
}

func (s *Server) Handler() http.Handler {
	return ChainMiddleware(s.mux,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
	)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
