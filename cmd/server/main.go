package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Russioo/pixelarena/internal/cache"
	"github.com/Russioo/pixelarena/internal/claim"
	"github.com/Russioo/pixelarena/internal/config"
	"github.com/Russioo/pixelarena/internal/game"
	"github.com/Russioo/pixelarena/internal/holders"
	"github.com/Russioo/pixelarena/internal/leaderboard"
	"github.com/Russioo/pixelarena/internal/server"
	"github.com/Russioo/pixelarena/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Winner history: Postgres when configured, else a local SQLite file.
	var winners store.WinnerStore
	switch {
	case cfg.DatabaseURL != "":
		db, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect db", "err", err)
			os.Exit(1)
		}
		pg := store.NewPostgresWinners(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema", "err", err)
			os.Exit(1)
		}
		winners = pg
	case cfg.SQLitePath != "":
		lite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error("open sqlite", "err", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		winners = lite
	default:
		logger.Warn("no winner store configured")
	}
	if winners != nil {
		defer winners.Close()
	}

	var board *leaderboard.Service
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("connect redis", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		board = leaderboard.NewService(rdb)
	}

	totalCells := cfg.Tuning.Width * cfg.Tuning.Height
	engineCfg := game.Config{
		Tuning: cfg.Tuning,
		Logger: logger,
	}
	if cfg.MintAddress != "" {
		url := holders.RPCURL(cfg.HeliusAPIKey, cfg.SolanaRPCURL)
		engineCfg.Supplier = holders.NewRPCSupplier(url, cfg.MintAddress, totalCells, logger)
	}
	if cfg.ClaimURL != "" {
		engineCfg.Claimer = claim.NewHTTPClaimer(cfg.ClaimURL)
	}

	metrics := server.NewMetrics()
	hub := server.NewHub(logger, metrics)
	engineCfg.Publisher = hub
	engine := game.NewEngine(engineCfg)

	engine.SetOnWinner(func(s game.RoundSummary) {
		recCtx, recCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer recCancel()

		logger.Info("round won",
			"round", s.RoundID,
			"session", s.SessionID,
			"seed", s.Seed,
			"ticks", s.Ticks,
			"winner", s.Winner.Identity,
			"pixels", s.Pixels,
			"fees_lamports", s.FeesPoolLamports,
		)
		if winners != nil {
			err := winners.Record(recCtx, &store.Winner{
				Round:        s.RoundID,
				SessionID:    s.SessionID,
				Address:      s.Winner.Identity,
				FeesLamports: s.FeesPoolLamports,
				TxSignature:  s.ClaimSignature,
				Color:        s.Winner.Color,
				Pixels:       s.Pixels,
				CreatedAt:    s.EndedAt,
			})
			if err != nil {
				logger.Error("record winner", "err", err, "round", s.RoundID)
			}
		}
		if board != nil {
			if err := board.RecordWin(recCtx, s.RoundID, s.Winner.Identity, s.FeesPoolLamports); err != nil {
				logger.Error("update leaderboard", "err", err, "round", s.RoundID)
			}
		}
	})
	engine.SetOnRoundComplete(func(game.RoundSummary) {
		metrics.IncrRoundsPlayed()
		engine.StartFlow(game.FlowOptions{})
	})

	engine.Ensure()

	srv := server.New(cfg, engine, hub, metrics, logger)
	if winners != nil {
		srv.SetWinnerStore(winners)
	}
	if board != nil {
		srv.SetLeaderboard(board)
	}

	// No WriteTimeout: /api/stream and /ws hold the response open.
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	engine.Stop()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
