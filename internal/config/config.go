package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Russioo/pixelarena/internal/game"
)

type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ClaimURL       string
	SolanaRPCURL   string
	HeliusAPIKey   string
	MintAddress    string
	AdminSecret    string
	TuningFile     string
	WSPingInterval time.Duration

	Tuning game.Tuning
}

func Load() (*Config, error) {
	env := getenv("ENV", "development")

	// Load .env.{ENV} first, then .env as fallback
	loadEnvFile(".env." + env)
	loadEnvFile(".env")

	cfg := &Config{
		Env:            env,
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		SQLitePath:     getenv("SQLITE_PATH", ""),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		RedisDB:        getenvInt("REDIS_DB", 0),
		ClaimURL:       getenv("CLAIM_URL", ""),
		SolanaRPCURL:   getenv("SOLANA_RPC_URL", ""),
		HeliusAPIKey:   getenv("HELIUS_API_KEY", ""),
		MintAddress:    getenv("MINT_ADDRESS", ""),
		AdminSecret:    getenv("ADMIN_SECRET", ""),
		TuningFile:     getenv("TUNING_FILE", ""),
		WSPingInterval: time.Duration(getenvInt("WS_PING_INTERVAL_SEC", 30)) * time.Second,
	}

	policy, err := game.ParsePolicy(getenv("CONTEST_POLICY", string(game.PolicyFair)))
	if err != nil {
		return nil, fmt.Errorf("CONTEST_POLICY: %w", err)
	}

	cfg.Tuning = game.Tuning{
		Width:         getenvInt("GRID_WIDTH", game.DefaultWidth),
		Height:        getenvInt("GRID_HEIGHT", game.DefaultHeight),
		FightsPerTick: getenvInt("FIGHTS_PER_TICK", game.DefaultFightsPerTick),
		TickInterval:  getenvMs("TICK_INTERVAL_MS", game.DefaultTickInterval),
		SnapshotEvery: getenvInt("SNAPSHOT_EVERY_TICKS", game.DefaultSnapshotEvery),
		Policy:        policy,
		Weights:       game.DefaultWeights,
		Durations: game.Durations{
			Claim:    getenvMs("CLAIM_MS", game.DefaultDurations.Claim),
			Snapshot: getenvMs("SNAPSHOT_MS", game.DefaultDurations.Snapshot),
			Starting: getenvMs("STARTING_MS", game.DefaultDurations.Starting),
			Winner:   getenvMs("WINNER_MS", game.DefaultDurations.Winner),
		},
	}

	if cfg.TuningFile != "" {
		f, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		f.Apply(&cfg.Tuning)
	}

	if err := Validate(&cfg.Tuning); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable grid sizes and raises fights per tick and tick
// interval to their floors.
func Validate(t *game.Tuning) error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("grid %dx%d: %w", t.Width, t.Height, game.ErrInvalidGrid)
	}
	t.FightsPerTick = max(t.FightsPerTick, game.MinFightsPerTick)
	t.TickInterval = max(t.TickInterval, game.MinTickInterval)
	if t.SnapshotEvery <= 0 {
		t.SnapshotEvery = game.DefaultSnapshotEvery
	}
	return nil
}

// loadEnvFile parses a KEY=VALUE file and sets any keys not already present in os env.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		val = strings.Trim(val, `"'`)
		// Don't override existing env vars
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, val)
		}
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvMs(key string, fallback time.Duration) time.Duration {
	n := getenvInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
