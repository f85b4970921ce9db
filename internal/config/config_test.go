package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Russioo/pixelarena/internal/game"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tn := cfg.Tuning
	if tn.Width != 50 || tn.Height != 50 {
		t.Fatalf("grid = %dx%d", tn.Width, tn.Height)
	}
	if tn.FightsPerTick != 1200 || tn.TickInterval != 15*time.Millisecond || tn.SnapshotEvery != 8 {
		t.Fatalf("tuning = %+v", tn)
	}
	if tn.Policy != game.PolicyFair {
		t.Fatalf("policy = %s", tn.Policy)
	}
	if tn.Durations != game.DefaultDurations {
		t.Fatalf("durations = %+v", tn.Durations)
	}
	if cfg.WSPingInterval != 30*time.Second || cfg.HTTPAddr != ":8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadFloors(t *testing.T) {
	t.Setenv("FIGHTS_PER_TICK", "50")
	t.Setenv("TICK_INTERVAL_MS", "1")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tuning.FightsPerTick != game.MinFightsPerTick {
		t.Fatalf("fights = %d, want floor %d", cfg.Tuning.FightsPerTick, game.MinFightsPerTick)
	}
	if cfg.Tuning.TickInterval != game.MinTickInterval {
		t.Fatalf("interval = %v, want floor %v", cfg.Tuning.TickInterval, game.MinTickInterval)
	}
}

func TestLoadInvalidGrid(t *testing.T) {
	t.Setenv("GRID_WIDTH", "0")
	if _, err := Load(); !errors.Is(err, game.ErrInvalidGrid) {
		t.Fatalf("err = %v, want ErrInvalidGrid", err)
	}
}

func TestLoadInvalidPolicy(t *testing.T) {
	t.Setenv("CONTEST_POLICY", "coinflip")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestLoadTuningFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte(`
grid:
  width: 20
  height: 10
fightsPerTick: 400
snapshotEveryTicks: 4
policy: weighted
weights:
  token: 0.5
  support: 0.1
durations:
  claimMs: 1000
  winnerMs: 2000
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TUNING_FILE", path)
	t.Setenv("STARTING_MS", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tn := cfg.Tuning
	if tn.Width != 20 || tn.Height != 10 || tn.FightsPerTick != 400 || tn.SnapshotEvery != 4 {
		t.Fatalf("tuning = %+v", tn)
	}
	if tn.Policy != game.PolicyWeighted || tn.Weights != (game.Weights{Token: 0.5, Support: 0.1}) {
		t.Fatalf("policy = %s weights = %+v", tn.Policy, tn.Weights)
	}
	want := game.Durations{
		Claim:    time.Second,
		Snapshot: game.DefaultDurations.Snapshot,
		Starting: 500 * time.Millisecond,
		Winner:   2 * time.Second,
	}
	if tn.Durations != want {
		t.Fatalf("durations = %+v, want %+v", tn.Durations, want)
	}
}

func TestParseTuningErrors(t *testing.T) {
	if _, err := ParseTuning([]byte("policy: lottery")); err == nil {
		t.Fatal("expected policy error")
	}
	if _, err := ParseTuning([]byte("grid: [1, 2")); err == nil {
		t.Fatal("expected yaml error")
	}
}
