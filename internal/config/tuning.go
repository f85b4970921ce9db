package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Russioo/pixelarena/internal/game"
)

// TuningFile is the optional YAML override for engine tuning. Absent fields
// keep the environment value.
type TuningFile struct {
	Grid *struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"grid"`
	FightsPerTick      *int          `yaml:"fightsPerTick"`
	TickIntervalMs     *int          `yaml:"tickIntervalMs"`
	SnapshotEveryTicks *int          `yaml:"snapshotEveryTicks"`
	Policy             *string       `yaml:"policy"`
	Weights            *game.Weights `yaml:"weights"`
	Durations          *struct {
		ClaimMs    *int `yaml:"claimMs"`
		SnapshotMs *int `yaml:"snapshotMs"`
		StartingMs *int `yaml:"startingMs"`
		WinnerMs   *int `yaml:"winnerMs"`
	} `yaml:"durations"`

	policy game.Policy
}

func LoadTuning(path string) (*TuningFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	return ParseTuning(raw)
}

func ParseTuning(raw []byte) (*TuningFile, error) {
	var f TuningFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tuning file: %w", err)
	}
	if f.Policy != nil {
		p, err := game.ParsePolicy(*f.Policy)
		if err != nil {
			return nil, fmt.Errorf("tuning policy: %w", err)
		}
		f.policy = p
	}
	return &f, nil
}

// Apply overlays the file onto t.
func (f *TuningFile) Apply(t *game.Tuning) {
	if f.Grid != nil {
		t.Width = f.Grid.Width
		t.Height = f.Grid.Height
	}
	if f.FightsPerTick != nil {
		t.FightsPerTick = *f.FightsPerTick
	}
	if f.TickIntervalMs != nil {
		t.TickInterval = time.Duration(*f.TickIntervalMs) * time.Millisecond
	}
	if f.SnapshotEveryTicks != nil {
		t.SnapshotEvery = *f.SnapshotEveryTicks
	}
	if f.Policy != nil {
		t.Policy = f.policy
	}
	if f.Weights != nil {
		t.Weights = *f.Weights
	}
	if d := f.Durations; d != nil {
		setMs(&t.Durations.Claim, d.ClaimMs)
		setMs(&t.Durations.Snapshot, d.SnapshotMs)
		setMs(&t.Durations.Starting, d.StartingMs)
		setMs(&t.Durations.Winner, d.WinnerMs)
	}
}

func setMs(dst *time.Duration, ms *int) {
	if ms != nil {
		*dst = time.Duration(*ms) * time.Millisecond
	}
}
