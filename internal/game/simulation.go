package game

import (
	"fmt"

	"github.com/Russioo/pixelarena/internal/round"
)

// SimConfig fully describes a deterministic headless round.
type SimConfig struct {
	Width         int
	Height        int
	Participants  []round.Participant
	Seed          int64
	FightsPerTick int
	Policy        Policy
	Weights       Weights

	MaxTicks   int  // safety cap; 0 defaults to 200000
	SilentMode bool // skip event recording for Monte Carlo perf
}

type SimEvent struct {
	Tick   int
	Type   string // "elimination", "winner", "max_ticks"
	Player int
	Detail string
}

type SimPlayerStat struct {
	InitialPixels int
	PeakPixels    int
	EliminatedAt  int // 0 while still holding cells
}

type SimResult struct {
	Events       []SimEvent
	WinnerIndex  int // -1 when MaxTicks ran out
	FinishReason string
	TotalTicks   int
	Transfers    int
	PlayerStats  []SimPlayerStat
}

// RunSimulation plays one round to completion with no clock, no goroutines
// and no publisher. The same config always produces the same result, and it
// matches what the engine produces for the same seed and participants.
//
// Processing order per tick:
//  1. Run the contest batch
//  2. Record eliminations and peaks
//  3. Check termination
func RunSimulation(cfg SimConfig) (SimResult, error) {
	maxTicks := cfg.MaxTicks
	if maxTicks <= 0 {
		maxTicks = 200000
	}
	fights := cfg.FightsPerTick
	if fights <= 0 {
		fights = DefaultFightsPerTick
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyFair
	}
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if len(cfg.Participants) == 0 {
		return SimResult{}, ErrNoParticipants
	}
	participants := normalizeParticipants(cfg.Participants)

	topo, err := BuildTopology(cfg.Width, cfg.Height)
	if err != nil {
		return SimResult{}, err
	}
	board := round.NewBoard(cfg.Width, cfg.Height)
	rng := NewRNG(cfg.Seed)
	Allocate(board, participants, rng)

	stepper := NewStepper(board, topo, participants, policy, weights, fights, rng)
	detector := NewDetector(len(participants))

	stats := make([]SimPlayerStat, len(participants))
	for i, c := range OwnerCounts(board, len(participants)) {
		stats[i].InitialPixels = c
		stats[i].PeakPixels = c
	}

	result := SimResult{WinnerIndex: -1, PlayerStats: stats}
	var events []SimEvent
	silent := cfg.SilentMode

	for tick := 1; tick <= maxTicks; tick++ {
		result.Transfers += stepper.Step()

		w, won := detector.Check(board)
		for i, c := range detector.Counts() {
			st := &stats[i]
			if c > st.PeakPixels {
				st.PeakPixels = c
			}
			if c == 0 && st.EliminatedAt == 0 && st.InitialPixels > 0 {
				st.EliminatedAt = tick
				if !silent {
					events = append(events, SimEvent{Tick: tick, Type: "elimination", Player: i})
				}
			}
		}

		if won {
			result.WinnerIndex = w
			result.FinishReason = "winner"
			result.TotalTicks = tick
			if !silent {
				events = append(events, SimEvent{
					Tick:   tick,
					Type:   "winner",
					Player: w,
					Detail: fmt.Sprintf("cells=%d transfers=%d", board.Len(), result.Transfers),
				})
			}
			break
		}

		if tick == maxTicks {
			result.FinishReason = "max_ticks"
			result.TotalTicks = tick
			if !silent {
				events = append(events, SimEvent{Tick: tick, Type: "max_ticks"})
			}
		}
	}

	result.Events = events
	return result, nil
}
