package game

import (
	"errors"
	"testing"

	"github.com/Russioo/pixelarena/internal/round"
)

func smallSim(seed int64) SimConfig {
	return SimConfig{
		Width:         10,
		Height:        10,
		Participants:  quotaParticipants(25, 25, 25, 25),
		Seed:          seed,
		FightsPerTick: 200,
	}
}

// ---------------------------------------------------------------------------
// 1. A round runs to a single owner
// ---------------------------------------------------------------------------

func TestSimulationFindsWinner(t *testing.T) {
	res, err := RunSimulation(smallSim(12345))
	if err != nil {
		t.Fatal(err)
	}
	if res.FinishReason != "winner" {
		t.Fatalf("finish = %s after %d ticks", res.FinishReason, res.TotalTicks)
	}
	if res.WinnerIndex < 0 || res.WinnerIndex >= 4 {
		t.Fatalf("winner index = %d", res.WinnerIndex)
	}
	for i, st := range res.PlayerStats {
		if st.InitialPixels != 25 {
			t.Fatalf("player %d initial = %d", i, st.InitialPixels)
		}
		if i == res.WinnerIndex {
			if st.EliminatedAt != 0 || st.PeakPixels != 100 {
				t.Fatalf("winner stats = %+v", st)
			}
			continue
		}
		if st.EliminatedAt == 0 || st.EliminatedAt > res.TotalTicks {
			t.Fatalf("player %d eliminated at %d, total %d", i, st.EliminatedAt, res.TotalTicks)
		}
	}

	last := res.Events[len(res.Events)-1]
	if last.Type != "winner" || last.Player != res.WinnerIndex || last.Tick != res.TotalTicks {
		t.Fatalf("last event = %+v", last)
	}
}

// ---------------------------------------------------------------------------
// 2. Same seed, same round
// ---------------------------------------------------------------------------

func TestSimulationDeterministic(t *testing.T) {
	a, _ := RunSimulation(smallSim(99))
	b, _ := RunSimulation(smallSim(99))
	if a.WinnerIndex != b.WinnerIndex || a.TotalTicks != b.TotalTicks || a.Transfers != b.Transfers {
		t.Fatalf("runs diverged: %+v vs %+v", a, b)
	}
}

func TestSimulationSilentMode(t *testing.T) {
	cfg := smallSim(7)
	cfg.SilentMode = true
	res, _ := RunSimulation(cfg)
	if len(res.Events) != 0 {
		t.Fatalf("silent run recorded %d events", len(res.Events))
	}
}

// ---------------------------------------------------------------------------
// 3. Safety cap and bad input
// ---------------------------------------------------------------------------

func TestSimulationMaxTicks(t *testing.T) {
	res, err := RunSimulation(SimConfig{
		Width:         50,
		Height:        50,
		Participants:  quotaParticipants(625, 625, 625, 625),
		Seed:          1,
		FightsPerTick: MinFightsPerTick,
		MaxTicks:      3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.FinishReason != "max_ticks" || res.WinnerIndex != -1 || res.TotalTicks != 3 {
		t.Fatalf("result = %s winner=%d ticks=%d", res.FinishReason, res.WinnerIndex, res.TotalTicks)
	}
}

func TestSimulationErrors(t *testing.T) {
	if _, err := RunSimulation(SimConfig{Width: 5, Height: 5}); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("err = %v, want ErrNoParticipants", err)
	}
	cfg := smallSim(1)
	cfg.Width = 0
	if _, err := RunSimulation(cfg); !errors.Is(err, ErrInvalidGrid) {
		t.Fatalf("err = %v, want ErrInvalidGrid", err)
	}
}

// ---------------------------------------------------------------------------
// 4. Weighted policy favors heavy holders
// ---------------------------------------------------------------------------

func TestSimulationWeightedFavorsHeavy(t *testing.T) {
	heavyWins := 0
	const runs = 30
	for seed := int64(1); seed <= runs; seed++ {
		ps := []round.Participant{
			{Identity: "heavy", Color: "red", Weight: 1000, Quota: 50},
			{Identity: "light", Color: "blue", Weight: 1, Quota: 50},
		}
		res, err := RunSimulation(SimConfig{
			Width: 10, Height: 10, Participants: ps, Seed: seed * 1000,
			FightsPerTick: 200, Policy: PolicyWeighted, SilentMode: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.WinnerIndex == 0 {
			heavyWins++
		}
	}
	if heavyWins < runs/2 {
		t.Fatalf("heavy participant won %d of %d weighted rounds", heavyWins, runs)
	}
}
