package game

import (
	"testing"

	"github.com/Russioo/pixelarena/internal/round"
)

func fill(b *round.Board, owner int32) {
	for i := range b.Owner {
		b.Set(i, owner, "c")
	}
}

func TestDetectorFullOwnership(t *testing.T) {
	b := round.NewBoard(10, 10)
	fill(b, 0)
	b.Set(55, 1, "c")
	d := NewDetector(2)
	if _, ok := d.Check(b); ok {
		t.Fatal("99% ownership must not win")
	}
	b.Set(55, 0, "c")
	w, ok := d.Check(b)
	if !ok || w != 0 {
		t.Fatalf("Check = %d, %v; want 0, true", w, ok)
	}
	if c := d.Counts(); c[0] != 100 || c[1] != 0 {
		t.Fatalf("counts = %v", c)
	}
}

func TestDetectorUnownedCell(t *testing.T) {
	b := round.NewBoard(3, 3)
	fill(b, 1)
	b.Set(4, round.NoOwner, round.DefaultColor)
	if _, ok := NewDetector(2).Check(b); ok {
		t.Fatal("an unowned cell rules out a win")
	}
}

func TestDetectorOwnerOutOfRange(t *testing.T) {
	b := round.NewBoard(2, 2)
	fill(b, 5)
	if _, ok := NewDetector(2).Check(b); ok {
		t.Fatal("owner outside the participant range must not win")
	}
}

func TestDetectorTwoCellRound(t *testing.T) {
	topo, _ := BuildTopology(2, 1)
	b := round.NewBoard(2, 1)
	rng := NewRNG(1)
	ps := quotaParticipants(1, 1)
	Allocate(b, ps, rng)

	counts := OwnerCounts(b, 2)
	if counts[0] != 1 || counts[1] != 1 {
		t.Fatalf("allocation counts = %v, want [1 1]", counts)
	}

	s := NewStepper(b, topo, ps, PolicyFair, DefaultWeights, 1, rng)
	d := NewDetector(2)
	for tick := 1; tick <= 100; tick++ {
		transfers := s.Step()
		w, ok := d.Check(b)
		if transfers == 0 {
			if ok {
				t.Fatalf("tick %d: winner without a transfer", tick)
			}
			continue
		}
		if !ok {
			t.Fatalf("tick %d: transfer happened but no winner", tick)
		}
		if b.Owner[0] != int32(w) || b.Owner[1] != int32(w) {
			t.Fatalf("winner %d but board %v", w, b.Owner)
		}
		return
	}
	t.Fatal("no contest in 100 ticks")
}
