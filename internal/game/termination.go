package game

import "github.com/Russioo/pixelarena/internal/round"

// Detector finds the round winner. It reuses one count buffer across ticks.
type Detector struct {
	counts []int
}

func NewDetector(participants int) *Detector {
	return &Detector{counts: make([]int, participants)}
}

// Check reports a winner only when exactly one distinct owner exists and that
// owner holds every cell. Unowned cells or an owner index outside the
// participant range rule out a win.
func (d *Detector) Check(b *round.Board) (int, bool) {
	for i := range d.counts {
		d.counts[i] = 0
	}
	distinct := 0
	last := -1
	for _, o := range b.Owner {
		if o == round.NoOwner {
			continue
		}
		if int(o) >= len(d.counts) || o < 0 {
			return -1, false
		}
		if d.counts[o] == 0 {
			distinct++
			last = int(o)
		}
		d.counts[o]++
	}
	if distinct != 1 {
		return -1, false
	}
	if d.counts[last] != b.Len() {
		return -1, false
	}
	return last, true
}

// Counts returns a copy of the per-owner cell counts from the last Check.
func (d *Detector) Counts() []int {
	out := make([]int, len(d.counts))
	copy(out, d.counts)
	return out
}

// OwnerCounts counts cells per owner index for n participants.
func OwnerCounts(b *round.Board, n int) []int {
	counts := make([]int, n)
	for _, o := range b.Owner {
		if o >= 0 && int(o) < n {
			counts[o]++
		}
	}
	return counts
}
