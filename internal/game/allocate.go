package game

import (
	"github.com/Russioo/pixelarena/internal/round"
)

// ReconcileQuotas turns the participants' desired pixel counts into quotas
// that sum exactly to total. Negative quotas count as zero and no quota may
// exceed total. A shortfall is handed out one cell at a time round-robin from
// participant 0; an excess is trimmed one cell at a time from the largest
// quota (lowest index on ties).
func ReconcileQuotas(participants []round.Participant, total int) []int {
	quotas := make([]int, len(participants))
	if len(participants) == 0 || total <= 0 {
		return quotas
	}
	sum := 0
	for i, p := range participants {
		q := p.Quota
		if q < 0 {
			q = 0
		}
		if q > total {
			q = total
		}
		quotas[i] = q
		sum += q
	}

	for k := 0; sum < total; k++ {
		quotas[k%len(quotas)]++
		sum++
	}
	for sum > total {
		largest := 0
		for i, q := range quotas {
			if q > quotas[largest] {
				largest = i
			}
		}
		quotas[largest]--
		sum--
	}
	return quotas
}

// Allocate assigns every cell of b to exactly one participant. It shuffles the
// cell indices with rng (Fisher-Yates) and then hands each participant its
// reconciled quota of consecutive shuffled indices. It returns the quotas used.
func Allocate(b *round.Board, participants []round.Participant, rng *RNG) []int {
	total := b.Len()
	for i := 0; i < total; i++ {
		b.Set(i, round.NoOwner, round.DefaultColor)
	}

	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}
	for i := total - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}

	quotas := ReconcileQuotas(participants, total)

	cursor := 0
	for owner := 0; owner < len(participants) && cursor < total; owner++ {
		count := min(quotas[owner], total-cursor)
		color := participants[owner].Color
		for c := 0; c < count; c++ {
			b.Set(indices[cursor], int32(owner), color)
			cursor++
		}
	}
	return quotas
}
