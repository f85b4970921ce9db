package holders

import (
	"context"
	"fmt"
	"math"

	"github.com/Russioo/pixelarena/internal/round"
)

// Supplier provides the ranked participant list for a round.
type Supplier interface {
	Fetch(ctx context.Context) ([]round.Participant, error)
}

// DefaultCount is the size of the synthetic fallback list.
const DefaultCount = 100

// Default returns 100 synthetic participants evenly splitting totalCells.
// It keeps a round playable when no holder data is available.
func Default(totalCells int) []round.Participant {
	base := totalCells / DefaultCount
	out := make([]round.Participant, DefaultCount)
	for i := range out {
		out[i] = round.Participant{
			Identity:   fmt.Sprintf("HOLDER_%03d", i),
			Weight:     1,
			Percentage: 1,
			Quota:      base,
			Color:      fmt.Sprintf("hsl(%d, 80%%, 50%%)", int(math.Round(float64(i*360)/DefaultCount))),
		}
	}
	return out
}

// QuotaForPercentage converts a share of the total weight into a starting
// pixel count. Every holder gets at least one pixel.
func QuotaForPercentage(pct float64, totalCells int) int {
	raw := int(math.Floor(pct / 100 * float64(totalCells)))
	return max(1, raw)
}

// Static always returns the same list. Useful for pinned or test rounds.
type Static []round.Participant

func (s Static) Fetch(context.Context) ([]round.Participant, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("static supplier: no participants")
	}
	out := make([]round.Participant, len(s))
	copy(out, s)
	return out, nil
}
