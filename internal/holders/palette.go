package holders

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const goldenRatioConjugate = 0.618033988749895

// Palette returns count visually distinct HSL colors by stepping the hue by
// the golden ratio from a random start.
func Palette(count int, rng *rand.Rand) []string {
	out := make([]string, count)
	hue := rng.Float64()
	for i := range out {
		hue = math.Mod(hue+goldenRatioConjugate, 1)
		sat := 70 + rng.IntN(20)
		light := 50 + rng.IntN(15)
		out[i] = fmt.Sprintf("hsl(%d, %d%%, %d%%)", int(math.Floor(hue*360)), sat, light)
	}
	return out
}
