package game

// LCG parameters. s' = (s*lcgMul + lcgInc) mod lcgMod.
const (
	lcgMul = 9301
	lcgInc = 49297
	lcgMod = 233280
)

// DefaultSeed is used when a round is started without an explicit seed.
const DefaultSeed int64 = 12345

// RNG is the single deterministic random stream of a round. Every draw in a
// round (shuffle, contest pick, contest outcome) comes from one RNG in a fixed
// order, so a round is reproducible from its seed. Not safe for concurrent use.
type RNG struct {
	s int64
}

func NewRNG(seed int64) *RNG {
	r := &RNG{}
	r.Seed(seed)
	return r
}

// Seed resets the stream. Seeds are reduced into [0, lcgMod).
func (r *RNG) Seed(seed int64) {
	s := seed % lcgMod
	if s < 0 {
		s += lcgMod
	}
	r.s = s
}

// State returns the current internal state.
func (r *RNG) State() int64 { return r.s }

// Float64 returns the next value in [0, 1).
func (r *RNG) Float64() float64 {
	r.s = (r.s*lcgMul + lcgInc) % lcgMod
	return float64(r.s) / lcgMod
}

// Intn returns a value in [0, n), clamped so float rounding can never yield n.
func (r *RNG) Intn(n int) int {
	if n <= 1 {
		r.Float64()
		return 0
	}
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
