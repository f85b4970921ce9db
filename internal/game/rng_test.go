package game

import "testing"

func TestRNGFirstDraw(t *testing.T) {
	r := NewRNG(DefaultSeed)
	got := r.Float64()
	// (12345*9301 + 49297) % 233280 = 96382
	want := 96382.0 / 233280.0
	if got != want {
		t.Fatalf("first draw = %v, want %v", got, want)
	}
	if r.State() != 96382 {
		t.Fatalf("state = %d, want 96382", r.State())
	}
}

func TestRNGDeterministic(t *testing.T) {
	a, b := NewRNG(777), NewRNG(777)
	for i := 0; i < 1000; i++ {
		x, y := a.Float64(), b.Float64()
		if x != y {
			t.Fatalf("draw %d diverged: %v vs %v", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("draw %d out of range: %v", i, x)
		}
	}
}

func TestRNGSeedNormalization(t *testing.T) {
	tests := []struct {
		seed int64
		want int64
	}{
		{0, 0},
		{233280, 0},
		{233281, 1},
		{-1, 233279},
		{-233281, 233279},
	}
	for _, tt := range tests {
		if got := NewRNG(tt.seed).State(); got != tt.want {
			t.Errorf("seed %d: state = %d, want %d", tt.seed, got, tt.want)
		}
	}
}

func TestRNGIntnRange(t *testing.T) {
	r := NewRNG(1)
	for i := 0; i < 10000; i++ {
		if v := r.Intn(7); v < 0 || v >= 7 {
			t.Fatalf("Intn(7) = %d", v)
		}
	}
}

func TestRNGIntnOneConsumesDraw(t *testing.T) {
	a, b := NewRNG(5), NewRNG(5)
	if v := a.Intn(1); v != 0 {
		t.Fatalf("Intn(1) = %d, want 0", v)
	}
	b.Float64()
	if a.State() != b.State() {
		t.Fatal("Intn(1) should advance the stream by one draw")
	}
}
