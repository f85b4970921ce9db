package round

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewBoardUnowned(t *testing.T) {
	b := NewBoard(3, 2)
	if b.Len() != 6 {
		t.Fatalf("len = %d, want 6", b.Len())
	}
	for i := 0; i < b.Len(); i++ {
		if b.Owner[i] != NoOwner || b.Color[i] != DefaultColor {
			t.Fatalf("cell %d not reset: owner=%d color=%s", i, b.Owner[i], b.Color[i])
		}
	}
	if b.OwnedCount() != 0 {
		t.Fatalf("owned = %d, want 0", b.OwnedCount())
	}
}

func TestBoardCellsPositions(t *testing.T) {
	b := NewBoard(3, 2)
	b.Set(4, 1, "red")
	cells := b.Cells()
	c := cells[4]
	if c.Position.X != 1 || c.Position.Y != 1 {
		t.Fatalf("position of 4 = %+v, want (1,1)", c.Position)
	}
	if c.Owner == nil || *c.Owner != 1 || c.Color != "red" {
		t.Fatalf("cell 4 = %+v", c)
	}
	if cells[0].Owner != nil {
		t.Fatal("cell 0 should be unowned")
	}

	raw, err := json.Marshal(cells[0])
	if err != nil {
		t.Fatal(err)
	}
	want := `{"index":0,"owner":null,"position":{"x":0,"y":0},"color":"#333"}`
	if string(raw) != want {
		t.Fatalf("json = %s, want %s", raw, want)
	}
}

func TestRoundFinishOnce(t *testing.T) {
	r := New(1, "s", 1, []Participant{{Identity: "a"}, {Identity: "b"}}, NewBoard(2, 1), time.Now())
	if r.Finished() {
		t.Fatal("new round should not be finished")
	}
	if !r.Finish(1, time.Now()) {
		t.Fatal("first finish should succeed")
	}
	if r.Finish(0, time.Now()) {
		t.Fatal("second finish should be rejected")
	}
	w, ok := r.Winner()
	if !ok || w.Identity != "b" {
		t.Fatalf("winner = %+v, %v", w, ok)
	}
}

func TestPhaseText(t *testing.T) {
	for p := PhaseIdle; p <= PhaseWinner; p++ {
		raw, err := json.Marshal(p)
		if err != nil {
			t.Fatal(err)
		}
		var back Phase
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if back != p {
			t.Fatalf("round trip %v -> %v", p, back)
		}
	}
	if _, err := ParsePhase("bogus"); err == nil {
		t.Fatal("expected error for unknown phase")
	}
}
