package round

import (
	"time"
)

// NoOwner marks an unowned cell.
const NoOwner int32 = -1

// DefaultColor is the color of an unowned cell.
const DefaultColor = "#333"

// Board is the flat, index-addressed ownership grid. Owner and Color are
// parallel slices of length Width*Height; Color[i] always mirrors the color
// of the participant at Owner[i].
type Board struct {
	Width  int
	Height int
	Owner  []int32
	Color  []string
}

func NewBoard(width, height int) *Board {
	total := width * height
	b := &Board{
		Width:  width,
		Height: height,
		Owner:  make([]int32, total),
		Color:  make([]string, total),
	}
	for i := range b.Owner {
		b.Owner[i] = NoOwner
		b.Color[i] = DefaultColor
	}
	return b
}

func (b *Board) Len() int { return len(b.Owner) }

// Set assigns owner and color together so the two never diverge.
func (b *Board) Set(i int, owner int32, color string) {
	b.Owner[i] = owner
	b.Color[i] = color
}

// Cells builds the exported cell array. It allocates; never call it from the
// contest loop.
func (b *Board) Cells() []Cell {
	out := make([]Cell, len(b.Owner))
	for i, o := range b.Owner {
		c := Cell{
			Index:    i,
			Position: Position{X: i % b.Width, Y: i / b.Width},
			Color:    b.Color[i],
		}
		if o != NoOwner {
			v := int(o)
			c.Owner = &v
		}
		out[i] = c
	}
	return out
}

// OwnedCount returns the number of owned cells.
func (b *Board) OwnedCount() int {
	n := 0
	for _, o := range b.Owner {
		if o != NoOwner {
			n++
		}
	}
	return n
}

// Round holds the state of the one current round. It is mutated only by the
// engine, under the engine's lock.
type Round struct {
	ID           int64
	SessionID    string
	Seed         int64
	StartedAt    time.Time
	Tick         int
	Participants []Participant
	Quotas       []int
	Board        *Board

	// WinnerIndex is -1 until the round is won. After that the round is frozen.
	WinnerIndex int
	EndedAt     *time.Time
}

func New(id int64, sessionID string, seed int64, participants []Participant, board *Board, startedAt time.Time) *Round {
	return &Round{
		ID:           id,
		SessionID:    sessionID,
		Seed:         seed,
		StartedAt:    startedAt,
		Participants: participants,
		Board:        board,
		WinnerIndex:  -1,
	}
}

func (r *Round) Finished() bool {
	return r.WinnerIndex >= 0
}

// Finish freezes the round with the given winner.
func (r *Round) Finish(winner int, at time.Time) bool {
	if r.Finished() {
		return false
	}
	r.WinnerIndex = winner
	r.EndedAt = &at
	return true
}

// Winner returns the winning participant, if any.
func (r *Round) Winner() (Participant, bool) {
	if r.WinnerIndex < 0 || r.WinnerIndex >= len(r.Participants) {
		return Participant{}, false
	}
	return r.Participants[r.WinnerIndex], true
}
