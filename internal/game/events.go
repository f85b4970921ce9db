package game

import (
	"github.com/Russioo/pixelarena/internal/round"
)

const (
	EventSnapshot = "snapshot"
	EventPhase    = "phase"
	EventWinner   = "winner"
)

// Publisher receives every state-change event in the order it happens.
// Publish is called while the engine holds its lock, so it must not block
// and must not call back into the engine.
type Publisher interface {
	Publish(eventType string, v any)
}

// SnapshotEvent is the full cell and participant dump sent while running.
type SnapshotEvent struct {
	Type    string              `json:"type"`
	Tick    int                 `json:"tick"`
	StartMs int64               `json:"startMs"`
	RoundID int64               `json:"roundId"`
	Pixels  []round.Cell        `json:"pixels"`
	Holders []round.Participant `json:"holders"`
}

// PhaseEvent announces a phase transition.
type PhaseEvent struct {
	Type             string              `json:"type"`
	Phase            round.Phase         `json:"phase"`
	EndsAt           int64               `json:"endsAt"`
	FeesPoolLamports int64               `json:"feesPoolLamports"`
	RoundID          int64               `json:"roundId,omitempty"`
	Holders          []round.Participant `json:"holders,omitempty"`
}

// WinnerEvent is the terminal event of a round.
type WinnerEvent struct {
	Type        string              `json:"type"`
	RoundID     int64               `json:"roundId"`
	Tick        int                 `json:"tick"`
	WinnerIndex int                 `json:"winnerIndex"`
	NextRoundAt int64               `json:"nextRoundAt"`
	Holders     []round.Participant `json:"holders"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
