package round

import "fmt"

// Phase is the orchestrator stage. Exactly one phase holds for the whole process.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseClaim
	PhaseSnapshot
	PhaseStarting
	PhaseRunning
	PhaseWinner
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseClaim:
		return "claim"
	case PhaseSnapshot:
		return "snapshot"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseWinner:
		return "winner"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParsePhase(s string) (Phase, error) {
	for p := PhaseIdle; p <= PhaseWinner; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("unknown phase %q", s)
}

// MaxParticipants caps the ranked participant list accepted for a round.
const MaxParticipants = 100

// Participant is one competitor. Its position in the round's participant
// slice is its owner index on the board.
type Participant struct {
	Identity   string  `json:"address"`
	Weight     float64 `json:"balance"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
	Quota      int     `json:"pixels"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell is the exported view of one board index. Owner is nil when unowned.
type Cell struct {
	Index    int      `json:"index"`
	Owner    *int     `json:"owner"`
	Position Position `json:"position"`
	Color    string   `json:"color"`
}
