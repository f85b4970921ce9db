package game

import (
	"fmt"
	"strings"

	"github.com/Russioo/pixelarena/internal/round"
)

// Policy selects how a contest between two neighboring cells is resolved.
// A round uses exactly one policy from start to finish.
type Policy string

const (
	// PolicyFair resolves every contest with a 50/50 coin flip, independent
	// of participant weight.
	PolicyFair Policy = "fair"
	// PolicyWeighted blends a weight advantage and a local neighbor support
	// advantage into the initiator's win probability, clamped to
	// [MinWinProbability, MaxWinProbability].
	PolicyWeighted Policy = "weighted"
)

const (
	MinWinProbability = 0.05
	MaxWinProbability = 0.95
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFair:
		return PolicyFair, nil
	case PolicyWeighted:
		return PolicyWeighted, nil
	default:
		return "", fmt.Errorf("unknown contest policy %q", s)
	}
}

// Weights tunes PolicyWeighted.
type Weights struct {
	Token   float64 `yaml:"token"`
	Support float64 `yaml:"support"`
}

var DefaultWeights = Weights{Token: 0.4, Support: 0.2}

// Stepper runs the contests of one round.
type Stepper struct {
	board         *round.Board
	neighbors     [][]int32
	balances      []float64
	colors        []string
	policy        Policy
	weights       Weights
	fightsPerTick int
	rng           *RNG
}

func NewStepper(b *round.Board, topo *Topology, participants []round.Participant, policy Policy, weights Weights, fightsPerTick int, rng *RNG) *Stepper {
	s := &Stepper{
		board:         b,
		neighbors:     topo.Neighbors,
		balances:      make([]float64, len(participants)),
		colors:        make([]string, len(participants)),
		policy:        policy,
		weights:       weights,
		fightsPerTick: fightsPerTick,
		rng:           rng,
	}
	for i, p := range participants {
		s.balances[i] = p.Weight
		s.colors[i] = p.Color
	}
	return s
}

// Step executes fightsPerTick contests and returns how many cells changed hands.
// Draw order per contest: initiator cell, neighbor pick, outcome.
func (s *Stepper) Step() int {
	owner := s.board.Owner
	total := len(owner)
	if total == 0 {
		return 0
	}
	transfers := 0
	for f := 0; f < s.fightsPerTick; f++ {
		a := s.rng.Intn(total)
		ao := owner[a]
		if ao == round.NoOwner {
			continue
		}
		nbs := s.neighbors[a]
		if len(nbs) == 0 {
			continue
		}
		b := int(nbs[s.rng.Intn(len(nbs))])
		bo := owner[b]
		if bo == round.NoOwner || bo == ao {
			continue
		}

		probA := 0.5
		if s.policy == PolicyWeighted {
			probA = s.weightedProbability(a, ao, b, bo)
		}
		if s.rng.Float64() < probA {
			s.board.Set(b, ao, s.colors[ao])
		} else {
			s.board.Set(a, bo, s.colors[bo])
		}
		transfers++
	}
	return transfers
}

func (s *Stepper) weightedProbability(a int, ao int32, b int, bo int32) float64 {
	balA, balB := s.balances[ao], s.balances[bo]
	tokenAdv := (balA - balB) / max(balA+balB, 1)
	supportAdv := float64(s.support(a, ao)-s.support(b, bo)) / 4
	p := 0.5 + s.weights.Token*tokenAdv + s.weights.Support*supportAdv
	return min(MaxWinProbability, max(MinWinProbability, p))
}

// support counts the neighbors of idx owned by owner.
func (s *Stepper) support(idx int, owner int32) int {
	n := 0
	for _, nb := range s.neighbors[idx] {
		if s.board.Owner[nb] == owner {
			n++
		}
	}
	return n
}
