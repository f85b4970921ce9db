package game

import (
	"errors"
	"fmt"
)

var ErrInvalidGrid = errors.New("invalid grid dimensions")

// Topology is the precomputed 4-neighbor adjacency of a width x height grid.
// Neighbors of a cell are in order left, right, up, down (those that exist).
type Topology struct {
	Width     int
	Height    int
	Neighbors [][]int32
}

// BuildTopology computes the adjacency table for every cell index y*width+x.
func BuildTopology(width, height int) (*Topology, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, width, height)
	}
	total := width * height
	// One backing array; each cell has at most 4 neighbors.
	backing := make([]int32, 0, total*4)
	nbs := make([][]int32, total)
	for idx := 0; idx < total; idx++ {
		x := idx % width
		y := idx / width
		start := len(backing)
		if x > 0 {
			backing = append(backing, int32(idx-1))
		}
		if x < width-1 {
			backing = append(backing, int32(idx+1))
		}
		if y > 0 {
			backing = append(backing, int32(idx-width))
		}
		if y < height-1 {
			backing = append(backing, int32(idx+width))
		}
		nbs[idx] = backing[start:len(backing):len(backing)]
	}
	return &Topology{Width: width, Height: height, Neighbors: nbs}, nil
}

// Total returns the number of cells.
func (t *Topology) Total() int { return t.Width * t.Height }
