/*
Copyright © 2019 the InMAP authors.
This file is part of oceancore.

oceancore is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

oceancore is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with oceancore.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package distribute decomposes structured grids across a two-dimensional
// grid of processes and keeps the halo cells of the resulting tiles
// consistent by exchanging boundary slabs between neighboring processes.
package distribute

import (
	"errors"
	"fmt"
)

// Halo is the width of the ghost-cell ring that surrounds each tile along
// the horizontal axes.
const Halo = 2

// Axis identifies one of the two horizontal axes of a field.
type Axis int

// The horizontal axes. Fields are laid out as (x, y, z, ...), so an Axis
// value is also the index of the axis within the array shape.
const (
	X Axis = iota
	Y
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ErrTopology is returned when a process topology is inconsistent.
var ErrTopology = errors.New("distribute: invalid topology")

// Topology describes the position of this process within a
// NProcX by NProcY process grid. It is fixed for the duration of a run.
type Topology struct {
	NProcX, NProcY int
	CoordX, CoordY int
}

// NewTopology returns the topology of the process with the given rank
// in an nprocX by nprocY process grid. Ranks increase fastest along x.
func NewTopology(nprocX, nprocY, rank int) (Topology, error) {
	if nprocX < 1 || nprocY < 1 {
		return Topology{}, fmt.Errorf("%w: process grid %dx%d", ErrTopology, nprocX, nprocY)
	}
	if rank < 0 || rank >= nprocX*nprocY {
		return Topology{}, fmt.Errorf("%w: rank %d outside of %dx%d process grid",
			ErrTopology, rank, nprocX, nprocY)
	}
	return Topology{
		NProcX: nprocX,
		NProcY: nprocY,
		CoordX: rank % nprocX,
		CoordY: rank / nprocX,
	}, nil
}

// ProcessCount returns the number of processes along axis a.
func (t Topology) ProcessCount(a Axis) int {
	if a == X {
		return t.NProcX
	}
	return t.NProcY
}

// Coords returns the coordinate of this process along axis a.
func (t Topology) Coords(a Axis) int {
	if a == X {
		return t.CoordX
	}
	return t.CoordY
}

// Size returns the total number of processes.
func (t Topology) Size() int { return t.NProcX * t.NProcY }

// Rank returns the rank of this process.
func (t Topology) Rank() int { return t.RankOf(t.CoordX, t.CoordY) }

// RankOf returns the rank of the process at the given coordinates.
func (t Topology) RankOf(cx, cy int) int { return cx + cy*t.NProcX }

// At returns the topology of the process with the given rank in the same
// process grid.
func (t Topology) At(rank int) Topology {
	return Topology{
		NProcX: t.NProcX,
		NProcY: t.NProcY,
		CoordX: rank % t.NProcX,
		CoordY: rank / t.NProcX,
	}
}

// Neighbor returns the rank of the neighboring process along axis a in
// direction dir (-1 for the low side, +1 for the high side).
// If periodic is true the process grid wraps around along a, otherwise
// ok is false at the edges of the process grid.
func (t Topology) Neighbor(a Axis, dir int, periodic bool) (rank int, ok bool) {
	n := t.ProcessCount(a)
	c := t.Coords(a) + dir
	if c < 0 || c >= n {
		if !periodic {
			return -1, false
		}
		c = (c%n + n) % n
	}
	if a == X {
		return t.RankOf(c, t.CoordY), true
	}
	return t.RankOf(t.CoordX, c), true
}
