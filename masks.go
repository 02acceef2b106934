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

package oceancore

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// Masks classifies the cells of an (Nx, Ny, Nz) grid. The vertical axis
// points upward: k = 0 is the bottom of the grid. A water column's floor is
// its deepest active level and its active band runs from the floor to the
// top of the grid.
//
// Masks must be created with CreateWaterMasks.
type Masks struct {
	Nx, Ny, Nz int

	// LandMask has one entry per column, in row-major (x, y) order. It is
	// true for columns that contain at least one active level. The name
	// follows the usage in the model driver, where columns outside the mask
	// are treated as dry land.
	LandMask []bool

	// WaterMask and EdgeMask have one entry per cell, in row-major
	// (x, y, z) order. WaterMask marks the active band of each column and
	// EdgeMask marks its floor.
	WaterMask, EdgeMask []bool

	floor []int
}

func (m *Masks) column(i, j int) int { return i*m.Ny + j }

// Floor returns the level index of the floor of column (i, j), or -1 if
// ks <= 0 there. The index is Nz or more for columns whose ks exceeds the
// number of levels.
func (m *Masks) Floor(i, j int) int { return m.floor[m.column(i, j)] }

// Band returns the half-open range of active levels of column (i, j).
// The range is empty for columns with no active levels.
func (m *Masks) Band(i, j int) (start, end int) {
	f := m.Floor(i, j)
	if f < 0 || f >= m.Nz {
		return 0, 0
	}
	return f, m.Nz
}

// Land reports whether ks is positive in column (i, j).
func (m *Masks) Land(i, j int) bool { return m.LandMask[m.column(i, j)] }

// Water reports whether cell (i, j, k) is active.
func (m *Masks) Water(i, j, k int) bool { return m.WaterMask[m.column(i, j)*m.Nz+k] }

// Edge reports whether cell (i, j, k) is the floor of its column.
func (m *Masks) Edge(i, j, k int) bool { return m.EdgeMask[m.column(i, j)*m.Nz+k] }

// CreateWaterMasks builds the masks for an nz-level grid from ks, a
// two-dimensional array holding the number of the deepest active level of
// each column counted from one. ks must hold whole numbers. Columns where
// ks <= 0 have no active levels. For the other columns the floor is at level
// ks-1; a column whose ks exceeds nz is in LandMask but has no water or edge
// cells.
func CreateWaterMasks(ks *sparse.DenseArray, nz int) (*Masks, error) {
	if len(ks.Shape) != 2 {
		return nil, fmt.Errorf("%w: ks must have 2 dimensions, has %d", ErrInvalidShape, len(ks.Shape))
	}
	if nz <= 0 {
		return nil, fmt.Errorf("%w: nz = %d, must be positive", ErrPrecondition, nz)
	}
	nx, ny := ks.Shape[0], ks.Shape[1]
	m := &Masks{
		Nx: nx, Ny: ny, Nz: nz,
		LandMask:  make([]bool, nx*ny),
		WaterMask: make([]bool, nx*ny*nz),
		EdgeMask:  make([]bool, nx*ny*nz),
		floor:     make([]int, nx*ny),
	}
	for c, v := range ks.Elements {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: ks = %g in column %d is not a whole number", ErrPrecondition, v, c)
		}
		k0 := int(v) - 1
		if k0 < 0 {
			m.floor[c] = -1
			continue
		}
		m.floor[c] = k0
		m.LandMask[c] = true
		if k0 >= nz {
			continue
		}
		m.EdgeMask[c*nz+k0] = true
		for k := k0; k < nz; k++ {
			m.WaterMask[c*nz+k] = true
		}
	}
	return m, nil
}

// ColumnCount returns the number of columns in LandMask.
func (m *Masks) ColumnCount() int {
	n := 0
	for _, l := range m.LandMask {
		if l {
			n++
		}
	}
	return n
}
