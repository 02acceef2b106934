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
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/oceancore/tridiag"
)

// SolveImplicit solves, in every water column of m, the tridiagonal system
//
//	a[k]*x[k-1] + b[k]*x[k] + c[k]*x[k+1] = d[k]
//
// over the column's active band and returns x in an array shaped like d.
// a, b, c and d must have shape (Nx, Ny, Nz) matching m.
//
// Before solving, bEdge and dEdge, if not nil, are added to b and d at the
// floor cell of each column only. They may have shape (Nx, Ny, Nz) or
// (Nx, Ny). The entry of a at the floor and the entry of c at the top of
// the grid are ignored, so each band is solved independently of the cells
// around it. Cells outside the band, including every cell of a column with
// no active levels, are copied from d unchanged. None of the inputs are
// modified. m must come from CreateWaterMasks.
//
// The systems must be diagonally dominant (see tridiag.DiagonallyDominant);
// this is not checked.
func SolveImplicit(a, b, c, d *sparse.DenseArray, m *Masks, bEdge, dEdge *sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(m.floor) != m.Nx*m.Ny {
		return nil, fmt.Errorf("%w: masks were not built by CreateWaterMasks", ErrPrecondition)
	}
	shape := []int{m.Nx, m.Ny, m.Nz}
	for _, v := range []struct {
		name string
		arr  *sparse.DenseArray
	}{{"a", a}, {"b", b}, {"c", c}, {"d", d}} {
		if !sameShape(v.arr.Shape, shape) {
			return nil, fmt.Errorf("%w: %s has shape %v, masks have %v", ErrInvalidShape, v.name, v.arr.Shape, shape)
		}
	}
	bStride, err := edgeStride("bEdge", bEdge, shape)
	if err != nil {
		return nil, err
	}
	dStride, err := edgeStride("dEdge", dEdge, shape)
	if err != nil {
		return nil, err
	}

	out := d.Copy()
	nz := m.Nz
	ncol := m.Nx * m.Ny

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			bb := make([]float64, nz)
			dd := make([]float64, nz)
			scratch := make([]float64, nz)
			for col := pp; col < ncol; col += nprocs {
				k0 := m.floor[col]
				if k0 < 0 || k0 >= nz {
					continue
				}
				lo, hi := col*nz+k0, (col+1)*nz
				n := hi - lo
				copy(bb, b.Elements[lo:hi])
				copy(dd, d.Elements[lo:hi])
				if bEdge != nil {
					bb[0] += bEdge.Elements[edgeIndex(col, k0, bStride)]
				}
				if dEdge != nil {
					dd[0] += dEdge.Elements[edgeIndex(col, k0, dStride)]
				}
				tridiag.SolveInto(out.Elements[lo:hi], scratch[:n],
					a.Elements[lo:hi], bb[:n], c.Elements[lo:hi], dd[:n])
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	return out, nil
}

// edgeStride checks the shape of a floor boundary array and returns the
// number of its elements per column: nz for a full field or 1 for a
// two-dimensional one.
func edgeStride(name string, e *sparse.DenseArray, shape []int) (int, error) {
	switch {
	case e == nil:
		return 0, nil
	case sameShape(e.Shape, shape):
		return shape[2], nil
	case sameShape(e.Shape, shape[:2]):
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %s has shape %v, want %v or %v", ErrInvalidShape, name, e.Shape, shape, shape[:2])
}

func edgeIndex(col, k, stride int) int {
	if stride == 1 {
		return col
	}
	return col*stride + k
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
