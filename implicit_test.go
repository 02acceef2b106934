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
	"errors"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/oceancore/tridiag"
	"gonum.org/v1/gonum/floats"
)

// system returns the diagonals of an (nx, ny, nz) system with constant
// coefficients and right-hand side sequence(nx, ny, nz).
func system(nx, ny, nz int, a, b, c float64) (A, B, C, D *sparse.DenseArray) {
	A, B, C = sparse.ZerosDense(nx, ny, nz), sparse.ZerosDense(nx, ny, nz), sparse.ZerosDense(nx, ny, nz)
	for i := range A.Elements {
		A.Elements[i], B.Elements[i], C.Elements[i] = a, b, c
	}
	return A, B, C, sequence(nx, ny, nz)
}

func TestSolveImplicitIdentity(t *testing.T) {
	m, err := CreateWaterMasks(levels(2, 2, 1, 3, 0, 2), 4)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c, d := system(2, 2, 4, 0, 1, 0)
	have, err := SolveImplicit(a, b, c, d, m, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(have.Elements, d.Elements) {
		t.Errorf("have %v, want %v", have.Elements, d.Elements)
	}
	if have == d {
		t.Error("result should be a new array")
	}
}

// One column with three levels and its floor at level 1: only the floor
// cell is shifted by dEdge.
func TestSolveImplicitEdge(t *testing.T) {
	m, err := CreateWaterMasks(levels(1, 1, 2), 3)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c, d := system(1, 1, 3, 0, 1, 0)
	d.Elements = []float64{10, 20, 30}
	dEdge := levels(1, 1, 5)
	have, err := SolveImplicit(a, b, c, d, m, nil, dEdge)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{10, 25, 30}; !reflect.DeepEqual(have.Elements, want) {
		t.Errorf("have %v, want %v", have.Elements, want)
	}
	if want := []float64{10, 20, 30}; !reflect.DeepEqual(d.Elements, want) {
		t.Errorf("d modified: %v", d.Elements)
	}

	// A full-field bEdge doubles the floor diagonal.
	bEdge := sparse.ZerosDense(1, 1, 3)
	bEdge.Elements = []float64{7, 1, 7}
	have, err = SolveImplicit(a, b, c, d, m, bEdge, dEdge)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{10, 12.5, 30}; !reflect.DeepEqual(have.Elements, want) {
		t.Errorf("have %v, want %v", have.Elements, want)
	}
}

// Each band is solved on its own: cells below the floor do not couple to it
// even when the sub-diagonal is non-zero there.
func TestSolveImplicitBand(t *testing.T) {
	const nz = 6
	m, err := CreateWaterMasks(levels(3, 2, 1, 4, 0, 6, 9, 2), nz)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c, d := system(3, 2, nz, -1, 4, -1.5)
	dEdge := levels(3, 2, 1, 2, 3, 4, 5, 6)
	have, err := SolveImplicit(a, b, c, d, m, nil, dEdge)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			lo, hi := m.Band(i, j)
			col := d.Elements[(i*2+j)*nz : (i*2+j+1)*nz]
			out := have.Elements[(i*2+j)*nz : (i*2+j+1)*nz]
			if !floats.Equal(out[:lo], col[:lo]) {
				t.Errorf("(%d,%d) below band: have %v, want %v", i, j, out[:lo], col[:lo])
			}
			if lo == hi {
				if !floats.Equal(out, col) {
					t.Errorf("(%d,%d) land: have %v, want %v", i, j, out, col)
				}
				continue
			}
			rhs := append([]float64{}, col[lo:hi]...)
			rhs[0] += dEdge.Get(i, j)
			want, err := tridiag.Solve(a.Elements[lo:hi], b.Elements[lo:hi], c.Elements[lo:hi], rhs)
			if err != nil {
				t.Fatal(err)
			}
			if !floats.EqualApprox(out[lo:hi], want, 1e-12) {
				t.Errorf("(%d,%d) band: have %v, want %v", i, j, out[lo:hi], want)
			}
			for k := lo; k < hi; k++ {
				// Check the residual of the interior equations directly.
				if k == lo || k == hi-1 {
					continue
				}
				r := a.Get(i, j, k)*out[k-1] + b.Get(i, j, k)*out[k] + c.Get(i, j, k)*out[k+1]
				if different(r, col[k], 1e-10) {
					t.Errorf("(%d,%d,%d) residual: have %g, want %g", i, j, k, r, col[k])
				}
			}
		}
	}
}

func TestSolveImplicitShape(t *testing.T) {
	m, err := CreateWaterMasks(levels(2, 2, 1, 1, 1, 1), 3)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c, d := system(2, 2, 3, 0, 1, 0)
	if _, err := SolveImplicit(a, b, c, sparse.ZerosDense(2, 2, 4), m, nil, nil); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("d: have %v, want ErrInvalidShape", err)
	}
	if _, err := SolveImplicit(a, b, c, d, m, sparse.ZerosDense(2, 3), nil); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("bEdge: have %v, want ErrInvalidShape", err)
	}
}

// Column 0 is deeper than the grid and is copied from d.
func TestSolveImplicitTooDeep(t *testing.T) {
	m, err := CreateWaterMasks(levels(2, 1, 5, 1), 3)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c, d := system(2, 1, 3, 0, 2, 0)
	have, err := SolveImplicit(a, b, c, d, m, sparse.ZerosDense(2, 1), sparse.ZerosDense(2, 1))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 2, 2.5, 3}
	if !reflect.DeepEqual(have.Elements, want) {
		t.Errorf("have %v, want %v", have.Elements, want)
	}
}

func TestSolveImplicitUnbuiltMasks(t *testing.T) {
	a, b, c, d := system(1, 1, 3, 0, 1, 0)
	m := &Masks{Nx: 1, Ny: 1, Nz: 3}
	if _, err := SolveImplicit(a, b, c, d, m, nil, nil); !errors.Is(err, ErrPrecondition) {
		t.Errorf("have %v, want ErrPrecondition", err)
	}
}
