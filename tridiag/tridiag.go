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

// Package tridiag solves tridiagonal systems of linear equations.
package tridiag

import (
	"errors"
	"fmt"
	"math"
)

// ErrLength is returned when the diagonals of a system have
// different lengths.
var ErrLength = errors.New("tridiag: mismatched lengths")

// Solve solves the system
//
//	a[i]*x[i-1] + b[i]*x[i] + c[i]*x[i+1] = d[i]
//
// for x using the Thomas algorithm. a[0] and c[n-1] are ignored.
// The inputs are not modified.
//
// No pivoting is performed, so the system must be diagonally dominant
// (see DiagonallyDominant) for the solution to be stable. A zero pivot
// produces Inf or NaN values rather than an error.
func Solve(a, b, c, d []float64) ([]float64, error) {
	n := len(d)
	if len(a) != n || len(b) != n || len(c) != n {
		return nil, fmt.Errorf("%w: a=%d b=%d c=%d d=%d", ErrLength, len(a), len(b), len(c), n)
	}
	x := make([]float64, n)
	SolveInto(x, make([]float64, n), a, b, c, d)
	return x, nil
}

// SolveInto is like Solve but writes the solution into x and uses scratch
// as working memory, so it does not allocate. All slices must have the
// same length; x may not share memory with the other arguments.
func SolveInto(x, scratch, a, b, c, d []float64) {
	n := len(d)
	if n == 0 {
		return
	}
	cp := scratch // modified super-diagonal

	// Forward elimination.
	if n == 1 {
		x[0] = d[0] / b[0]
		return
	}
	cp[0] = c[0] / b[0]
	x[0] = d[0] / b[0]
	for i := 1; i < n; i++ {
		denom := b[i] - a[i]*cp[i-1]
		if i < n-1 {
			cp[i] = c[i] / denom
		}
		x[i] = (d[i] - a[i]*x[i-1]) / denom
	}

	// Back substitution.
	for i := n - 2; i >= 0; i-- {
		x[i] -= cp[i] * x[i+1]
	}
}

// DiagonallyDominant reports whether |b[i]| >= |a[i]| + |c[i]| for every row,
// with strict inequality for at least one row, ignoring a[0] and c[n-1].
func DiagonallyDominant(a, b, c []float64) bool {
	n := len(b)
	if n == 0 || len(a) != n || len(c) != n {
		return false
	}
	strict := false
	for i := 0; i < n; i++ {
		off := 0.
		if i > 0 {
			off += math.Abs(a[i])
		}
		if i < n-1 {
			off += math.Abs(c[i])
		}
		diag := math.Abs(b[i])
		if diag < off {
			return false
		}
		if diag > off {
			strict = true
		}
	}
	return strict
}
