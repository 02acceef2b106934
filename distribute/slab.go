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

package distribute

import (
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
)

// ErrNarrowField is returned when a field has fewer cells along an
// exchanged axis than two halo widths.
var ErrNarrowField = errors.New("distribute: field narrower than two halo widths")

// CheckWidth returns an error if field cannot hold a halo on both
// sides of axis a.
func CheckWidth(field *sparse.DenseArray, a Axis) error {
	if int(a) >= len(field.Shape) {
		return fmt.Errorf("%w: field has %d dimensions, no %v axis", ErrNarrowField, len(field.Shape), a)
	}
	if n := field.Shape[a]; n < 2*Halo {
		return fmt.Errorf("%w: %v axis has %d cells", ErrNarrowField, a, n)
	}
	return nil
}

// strides returns the number of hyperplanes outside of axis a, the length
// of axis a, and the number of elements within one plane of axis a.
func strides(shape []int, a Axis) (outer, n, inner int) {
	outer, inner = 1, 1
	for i, s := range shape {
		switch {
		case i < int(a):
			outer *= s
		case i > int(a):
			inner *= s
		}
	}
	return outer, shape[a], inner
}

// PackSlab returns a copy of the width planes of field along axis a
// starting at index start.
func PackSlab(field *sparse.DenseArray, a Axis, start, width int) []float64 {
	outer, n, inner := strides(field.Shape, a)
	buf := make([]float64, 0, outer*width*inner)
	for o := 0; o < outer; o++ {
		i0 := (o*n + start) * inner
		buf = append(buf, field.Elements[i0:i0+width*inner]...)
	}
	return buf
}

// UnpackSlab overwrites the width planes of field along axis a starting at
// index start with the contents of buf, which must have been created by
// PackSlab on a field of the same shape.
func UnpackSlab(field *sparse.DenseArray, a Axis, start, width int, buf []float64) error {
	outer, n, inner := strides(field.Shape, a)
	if len(buf) != outer*width*inner {
		return fmt.Errorf("slab has %d elements, want %d", len(buf), outer*width*inner)
	}
	w := width * inner
	for o := 0; o < outer; o++ {
		i0 := (o*n + start) * inner
		copy(field.Elements[i0:i0+w], buf[o*w:(o+1)*w])
	}
	return nil
}

// CopySlab copies the width planes along axis a starting at src onto the
// planes starting at dst.
func CopySlab(field *sparse.DenseArray, a Axis, dst, src, width int) {
	outer, n, inner := strides(field.Shape, a)
	w := width * inner
	for o := 0; o < outer; o++ {
		s := (o*n + src) * inner
		d := (o*n + dst) * inner
		copy(field.Elements[d:d+w], field.Elements[s:s+w])
	}
}
