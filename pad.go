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

	"github.com/ctessum/sparse"
)

// PadZEdges returns a copy of a with one extra cell at each end of its
// last axis, filled by repeating the edge values. a must be either a
// single column (1 dimension) or a full field (3 or more dimensions);
// other shapes return ErrInvalidShape. a is not modified.
func PadZEdges(a *sparse.DenseArray) (*sparse.DenseArray, error) {
	nd := len(a.Shape)
	if nd != 1 && nd < 3 {
		return nil, fmt.Errorf("%w: cannot pad array with %d dimensions along z", ErrInvalidShape, nd)
	}
	n := a.Shape[nd-1]
	if n == 0 {
		return nil, fmt.Errorf("%w: cannot pad empty z axis", ErrInvalidShape)
	}
	shape := append([]int{}, a.Shape...)
	shape[nd-1] = n + 2
	out := sparse.ZerosDense(shape...)
	for o := 0; o < len(a.Elements)/n; o++ {
		src := a.Elements[o*n : (o+1)*n]
		dst := out.Elements[o*(n+2) : (o+1)*(n+2)]
		dst[0] = src[0]
		copy(dst[1:], src)
		dst[n+1] = src[n-1]
	}
	return out, nil
}
