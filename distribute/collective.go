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
	"fmt"

	"github.com/ctessum/sparse"
)

// tileShape returns the interior size of each tile and the number of
// elements per horizontal cell for a global array shape.
func tileShape(global []int, topo Topology) (nx, ny, rest int, err error) {
	if len(global) < 2 {
		return 0, 0, 0, fmt.Errorf("%w: need at least 2 dimensions, have %d", ErrTopology, len(global))
	}
	if global[0]%topo.NProcX != 0 || global[1]%topo.NProcY != 0 {
		return 0, 0, 0, fmt.Errorf("%w: %dx%d grid does not divide evenly among %dx%d processes",
			ErrTopology, global[0], global[1], topo.NProcX, topo.NProcY)
	}
	rest = 1
	for _, s := range global[2:] {
		rest *= s
	}
	return global[0] / topo.NProcX, global[1] / topo.NProcY, rest, nil
}

// TileOf returns the tile of global that belongs to the process described
// by topo, surrounded by a halo of zeros.
func TileOf(global *sparse.DenseArray, topo Topology) (*sparse.DenseArray, error) {
	nx, ny, rest, err := tileShape(global.Shape, topo)
	if err != nil {
		return nil, err
	}
	shape := append([]int{nx + 2*Halo, ny + 2*Halo}, global.Shape[2:]...)
	tile := sparse.ZerosDense(shape...)
	gny := global.Shape[1]
	for i := 0; i < nx; i++ {
		gi := topo.CoordX*nx + i
		for j := 0; j < ny; j++ {
			gj := topo.CoordY*ny + j
			src := (gi*gny + gj) * rest
			dst := ((i+Halo)*shape[1] + j + Halo) * rest
			copy(tile.Elements[dst:dst+rest], global.Elements[src:src+rest])
		}
	}
	return tile, nil
}

// interior returns the cells of tile that are not in its halo, ordered
// by x, then y, then the remaining axes.
func interior(tile *sparse.DenseArray) (nx, ny int, buf []float64) {
	nx, ny = tile.Shape[0]-2*Halo, tile.Shape[1]-2*Halo
	rest := 1
	for _, s := range tile.Shape[2:] {
		rest *= s
	}
	buf = make([]float64, 0, nx*ny*rest)
	for i := Halo; i < Halo+nx; i++ {
		i0 := (i*tile.Shape[1] + Halo) * rest
		buf = append(buf, tile.Elements[i0:i0+ny*rest]...)
	}
	return nx, ny, buf
}

// Gather assembles the interiors of the tiles of all processes into a
// global array on rank 0, which is returned. All tiles must have the same
// shape. Other ranks return a nil array.
func Gather(comm Communicator, topo Topology, tile *sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(tile.Shape) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 dimensions, have %d", ErrTopology, len(tile.Shape))
	}
	if err := CheckWidth(tile, X); err != nil {
		return nil, err
	}
	if err := CheckWidth(tile, Y); err != nil {
		return nil, err
	}
	nx, ny, buf := interior(tile)
	if nx == 0 || ny == 0 {
		return nil, fmt.Errorf("%w: tile of shape %v has no interior cells", ErrNarrowField, tile.Shape)
	}
	if comm.Rank() != 0 {
		if err := comm.Send(buf, 0, tagGather); err != nil {
			return nil, fmt.Errorf("gathering tiles: %w", err)
		}
		return nil, nil
	}
	shape := append([]int{nx * topo.NProcX, ny * topo.NProcY}, tile.Shape[2:]...)
	global := sparse.ZerosDense(shape...)
	rest := len(buf) / (nx * ny)
	place := func(t Topology, buf []float64) error {
		if len(buf) != nx*ny*rest {
			return fmt.Errorf("%w: tile from rank %d has %d elements, want %d",
				ErrCommunication, t.Rank(), len(buf), nx*ny*rest)
		}
		for i := 0; i < nx; i++ {
			gi := t.CoordX*nx + i
			dst := (gi*shape[1] + t.CoordY*ny) * rest
			copy(global.Elements[dst:dst+ny*rest], buf[i*ny*rest:(i+1)*ny*rest])
		}
		return nil
	}
	if err := place(topo.At(0), buf); err != nil {
		return nil, err
	}
	for r := 1; r < topo.Size(); r++ {
		b, err := comm.Receive(r, tagGather)
		if err != nil {
			return nil, fmt.Errorf("gathering tiles: %w", err)
		}
		if err := place(topo.At(r), b); err != nil {
			return nil, err
		}
	}
	return global, nil
}

// AllSum returns the sum of v over all processes. Every process receives
// the same result because the values are summed in rank order.
func AllSum(comm Communicator, v float64) (float64, error) {
	for r := 0; r < comm.Size(); r++ {
		if r == comm.Rank() {
			continue
		}
		if err := comm.Send([]float64{v}, r, tagSum); err != nil {
			return 0, fmt.Errorf("summing: %w", err)
		}
	}
	var sum float64
	for r := 0; r < comm.Size(); r++ {
		if r == comm.Rank() {
			sum += v
			continue
		}
		b, err := comm.Receive(r, tagSum)
		if err != nil {
			return 0, fmt.Errorf("summing: %w", err)
		}
		if len(b) != 1 {
			return 0, fmt.Errorf("%w: sum message from rank %d has %d values", ErrCommunication, r, len(b))
		}
		sum += b[0]
	}
	return sum, nil
}
