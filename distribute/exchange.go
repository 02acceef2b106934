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

// Message tags. Each exchanged axis uses two tags: one for slabs that
// travel toward lower coordinates and one for slabs that travel toward
// higher coordinates.
const (
	tagExchange = 100
	tagGather   = 200
	tagSum      = 300
)

// Exchange overwrites the halo cells of field along each of the given axes
// with the adjacent interior cells of the neighboring processes.
// If cyclic is true the process grid is periodic along the x axis, so the
// processes at the low and high x edges are neighbors of each other. At
// non-periodic edges of the process grid the halo is left unchanged.
//
// The axes are exchanged in order. Slabs along the y axis span the whole
// x extent of the tile including its halo, so exchanging x before y also
// fills the corners of the halo ring.
//
// Every process in the group must call Exchange with the same axes and
// cyclic setting. Exchange returns after all of the slabs for this process
// have been sent and received.
func Exchange(comm Communicator, topo Topology, field *sparse.DenseArray, axes []Axis, cyclic bool) error {
	for _, a := range axes {
		if err := CheckWidth(field, a); err != nil {
			return err
		}
	}
	for _, a := range axes {
		if err := exchangeAxis(comm, topo, field, a, cyclic && a == X); err != nil {
			return err
		}
	}
	return nil
}

func exchangeAxis(comm Communicator, topo Topology, field *sparse.DenseArray, a Axis, periodic bool) error {
	n := field.Shape[a]
	tagDown := tagExchange + 2*int(a)
	tagUp := tagDown + 1

	lo, hasLo := topo.Neighbor(a, -1, periodic)
	hi, hasHi := topo.Neighbor(a, 1, periodic)

	// Pack both slabs before receiving anything, because with one or two
	// processes along a periodic axis a process can be its own neighbor.
	if hasLo {
		if err := comm.Send(PackSlab(field, a, Halo, Halo), lo, tagDown); err != nil {
			return fmt.Errorf("exchanging %v halo: %w", a, err)
		}
	}
	if hasHi {
		if err := comm.Send(PackSlab(field, a, n-2*Halo, Halo), hi, tagUp); err != nil {
			return fmt.Errorf("exchanging %v halo: %w", a, err)
		}
	}
	if hasHi {
		buf, err := comm.Receive(hi, tagDown)
		if err != nil {
			return fmt.Errorf("exchanging %v halo: %w", a, err)
		}
		if err := UnpackSlab(field, a, n-Halo, Halo, buf); err != nil {
			return fmt.Errorf("%w: exchanging %v halo from rank %d: %v", ErrCommunication, a, hi, err)
		}
	}
	if hasLo {
		buf, err := comm.Receive(lo, tagUp)
		if err != nil {
			return fmt.Errorf("exchanging %v halo: %w", a, err)
		}
		if err := UnpackSlab(field, a, 0, Halo, buf); err != nil {
			return fmt.Errorf("%w: exchanging %v halo from rank %d: %v", ErrCommunication, a, lo, err)
		}
	}
	return nil
}
