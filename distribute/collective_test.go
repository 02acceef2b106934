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
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

func TestTileOf(t *testing.T) {
	global := seq(4, 2)
	topo, _ := NewTopology(2, 1, 1)
	tile, err := TileOf(global, topo)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tile.Shape, []int{6, 6}) {
		t.Fatalf("shape: have %v", tile.Shape)
	}
	for _, c := range []struct {
		i, j int
		want float64
	}{
		{2, 2, 4}, {2, 3, 5}, {3, 2, 6}, {3, 3, 7}, {0, 0, 0}, {5, 5, 0},
	} {
		if have := tile.Get(c.i, c.j); have != c.want {
			t.Errorf("(%d,%d): have %g, want %g", c.i, c.j, have, c.want)
		}
	}
	bad, _ := NewTopology(3, 1, 0)
	if _, err := TileOf(global, bad); !errors.Is(err, ErrTopology) {
		t.Errorf("uneven decomposition: have %v, want ErrTopology", err)
	}
}

func TestGather(t *testing.T) {
	global := referenceField(6, 8, 3)
	topos, fields := tiles(t, global, 3, 2)
	net := NewLocalNetwork(len(topos))
	net.Timeout = 5 * time.Second
	results := make([]*sparse.DenseArray, len(topos))
	err := runRanks(len(topos), func(r int) error {
		var err error
		results[r], err = Gather(net.Comm(r), topos[r], fields[r])
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(results[0].Shape, global.Shape) {
		t.Fatalf("shape: have %v, want %v", results[0].Shape, global.Shape)
	}
	if !reflect.DeepEqual(results[0].Elements, global.Elements) {
		t.Errorf("gathered field does not match")
	}
	for r := 1; r < len(results); r++ {
		if results[r] != nil {
			t.Errorf("rank %d should not receive the gathered field", r)
		}
	}
}

func TestGatherEmptyInterior(t *testing.T) {
	net := NewLocalNetwork(1)
	tile := sparse.ZerosDense(2*Halo, 2*Halo+3)
	if _, err := Gather(net.Comm(0), Topology{NProcX: 1, NProcY: 1}, tile); !errors.Is(err, ErrNarrowField) {
		t.Errorf("have %v, want ErrNarrowField", err)
	}
}

func TestAllSum(t *testing.T) {
	const n = 5
	net := NewLocalNetwork(n)
	net.Timeout = 5 * time.Second
	sums := make([]float64, n)
	err := runRanks(n, func(r int) error {
		var err error
		sums[r], err = AllSum(net.Comm(r), float64(r+1))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	for r, s := range sums {
		if s != 15 {
			t.Errorf("rank %d: have %g, want 15", r, s)
		}
	}
}
