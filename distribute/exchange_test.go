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
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

const sentinel = -1.

// referenceField returns a global field whose values encode their
// own coordinates.
func referenceField(nx, ny, nz int) *sparse.DenseArray {
	g := sparse.ZerosDense(nx, ny, nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				g.Set(float64(i*10000+j*100+k), i, j, k)
			}
		}
	}
	return g
}

// tiles splits global among the processes of an nprocX by nprocY grid and
// fills the halos with sentinel values.
func tiles(t *testing.T, global *sparse.DenseArray, nprocX, nprocY int) ([]Topology, []*sparse.DenseArray) {
	var topos []Topology
	var fields []*sparse.DenseArray
	for r := 0; r < nprocX*nprocY; r++ {
		topo, err := NewTopology(nprocX, nprocY, r)
		if err != nil {
			t.Fatal(err)
		}
		tile, err := TileOf(global, topo)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < tile.Shape[0]; i++ {
			for j := 0; j < tile.Shape[1]; j++ {
				if i >= Halo && i < tile.Shape[0]-Halo && j >= Halo && j < tile.Shape[1]-Halo {
					continue
				}
				for k := 0; k < tile.Shape[2]; k++ {
					tile.Set(sentinel, i, j, k)
				}
			}
		}
		topos = append(topos, topo)
		fields = append(fields, tile)
	}
	return topos, fields
}

// runRanks runs f concurrently for every rank of the process group.
func runRanks(size int, f func(rank int) error) error {
	var g errgroup.Group
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error { return f(r) })
	}
	return g.Wait()
}

// checkHalos compares every cell of each tile to the global field, which
// is periodic in x when cyclic is true. Cells that fall outside of the
// global domain should still hold the sentinel value.
func checkHalos(t *testing.T, global *sparse.DenseArray, topos []Topology, fields []*sparse.DenseArray, cyclic bool) {
	gnx, gny := global.Shape[0], global.Shape[1]
	for r, f := range fields {
		topo := topos[r]
		nx, ny := f.Shape[0]-2*Halo, f.Shape[1]-2*Halo
		for i := 0; i < f.Shape[0]; i++ {
			gi := topo.CoordX*nx + i - Halo
			if cyclic {
				gi = (gi + gnx) % gnx
			}
			for j := 0; j < f.Shape[1]; j++ {
				gj := topo.CoordY*ny + j - Halo
				for k := 0; k < f.Shape[2]; k++ {
					want := sentinel
					if gi >= 0 && gi < gnx && gj >= 0 && gj < gny {
						want = global.Get(gi, gj, k)
					}
					if have := f.Get(i, j, k); have != want {
						t.Errorf("rank %d cell (%d,%d,%d): have %g, want %g", r, i, j, k, have, want)
					}
				}
			}
		}
	}
}

func TestExchange(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, test := range []struct {
		nprocX, nprocY int
		cyclic         bool
	}{
		{1, 1, true},
		{1, 1, false},
		{2, 1, true},
		{2, 1, false},
		{1, 2, true},
		{2, 2, true},
		{2, 2, false},
		{3, 2, true},
		{4, 3, false},
	} {
		t.Run(fmt.Sprintf("%dx%d_cyclic=%v", test.nprocX, test.nprocY, test.cyclic), func(t *testing.T) {
			global := referenceField(4*test.nprocX, 3*test.nprocY, 2)
			topos, fields := tiles(t, global, test.nprocX, test.nprocY)
			net := NewLocalNetwork(len(topos))
			net.Timeout = 5 * time.Second
			err := runRanks(len(topos), func(r int) error {
				return Exchange(net.Comm(r), topos[r], fields[r], []Axis{X, Y}, test.cyclic)
			})
			if err != nil {
				t.Fatal(err)
			}
			checkHalos(t, global, topos, fields, test.cyclic)
		})
	}
}

func TestExchangeRepeated(t *testing.T) {
	global := referenceField(8, 8, 1)
	topos, fields := tiles(t, global, 2, 2)
	net := NewLocalNetwork(4)
	net.Timeout = 5 * time.Second
	err := runRanks(4, func(r int) error {
		for i := 0; i < 5; i++ {
			if err := Exchange(net.Comm(r), topos[r], fields[r], []Axis{X, Y}, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	checkHalos(t, global, topos, fields, true)
}

func TestExchangeNarrow(t *testing.T) {
	topo, _ := NewTopology(2, 1, 0)
	f := seq(3, 6)
	before := f.Copy()
	err := Exchange(NewLocalNetwork(2).Comm(0), topo, f, []Axis{X, Y}, true)
	if !errors.Is(err, ErrNarrowField) {
		t.Fatalf("have %v, want ErrNarrowField", err)
	}
	if !reflect.DeepEqual(f.Elements, before.Elements) {
		t.Errorf("field should not be modified")
	}
}

func TestReceiveTimeout(t *testing.T) {
	net := NewLocalNetwork(2)
	net.Timeout = 10 * time.Millisecond
	_, err := net.Comm(0).Receive(1, 0)
	if !errors.Is(err, ErrCommunication) {
		t.Errorf("have %v, want ErrCommunication", err)
	}
	if err := net.Comm(0).Send([]float64{1}, 2, 0); !errors.Is(err, ErrCommunication) {
		t.Errorf("send to missing rank: have %v, want ErrCommunication", err)
	}
}

func TestLocalNetworkClose(t *testing.T) {
	net := NewLocalNetwork(2)
	errc := make(chan error, 1)
	go func() {
		_, err := net.Comm(0).Receive(1, 0)
		errc <- err
	}()
	net.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrCommunication) {
			t.Errorf("have %v, want ErrCommunication", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Receive still blocked after Close")
	}
	if err := net.Comm(1).Send([]float64{1}, 0, 0); err != nil {
		t.Errorf("send after close: %v", err)
	}
}

func TestExchangeMissingNeighbor(t *testing.T) {
	global := referenceField(8, 4, 1)
	topos, fields := tiles(t, global, 2, 1)
	net := NewLocalNetwork(2)
	net.Timeout = 20 * time.Millisecond
	// Only rank 0 takes part, so its receive from rank 1 must fail.
	err := Exchange(net.Comm(0), topos[0], fields[0], []Axis{X}, false)
	if !errors.Is(err, ErrCommunication) {
		t.Errorf("have %v, want ErrCommunication", err)
	}
}
