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

package basin

import (
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore"
	"github.com/spatialmodel/oceancore/distribute"
	"golang.org/x/sync/errgroup"
)

// Result holds the state of the whole domain at the end of a simulation.
type Result struct {
	Temp       *sparse.DenseArray // (Nx, Ny, Nz) [K]
	KS         *sparse.DenseArray // (Nx, Ny)
	Masks      *oceancore.Masks
	Iterations int
}

// RunRank runs the process of a simulation that communicates through
// comm. The result is returned on rank 0; other ranks return nil.
func RunRank(c *Config, comm distribute.Communicator, log logrus.FieldLogger) (*Result, error) {
	if comm.Size() != c.NProcX*c.NProcY {
		return nil, fmt.Errorf("%w: %d processes available, %dx%d configured", ErrConfig, comm.Size(), c.NProcX, c.NProcY)
	}
	topo, err := distribute.NewTopology(c.NProcX, c.NProcY, comm.Rank())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	ec := oceancore.NewExecutionContext(topo, comm)
	ec.Log = log.WithField("rank", comm.Rank())
	b, err := New(c, ec, log)
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("basin: problem initializing model: %w", err)
	}
	if err := b.Run(); err != nil {
		return nil, fmt.Errorf("basin: problem running simulation: %w", err)
	}
	return b.gather(comm)
}

// gather collects the tiles of all processes onto rank 0.
func (b *Basin) gather(comm distribute.Communicator) (*Result, error) {
	temp, err := distribute.Gather(comm, b.EC.Topology, b.Temp)
	if err != nil {
		return nil, fmt.Errorf("basin: gathering temperature: %w", err)
	}
	ks, err := distribute.Gather(comm, b.EC.Topology, b.KS)
	if err != nil {
		return nil, fmt.Errorf("basin: gathering bathymetry: %w", err)
	}
	if comm.Rank() != 0 {
		return nil, nil
	}
	m, err := oceancore.CreateWaterMasks(ks, b.Config.Nz)
	if err != nil {
		return nil, err
	}
	return &Result{Temp: temp, KS: ks, Masks: m, Iterations: b.Iteration}, nil
}

// RunLocal runs a simulation with every process as a goroutine of the
// current program and returns the result. If any process fails, the
// others are stopped and the first error is returned.
func RunLocal(c *Config, log logrus.FieldLogger) (*Result, error) {
	return runLocal(c, log, RunRank)
}

type rankRunner func(c *Config, comm distribute.Communicator, log logrus.FieldLogger) (*Result, error)

func runLocal(c *Config, log logrus.FieldLogger, run rankRunner) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := c.NProcX * c.NProcY
	net := distribute.NewLocalNetwork(n)
	results := make([]*Result, n)
	var g errgroup.Group
	for r := 0; r < n; r++ {
		r := r
		g.Go(func() error {
			res, err := run(c, net.Comm(r), log)
			if err != nil {
				net.Close()
			}
			results[r] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results[0], nil
}
