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
	"math"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore"
	"github.com/spatialmodel/oceancore/distribute"
	"gonum.org/v1/gonum/floats"
)

// HorizontalDiffusion returns a function that explicitly diffuses heat
// between neighboring water cells at the same level and then refreshes
// the halo.
func HorizontalDiffusion() DomainManipulator {
	diffuse := Calculations(horizontalDiffusion)
	return func(b *Basin) error {
		if b.old == nil {
			b.old = b.Temp.Copy()
		} else {
			copy(b.old.Elements, b.Temp.Elements)
		}
		if err := diffuse(b); err != nil {
			return err
		}
		if _, err := oceancore.EnforceBoundaries(b.EC, b.Temp, b.Config.Cyclic, false); err != nil {
			return fmt.Errorf("horizontal diffusion: %w", err)
		}
		return nil
	}
}

func horizontalDiffusion(b *Basin, i, j int) {
	r := b.Config.KappaH * b.Dt / (b.Config.Dx * b.Config.Dx)
	lo, hi := b.Masks.Band(i, j)
	neighbors := [4][2]int{{i - 1, j}, {i + 1, j}, {i, j - 1}, {i, j + 1}}
	for k := lo; k < hi; k++ {
		t := b.old.Get(i, j, k)
		var flux float64
		for _, n := range neighbors {
			if b.Masks.Water(n[0], n[1], k) {
				flux += b.old.Get(n[0], n[1], k) - t
			}
		}
		b.Temp.Set(t+r*flux, i, j, k)
	}
}

// VerticalDiffusion returns a function that implicitly diffuses heat
// within each water column. The sea floor is insulated except for
// BottomFlux, and the top cell of each column exchanges heat with a
// surface held at SurfaceTemp.
func VerticalDiffusion() DomainManipulator {
	var a, diag, c, d, bEdge, dEdge *sparse.DenseArray
	var rs float64
	return func(b *Basin) error {
		if a == nil {
			cfg := b.Config
			r := cfg.Kappa * b.Dt / (cfg.Dz * cfg.Dz)
			rs = r * cfg.SurfaceTemp
			shape := b.Temp.Shape
			a, diag, c = sparse.ZerosDense(shape...), sparse.ZerosDense(shape...), sparse.ZerosDense(shape...)
			for i := range a.Elements {
				a.Elements[i], diag.Elements[i], c.Elements[i] = -r, 1+2*r, -r
			}
			d = sparse.ZerosDense(shape...)

			// Removing the coupling to the cell below the floor makes
			// the floor insulating.
			bEdge = sparse.ZerosDense(shape[0], shape[1])
			dEdge = sparse.ZerosDense(shape[0], shape[1])
			for i := range bEdge.Elements {
				bEdge.Elements[i] = -r
				dEdge.Elements[i] = cfg.BottomFlux * b.Dt / cfg.Dz
			}
		}
		copy(d.Elements, b.Temp.Elements)
		m := b.Masks
		for i := 0; i < m.Nx; i++ {
			for j := 0; j < m.Ny; j++ {
				if m.Land(i, j) {
					d.AddVal(rs, i, j, m.Nz-1)
				}
			}
		}
		t, err := oceancore.SolveImplicit(a, diag, c, d, m, bEdge, dEdge)
		if err != nil {
			return fmt.Errorf("vertical diffusion: %w", err)
		}
		b.Temp = t
		if _, err := oceancore.EnforceBoundaries(b.EC, b.Temp, b.Config.Cyclic, false); err != nil {
			return fmt.Errorf("vertical diffusion: %w", err)
		}
		return nil
	}
}

// Heat returns the heat content of the water in the whole domain
// [K m³], summed over all processes.
func (b *Basin) Heat() (float64, error) {
	nx, ny := b.tileSize()
	vals := make([]float64, 0, nx*ny*b.Config.Nz)
	for i := oceancore.Halo; i < nx+oceancore.Halo; i++ {
		for j := oceancore.Halo; j < ny+oceancore.Halo; j++ {
			lo, hi := b.Masks.Band(i, j)
			for k := lo; k < hi; k++ {
				vals = append(vals, b.Temp.Get(i, j, k))
			}
		}
	}
	v := floats.Sum(vals) * b.Config.Dx * b.Config.Dx * b.Config.Dz
	if b.EC.Comm == nil || b.EC.Topology.Size() == 1 {
		return v, nil
	}
	return distribute.AllSum(b.EC.Comm, v)
}

// SteadyStateConvergenceCheck checks whether a simulation is finished and
// sets the Done flag if it is. If numIterations > 0, the simulation is
// finished after that number of iterations have completed. Otherwise, the
// simulation has finished when the relative change in heat content between
// checks is less than 0.05%.
func SteadyStateConvergenceCheck(numIterations int, log logrus.FieldLogger) DomainManipulator {
	const tolerance = 0.0005 // tolerance for convergence
	const checkPeriod = 10   // iterations between checks

	var oldSum float64
	return func(b *Basin) error {
		if numIterations > 0 {
			if b.Iteration >= numIterations {
				b.Done = true
			}
			return nil
		}
		if b.Iteration%checkPeriod != 0 {
			return nil
		}
		sum, err := b.Heat()
		if err != nil {
			return err
		}
		if checkConvergence(sum, oldSum, tolerance, log) {
			b.Done = true
		}
		oldSum = sum
		return nil
	}
}

func checkConvergence(newSum, oldSum, tolerance float64, log logrus.FieldLogger) bool {
	bias := (newSum - oldSum) / oldSum
	log.WithField("change", fmt.Sprintf("%3.2g%%", bias*100)).Debug("heat content difference from last check")
	if math.Abs(bias) > tolerance || math.IsInf(bias, 0) || math.IsNaN(bias) {
		return false
	}
	return true
}

// Log writes simulation status messages to log. Only the process with
// rank 0 writes messages, but every process must run the returned
// function because it sums the heat content over all processes.
func Log(log logrus.FieldLogger) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()

	return func(b *Basin) error {
		heat, err := b.Heat()
		if err != nil {
			return err
		}
		if b.EC.Topology.Rank() == 0 {
			log.WithFields(logrus.Fields{
				"iteration": b.Iteration,
				"walltime":  time.Since(startTime).Round(time.Millisecond),
				"Δwalltime": time.Since(timeStepTime).Round(time.Millisecond),
				"timestep":  b.Dt,
				"heat":      heat,
			}).Info("basin")
		}
		timeStepTime = time.Now()
		return nil
	}
}
