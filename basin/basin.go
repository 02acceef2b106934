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

// Package basin runs a heat-diffusion model of an idealized ocean basin on
// a decomposed grid. It drives the boundary, mask and implicit-solve
// machinery of package oceancore.
package basin

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore"
)

// ErrConfig is returned for invalid model configurations.
var ErrConfig = errors.New("basin: invalid configuration")

// Config holds the model configuration.
type Config struct {
	// NProcX and NProcY are the number of processes along x and y.
	NProcX, NProcY int

	// Nx, Ny and Nz are the number of grid cells in the whole domain.
	Nx, Ny, Nz int

	Dx float64 // horizontal grid spacing [m]
	Dz float64 // vertical grid spacing [m]
	Dt float64 // time step [s]

	Kappa  float64 // vertical diffusivity [m²/s]
	KappaH float64 // horizontal diffusivity [m²/s]

	// BottomFlux is the heat flux through the sea floor [K m/s].
	BottomFlux float64

	// SurfaceTemp is the temperature held fixed at the sea surface [K].
	SurfaceTemp float64

	// Cyclic makes the domain periodic along x.
	Cyclic bool

	// NumIterations is the number of time steps to run. If < 1, the
	// model runs until the heat content converges.
	NumIterations int

	// LogEvery is the number of time steps between status messages.
	// Status messages are not written if it is < 1.
	LogEvery int
}

// Validate checks that c describes a model that can be run.
func (c *Config) Validate() error {
	if c.NProcX < 1 || c.NProcY < 1 {
		return fmt.Errorf("%w: %dx%d processes", ErrConfig, c.NProcX, c.NProcY)
	}
	if c.NProcX == 1 && c.NProcY > 1 {
		// Boundaries are only exchanged when there are several
		// processes along x.
		return fmt.Errorf("%w: a decomposition along y requires more than one process along x", ErrConfig)
	}
	if c.Nz < 1 || c.Nx%c.NProcX != 0 || c.Ny%c.NProcY != 0 {
		return fmt.Errorf("%w: %dx%dx%d grid on %dx%d processes", ErrConfig, c.Nx, c.Ny, c.Nz, c.NProcX, c.NProcY)
	}
	if c.Nx/c.NProcX < oceancore.Halo || c.Ny/c.NProcY < oceancore.Halo {
		return fmt.Errorf("%w: each process needs at least %d cells along x and y", ErrConfig, oceancore.Halo)
	}
	for _, v := range []struct {
		name string
		v    float64
	}{{"Dx", c.Dx}, {"Dz", c.Dz}, {"Dt", c.Dt}} {
		if !(v.v > 0) {
			return fmt.Errorf("%w: %s = %g, must be positive", ErrConfig, v.name, v.v)
		}
	}
	if c.Kappa < 0 || c.KappaH < 0 {
		return fmt.Errorf("%w: diffusivities must not be negative", ErrConfig)
	}
	if r := c.KappaH * c.Dt / (c.Dx * c.Dx); r > 0.25 {
		return fmt.Errorf("%w: horizontal diffusion number %.3g exceeds 0.25", ErrConfig, r)
	}
	return nil
}

// Basin holds the state of one process's tile of the model.
type Basin struct {
	Config *Config
	EC     *oceancore.ExecutionContext

	// KS holds the number of the deepest active level of each column of
	// the tile, counted from one, with land as zero.
	KS    *sparse.DenseArray
	Masks *oceancore.Masks

	// Temp is the temperature [K], including the halo.
	Temp *sparse.DenseArray

	Dt        float64 // seconds
	Iteration int
	Done      bool

	InitFuncs []DomainManipulator
	RunFuncs  []DomainManipulator

	old *sparse.DenseArray // temperature at the start of a step
}

// DomainManipulator is a function that operates on a model tile.
type DomainManipulator func(b *Basin) error

// ColumnManipulator is a function that operates on column (i, j) of a
// model tile.
type ColumnManipulator func(b *Basin, i, j int)

// New returns a basin tile with the standard initialization and time step
// functions. log receives status messages.
func New(c *Config, ec *oceancore.ExecutionContext, log logrus.FieldLogger) (*Basin, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if ec.Topology.NProcX != c.NProcX || ec.Topology.NProcY != c.NProcY {
		return nil, fmt.Errorf("%w: execution context has %dx%d processes, configuration has %dx%d",
			ErrConfig, ec.Topology.NProcX, ec.Topology.NProcY, c.NProcX, c.NProcY)
	}
	b := &Basin{
		Config: c,
		EC:     ec,
		Dt:     c.Dt,
		InitFuncs: []DomainManipulator{
			Bathymetry(),
			InitialTemperature(),
		},
		RunFuncs: []DomainManipulator{
			HorizontalDiffusion(),
			VerticalDiffusion(),
			SteadyStateConvergenceCheck(c.NumIterations, log),
		},
	}
	if c.LogEvery > 0 {
		b.RunFuncs = append(b.RunFuncs, RunPeriodically(c.LogEvery, Log(log)))
	}
	return b, nil
}

// Init runs the initialization functions.
func (b *Basin) Init() error {
	for _, f := range b.InitFuncs {
		if err := f(b); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the time step functions until the model is done.
func (b *Basin) Run() error {
	for !b.Done {
		b.Iteration++
		for _, f := range b.RunFuncs {
			if err := f(b); err != nil {
				return fmt.Errorf("basin: iteration %d: %w", b.Iteration, err)
			}
		}
	}
	return nil
}

// tileSize returns the number of interior cells of the tile along x and y.
func (b *Basin) tileSize() (nx, ny int) {
	return b.Config.Nx / b.Config.NProcX, b.Config.Ny / b.Config.NProcY
}

// Calculations returns a function that concurrently runs a series of
// calculations on all of the interior columns of a tile.
func Calculations(calculators ...ColumnManipulator) DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0) // number of processors
	var wg sync.WaitGroup

	return func(b *Basin) error {
		nx, ny := b.tileSize()
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				for ii := pp; ii < nx*ny; ii += nprocs {
					i, j := ii/ny+oceancore.Halo, ii%ny+oceancore.Halo
					for _, f := range calculators {
						f(b, i, j)
					}
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// RunPeriodically runs f every n iterations.
func RunPeriodically(n int, f DomainManipulator) DomainManipulator {
	return func(b *Basin) error {
		if b.Iteration%n != 0 {
			return nil
		}
		return f(b)
	}
}

// Bathymetry sets up a bowl-shaped basin: the sea floor is deepest at the
// center of the domain and rises toward a circular coastline that touches
// the middle of each side.
func Bathymetry() DomainManipulator {
	return func(b *Basin) error {
		c := b.Config
		nx, ny := b.tileSize()
		b.KS = sparse.ZerosDense(nx+2*oceancore.Halo, ny+2*oceancore.Halo)
		for i := 0; i < nx; i++ {
			gx := (float64(b.EC.Topology.CoordX*nx+i)+0.5)/float64(c.Nx) - 0.5
			for j := 0; j < ny; j++ {
				gy := (float64(b.EC.Topology.CoordY*ny+j)+0.5)/float64(c.Ny) - 0.5
				s := 2 * math.Sqrt(gx*gx+gy*gy)
				if s >= 1 {
					continue
				}
				b.KS.Set(float64(int(s*float64(c.Nz))+1), i+oceancore.Halo, j+oceancore.Halo)
			}
		}
		if _, err := oceancore.EnforceBoundaries(b.EC, b.KS, c.Cyclic, false); err != nil {
			return fmt.Errorf("basin: bathymetry: %w", err)
		}
		m, err := oceancore.CreateWaterMasks(b.KS, c.Nz)
		if err != nil {
			return fmt.Errorf("basin: bathymetry: %w", err)
		}
		b.Masks = m
		return nil
	}
}

// InitialTemperature sets the water temperature to increase linearly from
// zero at the bottom of the grid to SurfaceTemp at the surface.
func InitialTemperature() DomainManipulator {
	return func(b *Basin) error {
		c := b.Config
		b.Temp = sparse.ZerosDense(b.Masks.Nx, b.Masks.Ny, c.Nz)
		for i := 0; i < b.Masks.Nx; i++ {
			for j := 0; j < b.Masks.Ny; j++ {
				lo, hi := b.Masks.Band(i, j)
				for k := lo; k < hi; k++ {
					b.Temp.Set(c.SurfaceTemp*(float64(k)+0.5)/float64(c.Nz), i, j, k)
				}
			}
		}
		return nil
	}
}
