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
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore/distribute"
)

// ExecutionContext holds what a process needs to know to keep field
// boundaries consistent: its place in the process grid, how to reach the
// other processes, and whether communicating is currently allowed.
type ExecutionContext struct {
	Topology distribute.Topology

	// Comm is used to exchange halos with neighboring processes.
	// It may be nil when there is only one process.
	Comm distribute.Communicator

	// Log receives debugging information about exchanges.
	Log logrus.FieldLogger

	traced bool
}

// NewExecutionContext returns a context for the process at topo in which
// exchanges are allowed.
func NewExecutionContext(topo distribute.Topology, comm distribute.Communicator) *ExecutionContext {
	return &ExecutionContext{
		Topology: topo,
		Comm:     comm,
		Log:      logrus.StandardLogger(),
	}
}

// SingleProcess returns a context for a run without a process
// decomposition.
func SingleProcess() *ExecutionContext {
	return NewExecutionContext(distribute.Topology{NProcX: 1, NProcY: 1}, nil)
}

// Traced returns a copy of ec in which exchanges are not allowed, for use
// while evaluating code symbolically (for example while tracing or
// differentiating it), where communicating with other processes must not
// be attempted. ec itself is unchanged.
func (ec *ExecutionContext) Traced() *ExecutionContext {
	c := *ec
	c.traced = true
	return &c
}

// ExchangeSafe reports whether halos may be exchanged with other processes.
func (ec *ExecutionContext) ExchangeSafe() bool { return !ec.traced }

// EnforceBoundaries makes the halo cells of field consistent and returns
// field, which is modified in place.
//
// If there is only one process along x, if ec is not exchange-safe, or if
// local is true, no communication takes place: when cyclicX is true the
// halo columns at both ends of the x axis are filled from the opposite
// edge of the interior (field[-2:] = field[2:4] and field[:2] = field[-4:-2]),
// and otherwise field is left as it is.
// In all other cases the halos along x and y are exchanged with the
// neighboring processes, with the process grid wrapping around in x when
// cyclicX is true.
func EnforceBoundaries(ec *ExecutionContext, field *sparse.DenseArray, cyclicX, local bool) (*sparse.DenseArray, error) {
	if ec.Topology.ProcessCount(distribute.X) == 1 || !ec.ExchangeSafe() || local {
		if !cyclicX {
			return field, nil
		}
		if err := distribute.CheckWidth(field, distribute.X); err != nil {
			return field, fmt.Errorf("%w: enforcing boundaries: %v", ErrPrecondition, err)
		}
		n := field.Shape[0]
		distribute.CopySlab(field, distribute.X, n-Halo, Halo, Halo)
		distribute.CopySlab(field, distribute.X, 0, n-2*Halo, Halo)
		return field, nil
	}

	axes := []distribute.Axis{distribute.X}
	if len(field.Shape) > 1 {
		axes = append(axes, distribute.Y)
	}
	for _, a := range axes {
		if err := distribute.CheckWidth(field, a); err != nil {
			return field, fmt.Errorf("%w: enforcing boundaries: %v", ErrPrecondition, err)
		}
	}
	if ec.Comm == nil {
		return field, fmt.Errorf("%w: enforcing boundaries: %d processes but no communicator",
			ErrPrecondition, ec.Topology.Size())
	}
	if ec.Log != nil {
		ec.Log.WithFields(logrus.Fields{
			"rank":   ec.Topology.Rank(),
			"shape":  field.Shape,
			"cyclic": cyclicX,
		}).Debug("exchanging halos")
	}
	if err := distribute.Exchange(ec.Comm, ec.Topology, field, axes, cyclicX); err != nil {
		return field, fmt.Errorf("oceancore: enforcing boundaries: %w", err)
	}
	return field, nil
}
