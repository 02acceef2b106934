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

// Package oceancore provides the boundary and vertical-solve machinery of
// a structured-grid ocean model that runs on a two-dimensional process
// decomposition. It keeps the halo cells of distributed fields consistent,
// classifies grid columns into land and water, and solves the tridiagonal
// systems that arise from implicit vertical discretizations in each water
// column.
//
// Fields are github.com/ctessum/sparse dense arrays with axes ordered
// (x, y, z). Each process owns a tile of every field surrounded by a halo
// that is Halo cells wide along x and y.
package oceancore

import (
	"errors"

	"github.com/spatialmodel/oceancore/distribute"
)

// Version gives the version number.
const Version = "0.1.0"

// Halo is the width of the ghost-cell ring along the horizontal axes.
const Halo = distribute.Halo

var (
	// ErrInvalidShape is returned when an array has an unsupported number
	// of dimensions or does not match the shape of the other arrays it is
	// used with.
	ErrInvalidShape = errors.New("oceancore: invalid array shape")

	// ErrPrecondition is returned when the caller violates a requirement
	// of an operation, for example by passing a field that is too narrow
	// to hold a halo.
	ErrPrecondition = errors.New("oceancore: precondition violated")

	// ErrCommunication is returned when the exchange with a neighboring
	// process cannot complete. It is not recoverable.
	ErrCommunication = distribute.ErrCommunication
)
