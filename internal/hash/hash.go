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
along with oceancore.  If not, see <http://www.gnu.org/licenses/>.*/

// Package hash computes short digests of model data, so that runs can be
// compared by their log output.
package hash

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/ctessum/sparse"
	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

func sum(h hash.Hash) string {
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Value returns a hash key for the specified object, computed from its
// printed Go representation. Pointers are followed, so two configurations
// with equal contents have the same key.
func Value(object interface{}) string {
	h := fnv.New128a()
	printer.Fprintf(h, "%#v", object)
	return sum(h)
}

// Field returns a hash key for the shape and values of a. Values are
// hashed by their bit patterns, so fields holding NaN or infinite values
// have stable keys.
func Field(a *sparse.DenseArray) string {
	h := fnv.New128a()
	printer.Fprintf(h, "%v", a.Shape)
	binary.Write(h, binary.LittleEndian, a.Elements)
	return sum(h)
}
