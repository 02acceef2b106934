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
	"io"
	"math"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteNetCDF writes the temperature, bathymetry and water mask of r to
// ff in netCDF format.
func WriteNetCDF(ff cdf.ReaderWriterAt, r *Result) error {
	nx, ny, nz := r.Masks.Nx, r.Masks.Ny, r.Masks.Nz
	h := cdf.NewHeader([]string{"x", "y", "z"}, []int{nx, ny, nz})
	h.AddAttribute("", "comment", "Idealized ocean basin heat diffusion")
	h.AddAttribute("", "iterations", []int32{int32(r.Iterations)})

	h.AddVariable("temperature", []string{"x", "y", "z"}, []float32{0})
	h.AddAttribute("temperature", "description", "Water temperature")
	h.AddAttribute("temperature", "units", "K")

	h.AddVariable("ks", []string{"x", "y"}, []float32{0})
	h.AddAttribute("ks", "description", "Deepest active level, counted from one; zero over land")
	h.AddAttribute("ks", "units", "-")

	h.AddVariable("water", []string{"x", "y", "z"}, []float32{0})
	h.AddAttribute("water", "description", "One for active water cells, zero otherwise")
	h.AddAttribute("water", "units", "-")

	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("basin: creating netcdf header: %v", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("basin: creating netcdf file: %v", err)
	}

	water := sparse.ZerosDense(nx, ny, nz)
	for i, w := range r.Masks.WaterMask {
		if w {
			water.Elements[i] = 1
		}
	}
	for _, v := range []struct {
		name string
		data *sparse.DenseArray
	}{{"temperature", r.Temp}, {"ks", r.KS}, {"water", water}} {
		if err := writeNCF(f, v.name, v.data); err != nil {
			return fmt.Errorf("basin: writing %s: %v", v.name, err)
		}
	}
	return nil
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	end := f.Header.Lengths(Var)
	n := 1
	for _, v := range end {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}

	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	_, err := w.Write(data32)
	return err
}

// ReadNetCDF reads variable Var from a file created by WriteNetCDF.
func ReadNetCDF(ff cdf.ReaderWriterAt, Var string) (*sparse.DenseArray, error) {
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("basin: opening netcdf file: %v", err)
	}
	dims := f.Header.Lengths(Var)
	if len(dims) == 0 {
		return nil, fmt.Errorf("basin: netcdf file has no variable %q", Var)
	}
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	r := f.Reader(Var, nil, nil)
	buf := r.Zero(nread)
	if _, err = r.Read(buf); err != nil {
		return nil, fmt.Errorf("basin: reading %s: %v", Var, err)
	}
	out := sparse.ZerosDense(dims...)
	for i, val := range buf.([]float32) {
		out.Elements[i] = float64(val)
	}
	return out, nil
}

// floorGrid presents the temperature at the sea floor as a plotter.GridXYZ.
// Land columns have the value min.
type floorGrid struct {
	r   *Result
	min float64
}

func (g floorGrid) Dims() (c, r int) { return g.r.Masks.Nx, g.r.Masks.Ny }
func (g floorGrid) X(c int) float64  { return float64(c) }
func (g floorGrid) Y(r int) float64  { return float64(r) }
func (g floorGrid) Z(c, r int) float64 {
	k, end := g.r.Masks.Band(c, r)
	if k == end {
		return g.min
	}
	return g.r.Temp.Get(c, r, k)
}

// FloorRange returns the lowest and highest temperatures at the sea floor.
func FloorRange(r *Result) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for i := 0; i < r.Masks.Nx; i++ {
		for j := 0; j < r.Masks.Ny; j++ {
			if k, end := r.Masks.Band(i, j); k < end {
				v := r.Temp.Get(i, j, k)
				min, max = math.Min(min, v), math.Max(max, v)
			}
		}
	}
	return min, max
}

// PlotFloor writes a PNG heat map of the temperature at the sea floor to w.
func PlotFloor(w io.Writer, r *Result) error {
	min, max := FloorRange(r)
	if math.IsInf(min, 0) {
		min, max = 0, 1
	}
	if max <= min {
		max = min + 1
	}
	cm := moreland.ExtendedBlackBody()
	cm.SetMin(min)
	cm.SetMax(max)

	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("basin: plotting floor temperature: %v", err)
	}
	p.Title.Text = "Sea floor temperature (K)"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewHeatMap(floorGrid{r: r, min: min}, cm.Palette(32)))

	wt, err := p.WriterTo(4*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("basin: plotting floor temperature: %v", err)
	}
	if _, err = wt.WriteTo(w); err != nil {
		return fmt.Errorf("basin: plotting floor temperature: %v", err)
	}
	return nil
}
