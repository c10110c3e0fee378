/*
Copyright © 2021 the InMAP authors.
This file is part of gridburn.

gridburn is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridburn is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridburn.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridio

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridburn"
)

// Names used in gridburn NetCDF files.
const (
	ncBand = "band"
	ncY    = "y"
	ncX    = "x"
)

// NetCDF is a NetCDF classic file holding one two-dimensional variable
// named "band" with dimensions (y, x). The georeferencing is held in the
// global attributes x0, dx, y0, dy (the top-left corner and the signed cell
// sizes), projection, and optionally nodata.
type NetCDF struct{}

// Name implements Codec.
func (NetCDF) Name() string { return "netcdf" }

// Extensions implements Codec.
func (NetCDF) Extensions() []string { return []string{".nc", ".ncf"} }

// Decode implements Codec.
func (NetCDF) Decode(path string) (*gridburn.Grid, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("opening netcdf file: %w", err)
	}

	var hasBand bool
	for _, v := range f.Header.Variables() {
		if v == ncBand {
			hasBand = true
		}
	}
	if !hasBand {
		return nil, fmt.Errorf("netcdf file has no %q variable", ncBand)
	}
	dims := f.Header.Lengths(ncBand)
	if len(dims) != 2 {
		return nil, fmt.Errorf("variable %q has %d dimensions; want 2", ncBand, len(dims))
	}

	var t gridburn.Transform
	for _, a := range []struct {
		name string
		v    *float64
	}{{"x0", &t.OriginX}, {"dx", &t.XRes}, {"y0", &t.OriginY}, {"dy", &t.YRes}} {
		*a.v, err = float64Attribute(f.Header, a.name)
		if err != nil {
			return nil, err
		}
	}
	var proj string
	if p, ok := f.Header.GetAttribute("", "projection").(string); ok {
		proj = p
	}
	g := gridburn.NewGrid(dims[0], dims[1], t, proj)
	if f.Header.GetAttribute("", "nodata") != nil {
		nd, err := float64Attribute(f.Header, "nodata")
		if err != nil {
			return nil, err
		}
		g.NoData = &nd
	}

	r := f.Reader(ncBand, nil, nil)
	buf := r.Zero(-1)
	if _, err = r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", ncBand, err)
	}
	if err := copyValues(g.Data, buf); err != nil {
		return nil, err
	}
	return g, nil
}

// float64Attribute returns the single numeric global attribute a.
func float64Attribute(h *cdf.Header, a string) (float64, error) {
	switch v := h.GetAttribute("", a).(type) {
	case []float64:
		if len(v) == 1 {
			return v[0], nil
		}
	case []float32:
		if len(v) == 1 {
			return float64(v[0]), nil
		}
	case []int32:
		if len(v) == 1 {
			return float64(v[0]), nil
		}
	case []int16:
		if len(v) == 1 {
			return float64(v[0]), nil
		}
	case nil:
		return 0, fmt.Errorf("missing global attribute %q", a)
	}
	return 0, fmt.Errorf("global attribute %q is not a single number", a)
}

// copyValues copies the numeric slice src into dst.
func copyValues(dst []float64, src interface{}) error {
	var n int
	switch s := src.(type) {
	case []float64:
		n = copy(dst, s)
	case []float32:
		for i := 0; i < len(s) && i < len(dst); i++ {
			dst[i] = float64(s[i])
			n++
		}
	case []int32:
		for i := 0; i < len(s) && i < len(dst); i++ {
			dst[i] = float64(s[i])
			n++
		}
	case []int16:
		for i := 0; i < len(s) && i < len(dst); i++ {
			dst[i] = float64(s[i])
			n++
		}
	case []uint8:
		for i := 0; i < len(s) && i < len(dst); i++ {
			dst[i] = float64(s[i])
			n++
		}
	default:
		return fmt.Errorf("unsupported netcdf data type %T", src)
	}
	if n != len(dst) {
		return fmt.Errorf("%w: read %d values; want %d", gridburn.ErrBufferLength, n, len(dst))
	}
	return nil
}

// Encode implements Codec.
func (NetCDF) Encode(path string, g *gridburn.Grid) error {
	if g.Rows == 0 || g.Cols == 0 {
		// A zero-length dimension would be taken as the record dimension.
		return gridburn.StageErr(gridburn.StageCreateOutput, path,
			fmt.Errorf("netcdf: cannot write empty %d×%d grid", g.Rows, g.Cols))
	}
	h := cdf.NewHeader([]string{ncY, ncX}, []int{g.Rows, g.Cols})
	h.AddVariable(ncBand, []string{ncY, ncX}, []float64{0})
	h.AddAttribute(ncBand, "description", "rasterized values")
	h.AddAttribute("", "x0", []float64{g.Transform.OriginX})
	h.AddAttribute("", "dx", []float64{g.Transform.XRes})
	h.AddAttribute("", "y0", []float64{g.Transform.OriginY})
	h.AddAttribute("", "dy", []float64{g.Transform.YRes})
	if g.Projection != "" {
		h.AddAttribute("", "projection", g.Projection)
	}
	if g.NoData != nil {
		h.AddAttribute("", "nodata", []float64{*g.NoData})
	}
	h.Define()
	for _, err := range h.Check() {
		return gridburn.StageErr(gridburn.StageSetMetadata, path, fmt.Errorf("netcdf header: %w", err))
	}

	ff, err := os.Create(path)
	if err != nil {
		return gridburn.StageErr(gridburn.StageCreateOutput, path, err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return gridburn.StageErr(gridburn.StageSetMetadata, path, fmt.Errorf("writing netcdf header: %w", err))
	}
	w := f.Writer(ncBand, []int{0, 0}, []int{g.Rows, g.Cols})
	if _, err := w.Write(g.Data); err != nil {
		return gridburn.StageErr(gridburn.StageWriteBand, path, fmt.Errorf("writing variable %q: %w", ncBand, err))
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return gridburn.StageErr(gridburn.StageWriteBand, path, err)
	}
	return gridburn.StageErr(gridburn.StageWriteBand, path, ff.Close())
}
