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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spatialmodel/gridburn"
)

// ASCII is the ESRI ASCII grid format. The projection is kept in a .prj
// file next to the grid.
type ASCII struct{}

// Name implements Codec.
func (ASCII) Name() string { return "ascii" }

// Extensions implements Codec.
func (ASCII) Extensions() []string { return []string{".asc"} }

// asciiHeader holds the header fields of an ESRI ASCII grid.
type asciiHeader struct {
	ncols, nrows int
	x, y         float64
	center       bool
	cellsize     float64
	nodata       *float64
}

// Decode implements Codec.
func (ASCII) Decode(path string) (*gridburn.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	s.Split(bufio.ScanWords)

	h, first, err := readASCIIHeader(s)
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	kind := gridburn.LowerLeftCorner
	if h.center {
		kind = gridburn.LowerLeftCenter
	}
	anchor, t := gridburn.NewAnchor(kind, h.x, h.y, h.nrows, h.cellsize)
	proj, err := readPrj(path)
	if err != nil {
		return nil, err
	}
	g := gridburn.NewGrid(h.nrows, h.ncols, t, proj)
	g.NoData = h.nodata
	g.Anchor = anchor

	n := len(g.Data)
	i := 0
	if first != "" && n > 0 {
		if g.Data[0], err = strconv.ParseFloat(first, 64); err != nil {
			return nil, fmt.Errorf("cell 0: %w", err)
		}
		i++
	}
	for ; i < n && s.Scan(); i++ {
		if g.Data[i], err = strconv.ParseFloat(s.Text(), 64); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if i != n {
		return nil, fmt.Errorf("%w: %s has %d values; want %d", gridburn.ErrBufferLength, path, i, n)
	}
	return g, nil
}

// readASCIIHeader reads header lines until the first value that is not a
// header keyword, which is returned as first.
func readASCIIHeader(s *bufio.Scanner) (h asciiHeader, first string, err error) {
	seen := make(map[string]bool)
scan:
	for s.Scan() {
		key := strings.ToLower(s.Text())
		switch key {
		case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		default:
			first = s.Text()
			break scan
		}
		if !s.Scan() {
			return h, "", fmt.Errorf("missing value for %s", key)
		}
		val := s.Text()
		seen[key] = true
		switch key {
		case "ncols", "nrows":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return h, "", fmt.Errorf("invalid %s %q", key, val)
			}
			if key == "ncols" {
				h.ncols = n
			} else {
				h.nrows = n
			}
		default:
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return h, "", fmt.Errorf("invalid %s %q: %w", key, val, err)
			}
			switch key {
			case "xllcorner", "xllcenter":
				h.x = v
				h.center = key == "xllcenter"
			case "yllcorner", "yllcenter":
				h.y = v
			case "cellsize":
				h.cellsize = v
			case "nodata_value":
				h.nodata = &v
			}
		}
	}
	if err := s.Err(); err != nil {
		return h, "", err
	}
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if !seen[k] {
			return h, "", fmt.Errorf("missing %s", k)
		}
	}
	if !(seen["xllcorner"] || seen["xllcenter"]) || !(seen["yllcorner"] || seen["yllcenter"]) {
		return h, "", fmt.Errorf("missing lower-left coordinates")
	}
	if seen["xllcenter"] != seen["yllcenter"] {
		return h, "", fmt.Errorf("lower-left x and y must both be corners or both be centers")
	}
	return h, first, nil
}

// Encode implements Codec.
func (ASCII) Encode(path string, g *gridburn.Grid) error {
	r := g.Transform.XRes
	if math.Abs(math.Abs(g.Transform.YRes)-r) > 1e-9*r {
		return gridburn.StageErr(gridburn.StageSetMetadata, path,
			fmt.Errorf("%w: ESRI ASCII grids have a single cell size", gridburn.ErrNonSquareCells))
	}
	f, err := os.Create(path)
	if err != nil {
		return gridburn.StageErr(gridburn.StageCreateOutput, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := writeASCIIHeader(w, g); err != nil {
		return gridburn.StageErr(gridburn.StageSetMetadata, path, err)
	}
	if err := writePrj(path, g.Projection); err != nil {
		return gridburn.StageErr(gridburn.StageSetMetadata, path, err)
	}
	if err := writeASCIIData(w, g); err != nil {
		return gridburn.StageErr(gridburn.StageWriteBand, path, err)
	}
	if err := w.Flush(); err != nil {
		return gridburn.StageErr(gridburn.StageWriteBand, path, err)
	}
	return gridburn.StageErr(gridburn.StageWriteBand, path, f.Close())
}

// writeASCIIHeader writes the header of g. The lower-left point is given
// as a center if g was read that way and as a corner otherwise.
func writeASCIIHeader(w io.Writer, g *gridburn.Grid) error {
	kind, xkey, ykey := gridburn.LowerLeftCorner, "xllcorner", "yllcorner"
	if g.Anchor != nil && g.Anchor.Kind == gridburn.LowerLeftCenter {
		kind, xkey, ykey = gridburn.LowerLeftCenter, "xllcenter", "yllcenter"
	}
	x, y := g.AnchorOf(kind)
	_, err := fmt.Fprintf(w, "ncols %d\nnrows %d\n%s %s\n%s %s\ncellsize %s\n",
		g.Cols, g.Rows, xkey, formatFloat(x), ykey, formatFloat(y), formatFloat(g.Transform.XRes))
	if err != nil {
		return err
	}
	if g.NoData != nil {
		_, err = fmt.Fprintf(w, "NODATA_value %s\n", formatFloat(*g.NoData))
	}
	return err
}

func writeASCIIData(w *bufio.Writer, g *gridburn.Grid) error {
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				w.WriteByte(' ')
			}
			if _, err := w.WriteString(formatFloat(g.At(row, col))); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
