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

package burnutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/gridburn"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// previewSize is the width and height of preview images.
const previewSize = 6 * vg.Inch

// gridXYZ presents a grid as a plotter.GridXYZ. Heat map rows run
// from south to north, so row r of the heat map is grid row Rows-1-r.
// NoData cells are NaN.
type gridXYZ struct {
	g *gridburn.Grid
}

func (p gridXYZ) Dims() (c, r int) { return p.g.Cols, p.g.Rows }

func (p gridXYZ) Z(c, r int) float64 {
	v := p.g.At(p.g.Rows-1-r, c)
	if p.g.NoData != nil && v == *p.g.NoData {
		return math.NaN()
	}
	return v
}

func (p gridXYZ) X(c int) float64 {
	return gridburn.CellCenter(0, c, p.g.Transform).X
}

func (p gridXYZ) Y(r int) float64 {
	return gridburn.CellCenter(p.g.Rows-1-r, 0, p.g.Transform).Y
}

// WritePreview draws a heat map of g to the PNG file at path.
func WritePreview(path string, g *gridburn.Grid) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".png" {
		return fmt.Errorf("gridburn: preview file %s must have extension .png", path)
	}
	if g.Rows == 0 || g.Cols == 0 {
		return fmt.Errorf("gridburn: cannot preview an empty %d×%d grid", g.Rows, g.Cols)
	}
	cm := moreland.ExtendedBlackBody()
	h := plotter.NewHeatMap(gridXYZ{g}, cm.Palette(255))
	switch {
	case math.IsInf(h.Min, 1): // Every cell is NoData.
		h.Min, h.Max = 0, 1
	case h.Min == h.Max:
		h.Max = h.Min + 1
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%g to %g)", filepath.Base(path), h.Min, h.Max)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(h)

	img := vgimg.PngCanvas{Canvas: vgimg.New(previewSize, previewSize)}
	p.Draw(draw.New(img))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gridburn: creating preview: %w", err)
	}
	if _, err := img.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("gridburn: writing preview: %w", err)
	}
	return f.Close()
}
