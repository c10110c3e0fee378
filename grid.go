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

package gridburn

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// squareTolerance is the relative difference allowed between the
// magnitudes of the x and y resolutions of a grid.
const squareTolerance = 1e-9

// Transform is the affine mapping between cell indices and real-world
// coordinates for a north-up grid. OriginX and OriginY are the coordinates
// of the top-left corner of the grid. For north-up grids YRes is negative.
type Transform struct {
	OriginX, XRes float64
	OriginY, YRes float64
}

// Grid is a single-band regular grid held in row-major order.
type Grid struct {
	Rows, Cols int
	Transform  Transform

	// Projection is the spatial reference of the grid. It is
	// carried from input to output without interpretation.
	Projection string

	// NoData is the no-data marker of the source container, if it had one.
	NoData *float64

	// Anchor is the georeferencing as the source file stated it, if the
	// source file stated it in terms other than Transform.
	Anchor *Anchor

	Data []float64
}

// AnchorKind names the point of a grid that an Anchor locates.
type AnchorKind int

// These are the points an Anchor can locate.
const (
	// LowerLeftCorner is the outer corner of the bottom-left cell.
	LowerLeftCorner AnchorKind = iota
	// LowerLeftCenter is the center of the bottom-left cell.
	LowerLeftCenter
	// UpperLeftCenter is the center of the top-left cell.
	UpperLeftCenter
)

// Anchor records the coordinates a source file gave for one point of a
// grid, along with the Transform and row count they were converted to.
// Encoders write X and Y back unchanged while the grid still has that
// Transform and row count, so georeferencing survives a round trip
// without floating-point drift.
type Anchor struct {
	Kind      AnchorKind
	X, Y      float64
	Transform Transform
	Rows      int
}

// NewAnchor returns the anchor of kind k at x, y for a grid with the
// given number of rows and cell size, along with the transform it implies.
func NewAnchor(k AnchorKind, x, y float64, rows int, cellSize float64) (*Anchor, Transform) {
	r := cellSize
	t := Transform{OriginX: x, XRes: r, OriginY: y, YRes: -r}
	switch k {
	case LowerLeftCorner:
		t.OriginY = y + float64(rows)*r
	case LowerLeftCenter:
		t.OriginX = x - r/2
		t.OriginY = y - r/2 + float64(rows)*r
	case UpperLeftCenter:
		t.OriginX = x - r/2
		t.OriginY = y + r/2
	}
	return &Anchor{Kind: k, X: x, Y: y, Transform: t, Rows: rows}, t
}

// AnchorOf returns the coordinates of the point of kind k of g. If g was
// read with an anchor of that kind and its georeferencing has not changed
// since, the coordinates are the ones that were read.
func (g *Grid) AnchorOf(k AnchorKind) (x, y float64) {
	if a := g.Anchor; a != nil && a.Kind == k && a.Transform == g.Transform && a.Rows == g.Rows {
		return a.X, a.Y
	}
	t := g.Transform
	r := t.XRes
	switch k {
	case LowerLeftCorner:
		return t.OriginX, t.OriginY - float64(g.Rows)*r
	case LowerLeftCenter:
		return t.OriginX + r/2, t.OriginY - float64(g.Rows)*r + r/2
	default:
		return t.OriginX + t.XRes/2, t.OriginY + t.YRes/2
	}
}

// NewGrid returns a zero-valued grid with the given dimensions and metadata.
func NewGrid(rows, cols int, t Transform, projection string) *Grid {
	return &Grid{
		Rows:       rows,
		Cols:       cols,
		Transform:  t,
		Projection: projection,
		Data:       make([]float64, rows*cols),
	}
}

// Validate checks that g can be rasterized: its buffer must match its
// dimensions and its cells must be square and north-up.
func (g *Grid) Validate() error {
	if g.Rows < 0 || g.Cols < 0 {
		return fmt.Errorf("gridburn: invalid grid dimensions %d×%d", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("%w: %d×%d grid has %d values", ErrBufferLength, g.Rows, g.Cols, len(g.Data))
	}
	xres, yres := g.Transform.XRes, g.Transform.YRes
	if !(xres > 0) || math.IsInf(xres, 0) {
		return fmt.Errorf("gridburn: x resolution must be positive and finite; got %g", xres)
	}
	if math.IsNaN(yres) || math.IsInf(yres, 0) {
		return fmt.Errorf("gridburn: y resolution must be finite; got %g", yres)
	}
	if yres >= 0 {
		return fmt.Errorf("%w: y resolution %g is not negative (south-up)", ErrRotatedGrid, yres)
	}
	if math.Abs(math.Abs(yres)-xres) > squareTolerance*xres {
		return fmt.Errorf("%w: x resolution %g, y resolution %g", ErrNonSquareCells, xres, yres)
	}
	return nil
}

// Cell identifies one grid cell.
type Cell struct {
	Row, Col int
}

// Index returns the buffer index of the cell at row, col.
func (g *Grid) Index(row, col int) int { return row*g.Cols + col }

// At returns the value of the cell at row, col.
func (g *Grid) At(row, col int) float64 { return g.Data[g.Index(row, col)] }

// Set sets the value of the cell at row, col.
func (g *Grid) Set(row, col int, v float64) { g.Data[g.Index(row, col)] = v }

// CellFootprint returns the square polygon covering the cell at row, col.
func (g *Grid) CellFootprint(row, col int) geom.Polygon {
	return Footprint(CellCenter(row, col, g.Transform), g.Transform.XRes)
}

// Bounds returns the spatial extent of g.
func (g *Grid) Bounds() *geom.Bounds {
	r := g.Transform.XRes
	return &geom.Bounds{
		Min: geom.Point{X: g.Transform.OriginX, Y: g.Transform.OriginY - float64(g.Rows)*r},
		Max: geom.Point{X: g.Transform.OriginX + float64(g.Cols)*r, Y: g.Transform.OriginY},
	}
}

// cellAt returns the cell stored at buffer index i.
func (g *Grid) cellAt(i int) Cell { return Cell{Row: i / g.Cols, Col: i % g.Cols} }

// withData returns a grid with the metadata of g and the given buffer.
func (g *Grid) withData(data []float64) *Grid {
	o := *g
	o.Data = data
	if g.NoData != nil {
		nd := *g.NoData
		o.NoData = &nd
	}
	if g.Anchor != nil {
		a := *g.Anchor
		o.Anchor = &a
	}
	return &o
}
