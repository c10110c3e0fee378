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

import "github.com/ctessum/geom"

// CellCenter returns the real-world coordinates of the center of the cell
// at row, col. Rows increase southward from the top edge of the grid.
// Cells are assumed to be square with edge length t.XRes.
func CellCenter(row, col int, t Transform) geom.Point {
	r := t.XRes
	return geom.Point{
		X: t.OriginX + r/2 + float64(col)*r,
		Y: t.OriginY - r/2 - float64(row)*r,
	}
}

// Footprint returns the closed square polygon with edge length r
// centered on c.
func Footprint(c geom.Point, r float64) geom.Polygon {
	h := r / 2
	l, b := c.X-h, c.Y-h
	rt, t := c.X+h, c.Y+h
	return geom.Polygon{{
		{X: l, Y: b}, {X: l, Y: t}, {X: rt, Y: t}, {X: rt, Y: b}, {X: l, Y: b},
	}}
}
