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

package vector

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/spatialmodel/gridburn"
)

// FootprintFiles returns the files written by WriteFootprints for the
// shapefile at path.
func FootprintFiles(path string) []string {
	base := strings.TrimSuffix(path, ".shp")
	return []string{base + ".shp", base + ".shx", base + ".dbf", base + ".prj"}
}

// Sidecars returns the extensions of the files that accompany the vector
// file at path. Only shapefiles have any.
func Sidecars(path string) []string {
	if strings.ToLower(filepath.Ext(path)) != ".shp" {
		return nil
	}
	return []string{".shx", ".dbf", ".prj"}
}

// WriteFootprints writes the footprints of the given cells of g to a polygon
// shapefile at path, with the attributes row, col, and value. Any existing
// shapefile at path is replaced. The projection of g, if any, is written to a
// .prj file.
func WriteFootprints(path string, g *gridburn.Grid, cells []gridburn.Cell) error {
	if !strings.HasSuffix(path, ".shp") {
		return fmt.Errorf("vector: footprint file %s must have extension .shp", path)
	}
	files := FootprintFiles(path)
	for _, f := range files {
		os.Remove(f)
	}
	fields := []goshp.Field{
		goshp.NumberField("row", 10),
		goshp.NumberField("col", 10),
		goshp.FloatField("value", 24, 8),
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("vector: creating footprint shapefile: %w", err)
	}
	for _, c := range cells {
		if c.Row < 0 || c.Row >= g.Rows || c.Col < 0 || c.Col >= g.Cols {
			e.Close()
			return fmt.Errorf("vector: cell (%d, %d) is outside the %d×%d grid", c.Row, c.Col, g.Rows, g.Cols)
		}
		if err := e.EncodeFields(g.CellFootprint(c.Row, c.Col), c.Row, c.Col, g.At(c.Row, c.Col)); err != nil {
			e.Close()
			return fmt.Errorf("vector: writing footprint of cell (%d, %d): %w", c.Row, c.Col, err)
		}
	}
	e.Close()
	if g.Projection != "" {
		if err := ioutil.WriteFile(files[3], []byte(g.Projection), 0644); err != nil {
			return fmt.Errorf("vector: writing footprint projection: %w", err)
		}
	}
	return nil
}
