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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spatialmodel/gridburn"
)

// Sidecars returns the extensions of the auxiliary files that may
// accompany the grid file at path, e.g. ".prj" and ".tfw".
func Sidecars(path string) []string {
	ext := strings.ToLower(filepath.Ext(path))
	o := []string{".prj"}
	if ext == ".tif" || ext == ".tiff" {
		o = append(o, ".tfw")
	}
	return o
}

func prjPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
}

// readPrj returns the contents of the projection file next to path,
// or "" if there is none.
func readPrj(path string) (string, error) {
	b, err := ioutil.ReadFile(prjPath(path))
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// writePrj writes the projection file next to path.
// Nothing is written if projection is empty.
func writePrj(path, projection string) error {
	if projection == "" {
		return nil
	}
	return ioutil.WriteFile(prjPath(path), []byte(projection), 0644)
}

// worldFilePath returns the ESRI world file path for a TIFF file:
// foo.tif → foo.tfw.
func worldFilePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".tfw"
}

// readWorldFile reads the six coefficients of the world file at path and
// converts them to an anchor at the center of the upper-left cell.
// The anchor's Rows is left for the caller to set.
func readWorldFile(path string) (*gridburn.Anchor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var v [6]float64
	s := bufio.NewScanner(f)
	s.Split(bufio.ScanWords)
	i := 0
	for s.Scan() {
		if i == len(v) {
			return nil, fmt.Errorf("world file %s has more than 6 values", path)
		}
		v[i], err = strconv.ParseFloat(s.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("world file %s: %w", path, err)
		}
		i++
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if i != len(v) {
		return nil, fmt.Errorf("world file %s has %d values; want 6", path, i)
	}
	a, d, b, e, c, ff := v[0], v[1], v[2], v[3], v[4], v[5]
	if d != 0 || b != 0 {
		return nil, fmt.Errorf("%w: world file %s has rotation terms %g, %g", gridburn.ErrRotatedGrid, path, d, b)
	}
	return &gridburn.Anchor{
		Kind: gridburn.UpperLeftCenter,
		X:    c,
		Y:    ff,
		Transform: gridburn.Transform{
			OriginX: c - a/2,
			XRes:    a,
			OriginY: ff - e/2,
			YRes:    e,
		},
	}, nil
}

// writeWorldFile writes the georeferencing of g as a world file at path.
func writeWorldFile(path string, g *gridburn.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	x, y := g.AnchorOf(gridburn.UpperLeftCenter)
	t := g.Transform
	w := bufio.NewWriter(f)
	for _, v := range []float64{t.XRes, 0, 0, t.YRes, x, y} {
		fmt.Fprintln(w, formatFloat(v))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// formatFloat formats v with the fewest digits that parse back to v.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
