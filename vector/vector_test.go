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
	"errors"
	"io/ioutil"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/kr/pretty"
	"github.com/spatialmodel/gridburn"
)

func TestDecodeGeoJSON(t *testing.T) {
	square := geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}}}
	const squareJSON = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	for _, test := range []struct {
		name, src string
		want      geom.Geom
	}{
		{name: "polygon", src: squareJSON, want: square},
		{name: "point", src: `{"type":"Point","coordinates":[3.5,-2]}`, want: geom.Point{X: 3.5, Y: -2}},
		{
			name: "linestring",
			src:  `{"type":"LineString","coordinates":[[0,0],[2,2]]}`,
			want: geom.LineString{{X: 0, Y: 0}, {X: 2, Y: 2}},
		},
		{
			name: "multipoint",
			src:  `{"type":"MultiPoint","coordinates":[[0,0],[2,2]]}`,
			want: geom.MultiPoint{{X: 0, Y: 0}, {X: 2, Y: 2}},
		},
		{
			name: "multilinestring",
			src:  `{"type":"MultiLineString","coordinates":[[[0,0],[2,2]],[[5,5],[6,7]]]}`,
			want: geom.MultiLineString{{{X: 0, Y: 0}, {X: 2, Y: 2}}, {{X: 5, Y: 5}, {X: 6, Y: 7}}},
		},
		{
			name: "multipolygon",
			src:  `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`,
			want: geom.MultiPolygon{square},
		},
		{name: "feature", src: `{"type":"Feature","properties":{"name":"a"},"geometry":` + squareJSON + `}`, want: square},
		{name: "null feature", src: `{"type":"Feature","properties":{},"geometry":null}`, want: nil},
		{
			name: "feature collection",
			src: `{"type":"FeatureCollection","features":[
				{"type":"Feature","geometry":` + squareJSON + `},
				{"type":"Feature","geometry":null},
				{"type":"Feature","geometry":{"type":"Point","coordinates":[9,9]}}
			]}`,
			want: geom.GeometryCollection{square, geom.Point{X: 9, Y: 9}},
		},
		{
			name: "single feature collection",
			src:  `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":` + squareJSON + `}]}`,
			want: square,
		},
		{name: "empty feature collection", src: `{"type":"FeatureCollection","features":[]}`, want: geom.GeometryCollection{}},
		{
			name: "geometry collection",
			src:  `{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}`,
			want: geom.GeometryCollection{geom.Point{X: 1, Y: 2}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			have, err := DecodeGeoJSON([]byte(test.src))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %# v, want %# v", pretty.Formatter(have), pretty.Formatter(test.want))
			}
		})
	}
}

func TestDecodeGeoJSONErrors(t *testing.T) {
	for _, src := range []string{
		`not json`,
		`{"coordinates":[1,2]}`,
		`{"type":"Curve","coordinates":[]}`,
		`{"type":"MultiPoint","coordinates":[[1]]}`,
		`{"type":"MultiPoint","coordinates":[[1,2,3]]}`,
		`{"type":"MultiPoint","coordinates":[[1,2],[3,4,5]]}`,
		`{"type":"Point","coordinates":[1,2,3]}`,
		`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Blob"}}]}`,
	} {
		if _, err := DecodeGeoJSON([]byte(src)); err == nil {
			t.Errorf("%s: expected an error", src)
		}
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shape.geojson")
	src := `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]}}`
	if err := ioutil.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := (geom.Point{X: 1, Y: 2}); !reflect.DeepEqual(g, want) {
		t.Errorf("have %v, want %v", g, want)
	}

	_, err = Read(filepath.Join(dir, "shape.kml"))
	if !errors.Is(err, gridburn.ErrUnsupportedFormat) {
		t.Errorf("kml: have %v", err)
	}
	if s := gridburn.FailedStage(err); s != gridburn.StageReadVector {
		t.Errorf("stage: have %q, want %q", s, gridburn.StageReadVector)
	}
	_, err = Read(filepath.Join(dir, "missing.json"))
	if s := gridburn.FailedStage(err); s != gridburn.StageReadVector {
		t.Errorf("missing file stage: have %q (%v)", s, err)
	}
}

func TestFootprints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "burned.shp")
	g := gridburn.NewGrid(3, 3, gridburn.Transform{OriginX: 10, XRes: 2, OriginY: 20, YRes: -2}, "EPSG:32615")
	g.Set(0, 1, 7)
	g.Set(2, 2, 7.5)
	cells := []gridburn.Cell{{Row: 0, Col: 1}, {Row: 2, Col: 2}}
	if err := WriteFootprints(path, g, cells); err != nil {
		t.Fatal(err)
	}

	d, err := shp.NewDecoder(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	for i, c := range cells {
		shape, fields, more := d.DecodeRowFields("row", "col", "value")
		if !more {
			t.Fatalf("only %d records", i)
		}
		field := func(k string) string { return strings.Trim(fields[k], " \x00") }
		if field("row") != strconv.Itoa(c.Row) || field("col") != strconv.Itoa(c.Col) {
			t.Errorf("record %d: fields %v", i, fields)
		}
		if v, err := strconv.ParseFloat(field("value"), 64); err != nil || v != g.At(c.Row, c.Col) {
			t.Errorf("record %d: value %q", i, fields["value"])
		}
		have := shape.Bounds()
		want := g.CellFootprint(c.Row, c.Col).Bounds()
		if !reflect.DeepEqual(have, want) {
			t.Errorf("record %d: bounds %v, want %v", i, have, want)
		}
	}
	if err := d.Error(); err != nil {
		t.Fatal(err)
	}
	prj, err := ioutil.ReadFile(filepath.Join(dir, "burned.prj"))
	if err != nil || string(prj) != "EPSG:32615" {
		t.Errorf("projection: %q, %v", prj, err)
	}

	shape, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	gc, ok := shape.(geom.GeometryCollection)
	if !ok || len(gc) != 2 {
		t.Fatalf("have %T with value %v", shape, shape)
	}

	if err := WriteFootprints(path, g, []gridburn.Cell{{Row: 3, Col: 0}}); err == nil {
		t.Error("cell outside the grid should fail")
	}
	if err := WriteFootprints(filepath.Join(dir, "x.json"), g, cells); err == nil {
		t.Error("non-shapefile path should fail")
	}
}

func TestSidecars(t *testing.T) {
	if have, want := Sidecars("a/b.SHP"), []string{".shx", ".dbf", ".prj"}; !reflect.DeepEqual(have, want) {
		t.Errorf("shapefile: have %v, want %v", have, want)
	}
	if have := Sidecars("b.geojson"); have != nil {
		t.Errorf("geojson: have %v", have)
	}
}
