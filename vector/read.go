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

// Package vector reads the shapes that are burned onto grids and writes
// the footprints of burned cells.
package vector

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/spatialmodel/gridburn"
)

// Read reads the shape in the file at path. GeoJSON (.json, .geojson)
// and shapefiles (.shp) are supported. Files with more than one geometry
// are returned as a geom.GeometryCollection. Errors are tagged with
// gridburn.StageReadVector.
func Read(path string) (geom.Geom, error) {
	var g geom.Geom
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".geojson":
		var b []byte
		b, err = ioutil.ReadFile(path)
		if err == nil {
			g, err = DecodeGeoJSON(b)
		}
	case ".shp":
		g, err = readShp(path)
	default:
		err = fmt.Errorf("%w: vector file extension %q", gridburn.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, gridburn.StageErr(gridburn.StageReadVector, path, err)
	}
	return g, nil
}

// geoJSONObject holds the members of any GeoJSON object that are needed
// to find its geometries.
type geoJSONObject struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometry    json.RawMessage   `json:"geometry"`
	Geometries  []json.RawMessage `json:"geometries"`
	Features    []json.RawMessage `json:"features"`
}

// DecodeGeoJSON decodes a GeoJSON geometry, Feature, or
// FeatureCollection. Features without geometry are skipped.
// A collection with a single geometry is returned as that geometry.
func DecodeGeoJSON(b []byte) (geom.Geom, error) {
	g, err := decodeGeoJSON(b)
	if err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}
	return g, nil
}

func decodeGeoJSON(b []byte) (geom.Geom, error) {
	var o geoJSONObject
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	switch o.Type {
	case "FeatureCollection":
		var gc geom.GeometryCollection
		for i, f := range o.Features {
			g, err := decodeGeoJSON(f)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			if g != nil {
				gc = append(gc, g)
			}
		}
		return collapse(gc), nil
	case "Feature":
		if isNull(o.Geometry) {
			return nil, nil
		}
		return decodeGeoJSON(o.Geometry)
	case "GeometryCollection":
		var gc geom.GeometryCollection
		for i, gj := range o.Geometries {
			g, err := decodeGeoJSON(gj)
			if err != nil {
				return nil, fmt.Errorf("geometry %d: %w", i, err)
			}
			if g != nil {
				gc = append(gc, g)
			}
		}
		return gc, nil
	case "Point", "LineString", "Polygon":
		g, err := geojson.Decode(b)
		if err != nil {
			return nil, err
		}
		return deref(g), nil
	case "MultiPoint":
		var parts []json.RawMessage
		if err := json.Unmarshal(o.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("MultiPoint coordinates: %w", err)
		}
		mp := make(geom.MultiPoint, 0, len(parts))
		for _, p := range parts {
			g, err := decodePart("Point", p)
			if err != nil {
				return nil, err
			}
			pt, ok := g.(geom.Point)
			if !ok {
				return nil, fmt.Errorf("unexpected Point type %T", g)
			}
			mp = append(mp, pt)
		}
		return mp, nil
	case "MultiLineString":
		var parts []json.RawMessage
		if err := json.Unmarshal(o.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("MultiLineString coordinates: %w", err)
		}
		ml := make(geom.MultiLineString, 0, len(parts))
		for _, p := range parts {
			g, err := decodePart("LineString", p)
			if err != nil {
				return nil, err
			}
			l, ok := g.(geom.LineString)
			if !ok {
				return nil, fmt.Errorf("unexpected LineString type %T", g)
			}
			ml = append(ml, l)
		}
		return ml, nil
	case "MultiPolygon":
		var parts []json.RawMessage
		if err := json.Unmarshal(o.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("MultiPolygon coordinates: %w", err)
		}
		mp := make(geom.MultiPolygon, 0, len(parts))
		for _, p := range parts {
			g, err := decodePart("Polygon", p)
			if err != nil {
				return nil, err
			}
			pg, ok := g.(geom.Polygon)
			if !ok {
				return nil, fmt.Errorf("unexpected Polygon type %T", g)
			}
			mp = append(mp, pg)
		}
		return mp, nil
	case "":
		return nil, fmt.Errorf("missing type member")
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type %q", o.Type)
	}
}

// decodePart decodes the coordinates of one part of a multi-part geometry
// as a geometry of type typ.
func decodePart(typ string, coordinates json.RawMessage) (geom.Geom, error) {
	b, err := json.Marshal(struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}{typ, coordinates})
	if err != nil {
		return nil, err
	}
	g, err := geojson.Decode(b)
	if err != nil {
		return nil, err
	}
	return deref(g), nil
}

// deref returns the value that a geometry pointer points to.
func deref(g geom.Geom) geom.Geom {
	switch t := g.(type) {
	case *geom.Point:
		return *t
	case *geom.LineString:
		return *t
	case *geom.Polygon:
		return *t
	}
	return g
}

func isNull(b json.RawMessage) bool {
	s := strings.TrimSpace(string(b))
	return s == "" || s == "null"
}

// collapse returns the only member of gc if it has one member.
func collapse(gc geom.GeometryCollection) geom.Geom {
	if len(gc) == 1 {
		return gc[0]
	}
	if gc == nil {
		return geom.GeometryCollection{}
	}
	return gc
}

// readShp reads all the shapes in a shapefile.
func readShp(path string) (geom.Geom, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer d.Close()
	var gc geom.GeometryCollection
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		if g != nil {
			gc = append(gc, deref(g))
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("reading shapefile: %w", err)
	}
	return collapse(gc), nil
}
