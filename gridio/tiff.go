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
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io/ioutil"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spatialmodel/gridburn"
	"golang.org/x/image/tiff"
)

// TIFF is a single-band GeoTIFF image with a .prj file next to it.
//
// Georeferencing is read from the ModelTransformation or the
// ModelPixelScale and ModelTiepoint tags, or from an ESRI world file
// (.tfw) if the image has none of them. Samples may be unsigned or signed
// integers of up to 32 bits or floating-point numbers. The no-data value
// is kept in the GDAL_NODATA tag.
//
// Grids holding only whole numbers from 0 to 65535 are written as 16-bit
// grayscale images and all others as 64-bit floating point. Both carry the
// GeoTIFF tags and a world file.
type TIFF struct{}

// Name implements Codec.
func (TIFF) Name() string { return "tiff" }

// Extensions implements Codec.
func (TIFF) Extensions() []string { return []string{".tif", ".tiff"} }

// Decode implements Codec.
func (TIFF) Decode(path string) (*gridburn.Grid, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := readTIFFDir(b)
	if err != nil {
		return nil, fmt.Errorf("decoding tiff: %w", err)
	}
	var g *gridburn.Grid
	if d.needsSampleDecoder() {
		g, err = decodeSamples(b, d)
	} else {
		g, err = decodeImage(b)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding tiff: %w", err)
	}

	t, ok, err := d.georeference()
	if err != nil {
		return nil, fmt.Errorf("reading georeferencing: %w", err)
	}
	if ok {
		g.Transform = t
	} else {
		a, err := readWorldFile(worldFilePath(path))
		if err != nil {
			return nil, fmt.Errorf("reading georeferencing: no GeoTIFF tags and %w", err)
		}
		a.Rows = g.Rows
		g.Transform = a.Transform
		g.Anchor = a
	}
	if s := strings.TrimSpace(d.ascii(tagGDALNoData)); s != "" {
		nd, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("reading no-data value: %w", err)
		}
		g.NoData = &nd
	}
	if g.Projection, err = readPrj(path); err != nil {
		return nil, err
	}
	return g, nil
}

// decodeImage decodes a TIFF file with unsigned samples of up to 16 bits.
func decodeImage(b []byte) (*gridburn.Grid, error) {
	img, err := tiff.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	r := img.Bounds()
	g := &gridburn.Grid{Rows: r.Dy(), Cols: r.Dx(), Data: make([]float64, r.Dx()*r.Dy())}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			x, y := r.Min.X+col, r.Min.Y+row
			var v float64
			switch im := img.(type) {
			case *image.Gray16:
				v = float64(im.Gray16At(x, y).Y)
			case *image.Gray:
				v = float64(im.GrayAt(x, y).Y)
			default:
				v = float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
			}
			g.Set(row, col, v)
		}
	}
	return g, nil
}

// fitsGray16 reports whether every value of data is a whole number
// from 0 to 65535.
func fitsGray16(data []float64) bool {
	for _, v := range data {
		if !(v >= 0 && v <= math.MaxUint16 && v == math.Trunc(v)) {
			return false
		}
	}
	return true
}

// Encode implements Codec.
func (TIFF) Encode(path string, g *gridburn.Grid) error {
	var buf *bytes.Buffer
	if fitsGray16(g.Data) {
		img := image.NewGray16(image.Rect(0, 0, g.Cols, g.Rows))
		for row := 0; row < g.Rows; row++ {
			for col := 0; col < g.Cols; col++ {
				img.SetGray16(col, row, color.Gray16{Y: uint16(g.At(row, col))})
			}
		}
		buf = new(bytes.Buffer)
		if err := tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
			return gridburn.StageErr(gridburn.StageWriteBand, path, err)
		}
		if err := addGeoTags(buf, g); err != nil {
			return gridburn.StageErr(gridburn.StageSetMetadata, path, err)
		}
	} else {
		var err error
		if buf, err = encodeFloat64(g); err != nil {
			return gridburn.StageErr(gridburn.StageWriteBand, path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return gridburn.StageErr(gridburn.StageCreateOutput, path, err)
	}
	defer f.Close()
	if err := writeWorldFile(worldFilePath(path), g); err != nil {
		return gridburn.StageErr(gridburn.StageSetMetadata, path, err)
	}
	if err := writePrj(path, g.Projection); err != nil {
		return gridburn.StageErr(gridburn.StageSetMetadata, path, err)
	}
	if _, err := buf.WriteTo(f); err != nil {
		return gridburn.StageErr(gridburn.StageWriteBand, path, err)
	}
	return gridburn.StageErr(gridburn.StageWriteBand, path, f.Close())
}
