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
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
	"sort"
	"strings"

	"github.com/spatialmodel/gridburn"
	"golang.org/x/image/tiff/lzw"
)

// TIFF tags used by the codec.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagModelTransform  = 34264
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// typeSize holds the size in bytes of one value of each TIFF field type.
var typeSize = map[uint16]int{1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8}

// GeoTIFF key ids and values.
const (
	geoKeyRasterType   = 1025
	rasterPixelIsArea  = 1
	rasterPixelIsPoint = 2
)

// SampleFormat values.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// tiffEntry is one field of an image file directory.
type tiffEntry struct {
	tag, typ uint16
	count    uint32

	// value holds the field's values in the byte order of the file.
	// It is nil for fields copied from an existing directory, whose
	// value or offset field raw is written back unchanged.
	value []byte
	raw   [4]byte
}

// tiffDir is the first image file directory of a classic TIFF file.
type tiffDir struct {
	order   binary.ByteOrder
	entries []tiffEntry
}

// readTIFFDir reads the first image file directory of the TIFF file b.
func readTIFFDir(b []byte) (*tiffDir, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("tiff: file is %d bytes long", len(b))
	}
	d := new(tiffDir)
	switch string(b[:2]) {
	case "II":
		d.order = binary.LittleEndian
	case "MM":
		d.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("tiff: invalid byte order %q", b[:2])
	}
	if v := d.order.Uint16(b[2:4]); v != 42 {
		return nil, fmt.Errorf("%w: tiff version %d", gridburn.ErrUnsupportedFormat, v)
	}
	off := uint64(d.order.Uint32(b[4:8]))
	if off+2 > uint64(len(b)) {
		return nil, fmt.Errorf("tiff: directory offset %d past end of file", off)
	}
	n := int(d.order.Uint16(b[off:]))
	start := int(off) + 2
	if start+12*n > len(b) {
		return nil, fmt.Errorf("tiff: directory of %d entries past end of file", n)
	}
	for i := 0; i < n; i++ {
		p := b[start+12*i : start+12*(i+1)]
		e := tiffEntry{
			tag:   d.order.Uint16(p),
			typ:   d.order.Uint16(p[2:]),
			count: d.order.Uint32(p[4:]),
		}
		copy(e.raw[:], p[8:12])
		if size, ok := typeSize[e.typ]; ok {
			l := uint64(e.count) * uint64(size)
			if l <= 4 {
				e.value = append([]byte(nil), p[8:8+l]...)
			} else {
				vo := uint64(d.order.Uint32(p[8:]))
				if vo+l > uint64(len(b)) {
					return nil, fmt.Errorf("tiff: value of tag %d past end of file", e.tag)
				}
				e.value = b[vo : vo+l]
			}
		}
		d.entries = append(d.entries, e)
	}
	return d, nil
}

func (d *tiffDir) find(tag uint16) *tiffEntry {
	for i := range d.entries {
		if d.entries[i].tag == tag {
			return &d.entries[i]
		}
	}
	return nil
}

// uints returns the values of an unsigned integer field.
func (d *tiffDir) uints(tag uint16) []uint64 {
	e := d.find(tag)
	if e == nil {
		return nil
	}
	var o []uint64
	switch e.typ {
	case typeByte:
		for _, v := range e.value {
			o = append(o, uint64(v))
		}
	case typeShort:
		for i := 0; i+2 <= len(e.value); i += 2 {
			o = append(o, uint64(d.order.Uint16(e.value[i:])))
		}
	case typeLong:
		for i := 0; i+4 <= len(e.value); i += 4 {
			o = append(o, uint64(d.order.Uint32(e.value[i:])))
		}
	}
	return o
}

// first returns the first value of an unsigned integer field, or def if
// the field is missing.
func (d *tiffDir) first(tag uint16, def uint64) uint64 {
	if v := d.uints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

func (d *tiffDir) doubles(tag uint16) []float64 {
	e := d.find(tag)
	if e == nil || e.typ != typeDouble {
		return nil
	}
	o := make([]float64, len(e.value)/8)
	for i := range o {
		o[i] = math.Float64frombits(d.order.Uint64(e.value[8*i:]))
	}
	return o
}

func (d *tiffDir) ascii(tag uint16) string {
	e := d.find(tag)
	if e == nil || e.typ != typeASCII {
		return ""
	}
	return strings.TrimRight(string(e.value), "\x00")
}

// georeference returns the transform given by the GeoTIFF tags of d.
// ok is false if d has no GeoTIFF georeferencing.
func (d *tiffDir) georeference() (t gridburn.Transform, ok bool, err error) {
	if m := d.doubles(tagModelTransform); len(m) == 16 {
		if m[1] != 0 || m[4] != 0 {
			return t, false, fmt.Errorf("%w: model transformation has rotation terms %g, %g",
				gridburn.ErrRotatedGrid, m[1], m[4])
		}
		t = gridburn.Transform{OriginX: m[3], XRes: m[0], OriginY: m[7], YRes: m[5]}
	} else {
		scale, tie := d.doubles(tagModelPixelScale), d.doubles(tagModelTiepoint)
		if scale == nil && tie == nil {
			return t, false, nil
		}
		if len(scale) < 2 || len(tie) < 6 {
			return t, false, fmt.Errorf("tiff: incomplete georeferencing: %d pixel scale and %d tiepoint values",
				len(scale), len(tie))
		}
		i, j, x, y := tie[0], tie[1], tie[3], tie[4]
		t = gridburn.Transform{
			OriginX: x - i*scale[0],
			XRes:    scale[0],
			OriginY: y + j*scale[1],
			YRes:    -scale[1],
		}
	}
	if d.geoKey(geoKeyRasterType) == rasterPixelIsPoint {
		t.OriginX -= t.XRes / 2
		t.OriginY -= t.YRes / 2
	}
	return t, true, nil
}

// geoKey returns the value of a GeoTIFF key stored in the key directory
// itself, or 0 if there is none.
func (d *tiffDir) geoKey(id uint64) uint64 {
	k := d.uints(tagGeoKeyDirectory)
	if len(k) < 4 {
		return 0
	}
	for i := 4; i+4 <= len(k) && i < 4+4*int(k[3]); i += 4 {
		if k[i] == id && k[i+1] == 0 {
			return k[i+3]
		}
	}
	return 0
}

// needsSampleDecoder reports whether the samples of d are signed,
// floating point, or wider than 16 bits. golang.org/x/image/tiff
// decodes none of these.
func (d *tiffDir) needsSampleDecoder() bool {
	return d.first(tagSampleFormat, sampleUint) != sampleUint || d.first(tagBitsPerSample, 1) > 16
}

// decodeSamples decodes the single band of the striped image b
// described by d.
func decodeSamples(b []byte, d *tiffDir) (*gridburn.Grid, error) {
	cols, rows := int(d.first(tagImageWidth, 0)), int(d.first(tagImageLength, 0))
	if d.find(tagTileWidth) != nil {
		return nil, fmt.Errorf("%w: tiled tiff with %d-bit samples", gridburn.ErrUnsupportedFormat, d.first(tagBitsPerSample, 1))
	}
	if n := d.first(tagSamplesPerPixel, 1); n != 1 {
		return nil, fmt.Errorf("%w: tiff with %d samples per pixel", gridburn.ErrUnsupportedFormat, n)
	}
	bits, format := int(d.first(tagBitsPerSample, 1)), d.first(tagSampleFormat, sampleUint)
	switch {
	case format == sampleFloat && (bits == 32 || bits == 64):
	case (format == sampleUint || format == sampleInt) && (bits == 8 || bits == 16 || bits == 32):
	default:
		return nil, fmt.Errorf("%w: tiff sample format %d with %d bits", gridburn.ErrUnsupportedFormat, format, bits)
	}
	predictor := d.first(tagPredictor, 1)
	if predictor != 1 && (predictor != 2 || format == sampleFloat) {
		return nil, fmt.Errorf("%w: tiff predictor %d for sample format %d", gridburn.ErrUnsupportedFormat, predictor, format)
	}
	perStrip := int(d.first(tagRowsPerStrip, uint64(rows)))
	if perStrip <= 0 || perStrip > rows {
		perStrip = rows
	}
	offsets, counts := d.uints(tagStripOffsets), d.uints(tagStripByteCounts)
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("tiff: %d strip offsets but %d strip byte counts", len(offsets), len(counts))
	}

	g := &gridburn.Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
	size := bits / 8
	rowLen := cols * size
	row := 0
	for s := 0; s < len(offsets) && row < rows; s++ {
		o, n := offsets[s], counts[s]
		if o+n > uint64(len(b)) {
			return nil, fmt.Errorf("tiff: strip %d past end of file", s)
		}
		strip, err := decompress(b[o:o+n], d.first(tagCompression, 1))
		if err != nil {
			return nil, fmt.Errorf("tiff: strip %d: %w", s, err)
		}
		nr := perStrip
		if row+nr > rows {
			nr = rows - row
		}
		if len(strip) < nr*rowLen {
			return nil, fmt.Errorf("tiff: strip %d has %d bytes; want %d", s, len(strip), nr*rowLen)
		}
		for r := 0; r < nr; r++ {
			line := strip[r*rowLen : (r+1)*rowLen]
			if predictor == 2 {
				undoDifferencing(line, size, d.order)
			}
			for c := 0; c < cols; c++ {
				g.Data[(row+r)*cols+c] = sample(line[c*size:], bits, format, d.order)
			}
		}
		row += nr
	}
	if row < rows {
		return nil, fmt.Errorf("tiff: strips hold %d of %d rows", row, rows)
	}
	return g, nil
}

func decompress(p []byte, compression uint64) ([]byte, error) {
	switch compression {
	case 1:
		return p, nil
	case 5:
		r := lzw.NewReader(bytes.NewReader(p), lzw.MSB, 8)
		defer r.Close()
		return ioutil.ReadAll(r)
	case 8, 32946:
		r, err := zlib.NewReader(bytes.NewReader(p))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return ioutil.ReadAll(r)
	default:
		return nil, fmt.Errorf("%w: tiff compression %d", gridburn.ErrUnsupportedFormat, compression)
	}
}

// undoDifferencing reverses horizontal differencing of the integer
// samples of one row.
func undoDifferencing(line []byte, size int, order binary.ByteOrder) {
	for i := size; i+size <= len(line); i += size {
		switch size {
		case 1:
			line[i] += line[i-1]
		case 2:
			order.PutUint16(line[i:], order.Uint16(line[i:])+order.Uint16(line[i-2:]))
		case 4:
			order.PutUint32(line[i:], order.Uint32(line[i:])+order.Uint32(line[i-4:]))
		}
	}
}

func sample(p []byte, bits int, format uint64, order binary.ByteOrder) float64 {
	switch {
	case format == sampleFloat && bits == 32:
		return float64(math.Float32frombits(order.Uint32(p)))
	case format == sampleFloat:
		return math.Float64frombits(order.Uint64(p))
	case format == sampleInt && bits == 8:
		return float64(int8(p[0]))
	case format == sampleInt && bits == 16:
		return float64(int16(order.Uint16(p)))
	case format == sampleInt:
		return float64(int32(order.Uint32(p)))
	case bits == 8:
		return float64(p[0])
	case bits == 16:
		return float64(order.Uint16(p))
	default:
		return float64(order.Uint32(p))
	}
}

func shortEntry(tag uint16, v ...uint16) tiffEntry {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint16(b[2*i:], x)
	}
	return tiffEntry{tag: tag, typ: typeShort, count: uint32(len(v)), value: b}
}

func longEntry(tag uint16, v uint32) tiffEntry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return tiffEntry{tag: tag, typ: typeLong, count: 1, value: b}
}

func doubleEntry(tag uint16, v ...float64) tiffEntry {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return tiffEntry{tag: tag, typ: typeDouble, count: uint32(len(v)), value: b}
}

func asciiEntry(tag uint16, s string) tiffEntry {
	b := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), value: b}
}

// geoTags returns the GeoTIFF fields holding the georeferencing of g and
// the GDAL field holding its no-data value.
func geoTags(g *gridburn.Grid) []tiffEntry {
	t := g.Transform
	e := []tiffEntry{
		doubleEntry(tagModelPixelScale, t.XRes, -t.YRes, 0),
		doubleEntry(tagModelTiepoint, 0, 0, 0, t.OriginX, t.OriginY, 0),
		shortEntry(tagGeoKeyDirectory, 1, 1, 0, 1, geoKeyRasterType, 0, 1, rasterPixelIsArea),
	}
	if g.NoData != nil {
		e = append(e, asciiEntry(tagGDALNoData, formatFloat(*g.NoData)))
	}
	return e
}

// appendIFD appends a directory holding entries to the little-endian TIFF
// file in buf and makes it the first directory of the file.
func appendIFD(buf *bytes.Buffer, entries []tiffEntry) {
	le := binary.LittleEndian
	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}
	off := buf.Len()
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
	extStart := off + 2 + 12*len(entries) + 4

	var ext bytes.Buffer
	var p [12]byte
	le.PutUint16(p[:2], uint16(len(entries)))
	buf.Write(p[:2])
	for _, e := range entries {
		p = [12]byte{}
		le.PutUint16(p[0:], e.tag)
		le.PutUint16(p[2:], e.typ)
		le.PutUint32(p[4:], e.count)
		switch {
		case e.value == nil:
			copy(p[8:], e.raw[:])
		case len(e.value) <= 4:
			copy(p[8:], e.value)
		default:
			if ext.Len()%2 == 1 {
				ext.WriteByte(0)
			}
			le.PutUint32(p[8:], uint32(extStart+ext.Len()))
			ext.Write(e.value)
		}
		buf.Write(p[:])
	}
	buf.Write([]byte{0, 0, 0, 0})
	ext.WriteTo(buf)
	le.PutUint32(buf.Bytes()[4:8], uint32(off))
}

// addGeoTags rewrites the first directory of the little-endian TIFF file
// in buf with the georeferencing fields of g added.
func addGeoTags(buf *bytes.Buffer, g *gridburn.Grid) error {
	d, err := readTIFFDir(buf.Bytes())
	if err != nil {
		return err
	}
	entries := make([]tiffEntry, 0, len(d.entries)+4)
	for _, e := range d.entries {
		e.value = nil
		entries = append(entries, e)
	}
	appendIFD(buf, append(entries, geoTags(g)...))
	return nil
}

// encodeFloat64 returns g as a Deflate-compressed TIFF file with one strip
// of 64-bit floating-point samples.
func encodeFloat64(g *gridburn.Grid) (*bytes.Buffer, error) {
	buf := bytes.NewBufferString("II*\x00\x00\x00\x00\x00")
	zw := zlib.NewWriter(buf)
	var p [8]byte
	for _, v := range g.Data {
		binary.LittleEndian.PutUint64(p[:], math.Float64bits(v))
		if _, err := zw.Write(p[:]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	appendIFD(buf, append([]tiffEntry{
		longEntry(tagImageWidth, uint32(g.Cols)),
		longEntry(tagImageLength, uint32(g.Rows)),
		shortEntry(tagBitsPerSample, 64),
		shortEntry(tagCompression, 8),
		shortEntry(tagPhotometric, 1),
		longEntry(tagStripOffsets, 8),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(g.Rows)),
		longEntry(tagStripByteCounts, uint32(buf.Len()-8)),
		shortEntry(tagPlanarConfig, 1),
		shortEntry(tagSampleFormat, sampleFloat),
	}, geoTags(g)...))
	return buf, nil
}
