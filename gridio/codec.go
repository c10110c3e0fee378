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

// Package gridio reads and writes single-band grids in the file formats
// supported by gridburn.
package gridio

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spatialmodel/gridburn"
)

// A Codec decodes and encodes grids in one file format.
//
// Encode errors should be tagged with the stage they happened in
// using gridburn.StageErr: StageCreateOutput for failures creating the
// file, StageSetMetadata for failures writing georeferencing, and
// StageWriteBand for failures writing cell values.
type Codec interface {
	// Name is the identifier used to select the codec explicitly.
	Name() string

	// Extensions lists the lower-case file extensions, including the
	// leading dot, that select the codec.
	Extensions() []string

	Decode(path string) (*gridburn.Grid, error)
	Encode(path string, g *gridburn.Grid) error
}

var (
	mu     sync.RWMutex
	byName = make(map[string]Codec)
	byExt  = make(map[string]Codec)
)

func init() {
	Register(ASCII{})
	Register(NetCDF{})
	Register(TIFF{})
}

// Register makes c available to Lookup. A codec registered later under the
// same name or extension replaces an earlier one.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	byName[strings.ToLower(c.Name())] = c
	for _, e := range c.Extensions() {
		byExt[strings.ToLower(e)] = c
	}
}

// Names returns the names of the registered codecs in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

// Lookup returns the codec named by override, or, if override is empty,
// the codec registered for the extension of path.
func Lookup(path, override string) (Codec, error) {
	mu.RLock()
	defer mu.RUnlock()
	if override != "" {
		c, ok := byName[strings.ToLower(override)]
		if !ok {
			return nil, fmt.Errorf("%w: no codec named %q; valid options are %v", gridburn.ErrUnsupportedFormat, override, namesLocked())
		}
		return c, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	c, ok := byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: no codec for extension %q of %s", gridburn.ErrUnsupportedFormat, ext, path)
	}
	return c, nil
}

func namesLocked() []string {
	o := make([]string, 0, len(byName))
	for n := range byName {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// Read decodes the grid at path with the codec selected by Lookup.
// Errors are tagged with gridburn.StageReadRaster.
func Read(path, format string) (*gridburn.Grid, error) {
	c, err := Lookup(path, format)
	if err != nil {
		return nil, gridburn.StageErr(gridburn.StageReadRaster, path, err)
	}
	g, err := c.Decode(path)
	if err != nil {
		if gridburn.FailedStage(err) != "" {
			return nil, err
		}
		return nil, gridburn.StageErr(gridburn.StageReadRaster, path, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return g, nil
}

// Write encodes g to path with the codec selected by Lookup.
// Errors that the codec did not tag are tagged with
// gridburn.StageCreateOutput.
func Write(path, format string, g *gridburn.Grid) error {
	c, err := Lookup(path, format)
	if err != nil {
		return gridburn.StageErr(gridburn.StageCreateOutput, path, err)
	}
	if err := c.Encode(path, g); err != nil {
		if gridburn.FailedStage(err) != "" {
			return err
		}
		return gridburn.StageErr(gridburn.StageCreateOutput, path, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return nil
}
