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
	"errors"
	"fmt"
)

// Stage names the part of a run that failed.
type Stage string

// These are the stages a run can fail in.
const (
	StageReadVector   Stage = "read vector"
	StageReadRaster   Stage = "read raster"
	StageRasterize    Stage = "rasterize"
	StageCreateOutput Stage = "create output"
	StageSetMetadata  Stage = "set metadata"
	StageWriteBand    Stage = "write band"
	StageUpload       Stage = "upload output"
)

var (
	// ErrNoWorkers is returned when rows are split among zero workers.
	ErrNoWorkers = errors.New("gridburn: worker count must be positive")

	// ErrNonSquareCells is returned for grids whose x and y resolutions
	// differ in magnitude.
	ErrNonSquareCells = errors.New("gridburn: grid cells are not square")

	// ErrRotatedGrid is returned for grids that are not north-up.
	ErrRotatedGrid = errors.New("gridburn: grid is rotated")

	// ErrBufferLength is returned when a buffer does not hold
	// rows×cols values.
	ErrBufferLength = errors.New("gridburn: buffer length does not match grid dimensions")

	// ErrUnsupportedFormat is returned when no codec exists for a file.
	ErrUnsupportedFormat = errors.New("gridburn: unsupported format")
)

// StageError records the stage and file a failure happened in.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("gridburn: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gridburn: %s (%s): %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageErr wraps err with the stage and path it happened in.
// It returns nil if err is nil.
func StageErr(stage Stage, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Path: path, Err: err}
}

// FailedStage returns the stage err happened in, or "" if err does not
// carry one.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
