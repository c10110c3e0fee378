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

package burnutil

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridburn"
	"github.com/spatialmodel/gridburn/cloud"
	"github.com/spatialmodel/gridburn/gridio"
	"github.com/spatialmodel/gridburn/vector"
)

// Job describes one burn of a vector file onto a grid file.
type Job struct {
	// VectorPath, InputPath and OutputPath are the paths of the shape,
	// the input grid and the output grid. They may be local paths,
	// http(s) URLs (inputs only), or blob storage URLs.
	VectorPath, InputPath, OutputPath string

	// Format and OutputFormat override the codecs chosen by the
	// extensions of InputPath and OutputPath.
	Format, OutputFormat string

	// Footprints, if not empty, is the shapefile the footprints of
	// the burned cells are written to.
	Footprints string

	// Preview, if not empty, is the PNG file a heat map of the output
	// grid is drawn to.
	Preview string

	Options gridburn.Options
}

// Burn reads the shape and the input grid of job, burns the shape onto the
// grid, and writes the output grid and any requested diagnostic files.
// Errors are tagged with the stage they happened in.
func Burn(ctx context.Context, job Job) (*gridburn.Summary, error) {
	start := time.Now()
	log := job.Options.Log
	if log == nil {
		log = logrus.StandardLogger()
		job.Options.Log = log
	}
	stage := &cloud.Stager{Log: log}
	defer stage.Close()

	path, err := stage.Fetch(ctx, job.VectorPath, vector.Sidecars(job.VectorPath)...)
	if err != nil {
		return nil, gridburn.StageErr(gridburn.StageReadVector, job.VectorPath, err)
	}
	shape, err := vector.Read(path)
	if err != nil {
		return nil, err
	}

	path, err = stage.Fetch(ctx, job.InputPath, gridio.Sidecars(job.InputPath)...)
	if err != nil {
		return nil, gridburn.StageErr(gridburn.StageReadRaster, job.InputPath, err)
	}
	in, err := gridio.Read(path, job.Format)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"path":   job.InputPath,
		"rows":   in.Rows,
		"cols":   in.Cols,
		"bounds": in.Bounds(),
	}).Info("read input grid")

	job.Options.RecordHits = job.Footprints != ""
	out, sum, err := gridburn.Rasterize(ctx, in, shape, job.Options)
	if err != nil {
		return nil, err
	}

	path, err = stage.Stage(job.OutputPath, gridio.Sidecars(job.OutputPath)...)
	if err != nil {
		return nil, gridburn.StageErr(gridburn.StageCreateOutput, job.OutputPath, err)
	}
	if err := gridio.Write(path, job.OutputFormat, out); err != nil {
		return nil, err
	}

	if job.Footprints != "" {
		path, err := stage.Stage(job.Footprints, vector.Sidecars(job.Footprints)...)
		if err == nil {
			err = vector.WriteFootprints(path, out, sum.Hits)
		}
		if err != nil {
			return nil, gridburn.StageErr(gridburn.StageCreateOutput, job.Footprints, err)
		}
	}
	if job.Preview != "" {
		path, err := stage.Stage(job.Preview)
		if err == nil {
			err = WritePreview(path, out)
		}
		if err != nil {
			return nil, gridburn.StageErr(gridburn.StageCreateOutput, job.Preview, err)
		}
	}

	if err := stage.Upload(ctx); err != nil {
		return nil, gridburn.StageErr(gridburn.StageUpload, job.OutputPath, err)
	}
	log.WithFields(logrus.Fields{
		"path":     job.OutputPath,
		"duration": time.Since(start),
	}).Info("wrote output grid")
	return sum, nil
}
