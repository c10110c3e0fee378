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
	"bytes"
	"context"
	"image/png"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridburn"
	"github.com/spatialmodel/gridburn/gridio"
)

// topLeftSquare covers the 2×2 block of cells in the top left corner
// of the grid written by writeInputs.
const topLeftSquare = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
"geometry":{"type":"Polygon","coordinates":[[[0,-2],[2,-2],[2,0],[0,0],[0,-2]]]}}]}`

// writeInputs writes a shape file and a 4×4 grid with every cell set
// to 5 into dir.
func writeInputs(t *testing.T, dir string) (vectorPath, gridPath string) {
	t.Helper()
	vectorPath = filepath.Join(dir, "shape.geojson")
	if err := ioutil.WriteFile(vectorPath, []byte(topLeftSquare), 0644); err != nil {
		t.Fatal(err)
	}
	g := gridburn.NewGrid(4, 4, gridburn.Transform{OriginX: 0, XRes: 1, OriginY: 0, YRes: -1}, "EPSG:3857")
	for i := range g.Data {
		g.Data[i] = 5
	}
	gridPath = filepath.Join(dir, "in.asc")
	if err := gridio.Write(gridPath, "", g); err != nil {
		t.Fatal(err)
	}
	return vectorPath, gridPath
}

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func readData(t *testing.T, path string) []float64 {
	t.Helper()
	g, err := gridio.Read(path, "")
	if err != nil {
		t.Fatal(err)
	}
	return g.Data
}

func TestBurn(t *testing.T) {
	for _, test := range []struct {
		name   string
		zero   bool
		pred   gridburn.PredicateMode
		burn   float64
		out    string
		want   []float64
		burned int
	}{
		{
			name: "overlaps", pred: gridburn.Strict, out: "out.asc", burned: 4,
			want: []float64{
				9, 9, 5, 5,
				9, 9, 5, 5,
				5, 5, 5, 5,
				5, 5, 5, 5,
			},
		},
		{
			name: "overlaps zero", pred: gridburn.Strict, zero: true, out: "out.nc", burned: 4,
			want: []float64{
				9, 9, 0, 0,
				9, 9, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
			},
		},
		{
			name: "intersects", pred: gridburn.Inclusive, out: "out.tif", burned: 9,
			want: []float64{
				9, 9, 9, 5,
				9, 9, 9, 5,
				9, 9, 9, 5,
				5, 5, 5, 5,
			},
		},
		{
			name: "negative tiff", pred: gridburn.Strict, burn: -3, out: "neg.tif", burned: 4,
			want: []float64{
				-3, -3, 5, 5,
				-3, -3, 5, 5,
				5, 5, 5, 5,
				5, 5, 5, 5,
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			vectorPath, gridPath := writeInputs(t, dir)
			out := filepath.Join(dir, test.out)
			burn := 9.
			if test.burn != 0 {
				burn = test.burn
			}
			sum, err := Burn(context.Background(), Job{
				VectorPath: vectorPath,
				InputPath:  gridPath,
				OutputPath: out,
				Options: gridburn.Options{
					BurnValue: burn,
					SetZero:   test.zero,
					Predicate: test.pred,
					Workers:   3,
					Log:       quietLog(),
				},
			})
			if err != nil {
				t.Fatal(err)
			}
			if have := readData(t, out); !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
			if sum.Burned != test.burned {
				t.Errorf("burned: have %d, want %d", sum.Burned, test.burned)
			}
		})
	}
}

func TestBurnDiagnostics(t *testing.T) {
	dir := t.TempDir()
	vectorPath, gridPath := writeInputs(t, dir)
	job := Job{
		VectorPath: vectorPath,
		InputPath:  gridPath,
		OutputPath: filepath.Join(dir, "out.asc"),
		Footprints: filepath.Join(dir, "burned.shp"),
		Preview:    filepath.Join(dir, "preview.png"),
		Options: gridburn.Options{
			BurnValue: 2,
			Predicate: gridburn.Strict,
			Log:       quietLog(),
		},
	}
	sum, err := Burn(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	want := []gridburn.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 1, Col: 1}}
	if !reflect.DeepEqual(sum.Hits, want) {
		t.Errorf("hits: %v", pretty.Diff(sum.Hits, want))
	}
	for _, f := range []string{"burned.shp", "burned.shx", "burned.dbf", "burned.prj"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("footprints: %v", err)
		}
	}
	f, err := os.Open(job.Preview)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("preview: %v", err)
	}
}

func TestBurnErrors(t *testing.T) {
	dir := t.TempDir()
	vectorPath, gridPath := writeInputs(t, dir)
	out := filepath.Join(dir, "out.asc")
	for _, test := range []struct {
		name  string
		job   Job
		stage gridburn.Stage
	}{
		{
			name:  "missing vector",
			job:   Job{VectorPath: filepath.Join(dir, "none.geojson"), InputPath: gridPath, OutputPath: out},
			stage: gridburn.StageReadVector,
		},
		{
			name:  "missing grid",
			job:   Job{VectorPath: vectorPath, InputPath: filepath.Join(dir, "none.asc"), OutputPath: out},
			stage: gridburn.StageReadRaster,
		},
		{
			name:  "bad output directory",
			job:   Job{VectorPath: vectorPath, InputPath: gridPath, OutputPath: filepath.Join(dir, "x", "y", "out.asc")},
			stage: gridburn.StageCreateOutput,
		},
		{
			name:  "invalid predicate",
			job:   Job{VectorPath: vectorPath, InputPath: gridPath, OutputPath: out, Options: gridburn.Options{Predicate: gridburn.PredicateMode(7)}},
			stage: gridburn.StageRasterize,
		},
		{
			name:  "bad preview",
			job:   Job{VectorPath: vectorPath, InputPath: gridPath, OutputPath: out, Preview: filepath.Join(dir, "p.jpg")},
			stage: gridburn.StageCreateOutput,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			test.job.Options.Log = quietLog()
			_, err := Burn(context.Background(), test.job)
			if err == nil {
				t.Fatal("expected an error")
			}
			if s := gridburn.FailedStage(err); s != test.stage {
				t.Errorf("stage: have %q (%v), want %q", s, err, test.stage)
			}
			if !strings.HasPrefix(err.Error(), "gridburn: "+string(test.stage)) {
				t.Errorf("message %q does not name the stage", err)
			}
		})
	}
}

func TestPreviewGrid(t *testing.T) {
	g := gridburn.NewGrid(2, 3, gridburn.Transform{OriginX: 10, XRes: 2, OriginY: 20, YRes: -2}, "")
	nd := -1.
	g.NoData = &nd
	g.Set(0, 2, 7)
	g.Set(1, 0, -1)
	p := gridXYZ{g}
	if c, r := p.Dims(); c != 3 || r != 2 {
		t.Errorf("dims: %d, %d", c, r)
	}
	if p.Z(2, 1) != 7 {
		t.Errorf("top right: have %g", p.Z(2, 1))
	}
	if z := p.Z(0, 0); !math.IsNaN(z) {
		t.Errorf("nodata cell should be NaN, have %g", z)
	}
	if p.X(1) != 13 || p.Y(0) != 17 || p.Y(1) != 19 {
		t.Errorf("coordinates: x %g, y %g %g", p.X(1), p.Y(0), p.Y(1))
	}

	dir := t.TempDir()
	if err := WritePreview(filepath.Join(dir, "flat.png"), gridburn.NewGrid(2, 2, g.Transform, "")); err != nil {
		t.Errorf("flat grid: %v", err)
	}
	if err := WritePreview(filepath.Join(dir, "empty.png"), gridburn.NewGrid(0, 2, g.Transform, "")); err == nil {
		t.Error("empty grid should fail")
	}
}

func TestBurnValue(t *testing.T) {
	for _, test := range []struct {
		in    interface{}
		want  float64
		fails bool
	}{
		{in: 1, want: 1},
		{in: int64(-4), want: -4},
		{in: "7", want: 7},
		{in: 3.0, want: 3},
		{in: 2.5, fails: true},
		{in: "2.5", fails: true},
		{in: "seven", fails: true},
	} {
		have, err := burnValue(test.in)
		if test.fails != (err != nil) {
			t.Errorf("%#v: unexpected error state: %v", test.in, err)
			continue
		}
		if have != test.want {
			t.Errorf("%#v: have %g, want %g", test.in, have, test.want)
		}
	}
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	vectorPath, gridPath := writeInputs(t, dir)

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		Root.SetOutput(&out)
		Root.SetArgs(args)
		err := Root.Execute()
		return out.String(), err
	}

	t.Run("burn", func(t *testing.T) {
		out := filepath.Join(dir, "cli.asc")
		_, err := run("--burn-value=7", "--set-zero", "--predicate=overlaps", "--LogLevel=error",
			vectorPath, gridPath, out)
		if err != nil {
			t.Fatal(err)
		}
		want := []float64{
			7, 7, 0, 0,
			7, 7, 0, 0,
			0, 0, 0, 0,
			0, 0, 0, 0,
		}
		if have := readData(t, out); !reflect.DeepEqual(have, want) {
			t.Errorf("have %v, want %v", have, want)
		}
	})
	t.Run("shorthand", func(t *testing.T) {
		out := filepath.Join(dir, "short.asc")
		_, err := run("-v", "3", "-z=false", "--predicate=overlaps", "--LogLevel=error",
			vectorPath, gridPath, out)
		if err != nil {
			t.Fatal(err)
		}
		if have := readData(t, out); have[0] != 3 || have[15] != 5 {
			t.Errorf("have %v", have)
		}
	})
	t.Run("config file", func(t *testing.T) {
		cfg := filepath.Join(dir, "gridburn.toml")
		logFile := filepath.Join(dir, "gridburn.log")
		src := "workers = 2\nLogFile = \"" + filepath.ToSlash(logFile) + "\"\n"
		if err := ioutil.WriteFile(cfg, []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(dir, "cfg.asc")
		if _, err := run("--config="+cfg, "-z=false", "--LogLevel=info", vectorPath, gridPath, out); err != nil {
			t.Fatal(err)
		}
		b, err := ioutil.ReadFile(logFile)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(b), `"msg":"rasterization complete"`) || !strings.Contains(string(b), `"workers":2`) {
			t.Errorf("log file: %s", b)
		}
	})
	t.Run("stage error", func(t *testing.T) {
		_, err := run("-z=false", "--LogLevel=error", filepath.Join(dir, "none.json"), gridPath, filepath.Join(dir, "e.asc"))
		if s := gridburn.FailedStage(err); s != gridburn.StageReadVector {
			t.Errorf("stage: have %q (%v)", s, err)
		}
	})
	t.Run("wrong arguments", func(t *testing.T) {
		if _, err := run(vectorPath, gridPath); err == nil {
			t.Error("two arguments should fail")
		}
	})
	t.Run("version", func(t *testing.T) {
		out, err := run("version")
		if err != nil {
			t.Fatal(err)
		}
		if want := "gridburn v" + gridburn.Version + "\n"; out != want {
			t.Errorf("have %q, want %q", out, want)
		}
	})
	t.Run("config", func(t *testing.T) {
		out, err := run("config")
		if err != nil {
			t.Fatal(err)
		}
		for _, line := range []string{"progress-interval = 1000", "workers = 2", `output-format = ""`} {
			if !strings.Contains(out, line) {
				t.Errorf("missing %q in:\n%s", line, out)
			}
		}
		if strings.Contains(out, "config =") {
			t.Errorf("config option should be omitted:\n%s", out)
		}
	})
}
