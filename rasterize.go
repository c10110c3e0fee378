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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// DefaultProgressInterval is the number of cells a worker processes
// between progress reports.
const DefaultProgressInterval = 1000

// Options control a rasterization run.
type Options struct {
	// BurnValue is written to every cell whose footprint intersects
	// the shape.
	BurnValue float64

	// SetZero causes cells that do not intersect the shape to be set to 0.
	// Otherwise they keep their input value.
	SetZero bool

	// Workers is the number of concurrent workers. If it is 0, the
	// number is chosen with WorkerCount.
	Workers int

	// Predicate selects the intersection test. The default is Inclusive.
	Predicate PredicateMode

	// ProgressInterval is the number of cells between progress reports.
	// If it is 0, DefaultProgressInterval is used.
	ProgressInterval int

	// Renderer draws progress. If it is nil, a LogRenderer writing
	// to Log is used.
	Renderer Renderer

	// RecordHits causes the burned cells to be listed in the Summary.
	RecordHits bool

	// Log receives status messages. If it is nil, the standard
	// logrus logger is used.
	Log logrus.FieldLogger
}

// Summary describes a completed rasterization run.
type Summary struct {
	Rows, Cols int
	Bands      int
	Workers    int

	Burned, Zeroed, Unchanged int

	Duration time.Duration

	// Hits lists the burned cells in row-major order when
	// Options.RecordHits is set.
	Hits []Cell
}

// Fields returns s in a form suitable for structured logging.
func (s *Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"rows":      s.Rows,
		"cols":      s.Cols,
		"bands":     s.Bands,
		"workers":   s.Workers,
		"burned":    s.Burned,
		"zeroed":    s.Zeroed,
		"unchanged": s.Unchanged,
		"duration":  s.Duration,
	}
}

// run holds the state of one call to Rasterize.
type run struct {
	ctx   context.Context
	in    *Grid
	shape geom.Geom
	o     Options
	log   logrus.FieldLogger

	pred     Predicate
	workers  int
	bands    []RowBand
	progress *Progress
	parts    []BandResult

	out     *Grid
	summary Summary
}

// step is one stage of a rasterization run.
type step func(r *run) error

// Rasterize sets each cell of g whose footprint intersects shape to
// o.BurnValue, and, if o.SetZero is true, every other cell to 0.
// The grid is split into row bands that are processed concurrently.
// The result is a new Grid with the metadata of g; g itself is not
// modified. ctx is only checked before the workers start.
//
// A panic in any worker is re-raised in the calling goroutine after all
// workers have stopped.
func Rasterize(ctx context.Context, g *Grid, shape geom.Geom, o Options) (*Grid, *Summary, error) {
	start := time.Now()
	r := &run{ctx: ctx, in: g, shape: shape, o: o, log: o.Log}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	for _, s := range []step{
		validateGrid(),
		buildPredicate(),
		partitionRows(),
		dispatchWorkers(),
		assembleResult(),
	} {
		if err := s(r); err != nil {
			return nil, nil, StageErr(StageRasterize, "", err)
		}
	}
	r.summary.Duration = time.Since(start)
	r.log.WithFields(r.summary.Fields()).Info("rasterization complete")
	return r.out, &r.summary, nil
}

func validateGrid() step {
	return func(r *run) error {
		if r.in == nil {
			return fmt.Errorf("gridburn: nil grid")
		}
		if r.o.ProgressInterval < 0 {
			return fmt.Errorf("gridburn: progress interval must not be negative; got %d", r.o.ProgressInterval)
		}
		if r.o.Workers < 0 {
			return fmt.Errorf("%w: got %d", ErrNoWorkers, r.o.Workers)
		}
		return r.in.Validate()
	}
}

func buildPredicate() step {
	return func(r *run) error {
		var err error
		r.pred, err = NewPredicate(r.shape, r.o.Predicate)
		return err
	}
}

func partitionRows() step {
	return func(r *run) error {
		r.workers = WorkerCount(r.o.Workers)
		var err error
		r.bands, err = SplitRows(r.in.Rows, r.workers)
		if err != nil {
			return err
		}
		r.summary.Rows, r.summary.Cols = r.in.Rows, r.in.Cols
		r.summary.Bands, r.summary.Workers = len(r.bands), r.workers
		r.log.WithFields(logrus.Fields{
			"rows":      r.in.Rows,
			"cols":      r.in.Cols,
			"bands":     len(r.bands),
			"workers":   r.workers,
			"predicate": r.o.Predicate,
		}).Debug("partitioned grid")
		return nil
	}
}

// dispatchWorkers runs one goroutine per band and waits for all of them.
func dispatchWorkers() step {
	return func(r *run) error {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		renderer := r.o.Renderer
		if renderer == nil {
			renderer = &LogRenderer{Log: r.log}
		}
		r.progress = NewProgress(renderer)
		interval := r.o.ProgressInterval
		if interval == 0 {
			interval = DefaultProgressInterval
		}

		results := make(chan BandResult, len(r.bands))
		panics := make(chan workerPanic, len(r.bands))
		var wg sync.WaitGroup
		wg.Add(len(r.bands))
		for _, b := range r.bands {
			lo, hi := b.Span(r.in.Cols)
			data := make([]float64, hi-lo)
			copy(data, r.in.Data[lo:hi])
			w := &worker{
				band:     b,
				data:     data,
				cols:     r.in.Cols,
				t:        r.in.Transform,
				pred:     r.pred,
				burn:     r.o.BurnValue,
				zero:     r.o.SetZero,
				record:   r.o.RecordHits,
				interval: interval,
				progress: r.progress,
				track:    r.progress.Register(b.String(), b.Rows()*r.in.Cols),
			}
			go func(w *worker) {
				defer wg.Done()
				defer func() {
					if v := recover(); v != nil {
						panics <- workerPanic{band: w.band, value: v}
					}
				}()
				results <- w.run()
			}(w)
		}
		wg.Wait()
		close(results)
		close(panics)

		if p, ok := <-panics; ok {
			panic(fmt.Sprintf("gridburn: worker for %v panicked: %v", p.band, p.value))
		}
		for res := range results {
			r.parts = append(r.parts, res)
		}
		return nil
	}
}

func assembleResult() step {
	return func(r *run) error {
		data, err := Assemble(r.in.Rows, r.in.Cols, r.parts)
		if err != nil {
			return err
		}
		r.out = r.in.withData(data)
		for _, p := range r.parts {
			r.summary.Burned += p.Burned
			r.summary.Zeroed += p.Zeroed
		}
		r.summary.Unchanged = len(data) - r.summary.Burned - r.summary.Zeroed
		if r.o.RecordHits {
			hits := assembleHits(r.parts)
			r.summary.Hits = make([]Cell, len(hits))
			for i, h := range hits {
				r.summary.Hits[i] = r.out.cellAt(h)
			}
		}
		return nil
	}
}
