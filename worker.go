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

// worker rasterizes one row band. It owns data; pred and progress are
// shared with the other workers of the run.
type worker struct {
	band RowBand
	data []float64
	cols int
	t    Transform

	pred     Predicate
	burn     float64
	zero     bool
	record   bool
	interval int

	progress *Progress
	track    Track
}

// run applies the burn policy to every cell of the band in row-major order.
func (w *worker) run() BandResult {
	res := BandResult{Band: w.band, Data: w.data}
	offset, _ := w.band.Span(w.cols)
	var pending int
	i := 0
	for row := w.band.Start; row < w.band.End; row++ {
		for col := 0; col < w.cols; col++ {
			fp := Footprint(CellCenter(row, col, w.t), w.t.XRes)
			switch {
			case w.pred.Intersects(fp):
				w.data[i] = w.burn
				res.Burned++
				if w.record {
					res.Hits = append(res.Hits, offset+i)
				}
			case w.zero:
				w.data[i] = 0
				res.Zeroed++
			}
			i++
			pending++
			if pending == w.interval {
				w.progress.Advance(w.track, pending)
				pending = 0
			}
		}
	}
	w.progress.Advance(w.track, pending)
	return res
}

// workerPanic carries a value recovered from a panicking worker.
type workerPanic struct {
	band  RowBand
	value interface{}
}
