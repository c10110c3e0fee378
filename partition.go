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
	"fmt"
	"runtime"
)

// reservedProcs is the number of processors left for coordination and
// progress reporting when the worker count is chosen automatically.
const reservedProcs = 2

// RowBand is the half-open range of grid rows [Start, End).
type RowBand struct {
	Start, End int
}

// Rows returns the number of rows in b.
func (b RowBand) Rows() int { return b.End - b.Start }

// Span returns the range of buffer indices [lo, hi) covered by b in a grid
// with cols columns.
func (b RowBand) Span(cols int) (lo, hi int) {
	return b.Start * cols, b.End * cols
}

func (b RowBand) String() string { return fmt.Sprintf("rows [%d, %d)", b.Start, b.End) }

// SplitRows divides rows into contiguous, ordered bands for the given
// number of workers. When there are at least as many workers as rows,
// each row gets its own band. Otherwise every band has
// ceil(rows/workers) rows except the last, which may be shorter.
func SplitRows(rows, workers int) ([]RowBand, error) {
	if workers <= 0 {
		return nil, ErrNoWorkers
	}
	if rows < 0 {
		return nil, fmt.Errorf("gridburn: cannot split %d rows", rows)
	}
	if rows == 0 {
		return []RowBand{}, nil
	}
	h := 1
	if workers < rows {
		h = (rows + workers - 1) / workers
	}
	bands := make([]RowBand, 0, (rows+h-1)/h)
	for start := 0; start < rows; start += h {
		end := start + h
		if end > rows {
			end = rows
		}
		bands = append(bands, RowBand{Start: start, End: end})
	}
	return bands, nil
}

// WorkerCount returns requested if it is positive. Otherwise it returns
// the number of available processors minus those reserved for
// coordination, and at least 1.
func WorkerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	n := runtime.GOMAXPROCS(0) - reservedProcs
	if n < 1 {
		n = 1
	}
	return n
}
