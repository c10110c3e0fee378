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
	"sort"
)

// BandResult is the output of one worker.
type BandResult struct {
	Band RowBand

	// Data holds the band's cells in row-major order.
	Data []float64

	// Burned and Zeroed count the cells set to the burn value and to zero.
	Burned, Zeroed int

	// Hits holds the grid-wide indices of the burned cells, in order,
	// when hit recording is enabled.
	Hits []int
}

// Assemble joins band results into one row-major buffer of rows×cols
// values. The order of parts does not matter; bands are placed by their
// starting row. The bands must cover [0, rows) exactly.
func Assemble(rows, cols int, parts []BandResult) ([]float64, error) {
	sorted := make([]BandResult, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Band.Start < sorted[j].Band.Start })

	out := make([]float64, 0, rows*cols)
	next := 0
	for _, p := range sorted {
		if p.Band.Start != next {
			return nil, fmt.Errorf("gridburn: assembling bands: expected band starting at row %d, got %v", next, p.Band)
		}
		if p.Band.End < p.Band.Start {
			return nil, fmt.Errorf("gridburn: assembling bands: invalid band %v", p.Band)
		}
		if want := p.Band.Rows() * cols; len(p.Data) != want {
			return nil, fmt.Errorf("%w: band %v has %d values; want %d", ErrBufferLength, p.Band, len(p.Data), want)
		}
		out = append(out, p.Data...)
		next = p.Band.End
	}
	if next != rows {
		return nil, fmt.Errorf("gridburn: assembling bands: bands end at row %d of %d", next, rows)
	}
	return out, nil
}

// assembleHits joins the recorded hits of parts in grid order.
func assembleHits(parts []BandResult) []int {
	sorted := make([]BandResult, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Band.Start < sorted[j].Band.Start })
	var n int
	for _, p := range sorted {
		n += len(p.Hits)
	}
	if n == 0 {
		return nil
	}
	hits := make([]int, 0, n)
	for _, p := range sorted {
		hits = append(hits, p.Hits...)
	}
	return hits
}
