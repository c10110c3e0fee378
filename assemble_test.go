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
	"reflect"
	"testing"
)

func TestAssemble(t *testing.T) {
	parts := []BandResult{
		{Band: RowBand{2, 3}, Data: []float64{5, 6}, Hits: []int{5}},
		{Band: RowBand{0, 1}, Data: []float64{1, 2}, Hits: []int{0, 1}},
		{Band: RowBand{1, 2}, Data: []float64{3, 4}},
	}
	have, err := Assemble(3, 2, parts)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if parts[0].Band.Start != 2 {
		t.Error("input order was changed")
	}
	if hits := assembleHits(parts); !reflect.DeepEqual(hits, []int{0, 1, 5}) {
		t.Errorf("hits: have %v", hits)
	}
}

func TestAssembleErrors(t *testing.T) {
	for _, test := range []struct {
		name  string
		rows  int
		parts []BandResult
		is    error
	}{
		{
			name:  "gap",
			rows:  3,
			parts: []BandResult{{Band: RowBand{0, 1}, Data: []float64{1}}, {Band: RowBand{2, 3}, Data: []float64{1}}},
		},
		{
			name:  "overlap",
			rows:  2,
			parts: []BandResult{{Band: RowBand{0, 2}, Data: []float64{1, 2}}, {Band: RowBand{1, 2}, Data: []float64{1}}},
		},
		{
			name:  "short",
			rows:  3,
			parts: []BandResult{{Band: RowBand{0, 2}, Data: []float64{1, 2}}},
		},
		{
			name:  "wrong length",
			rows:  1,
			parts: []BandResult{{Band: RowBand{0, 1}, Data: []float64{1, 2}}},
			is:    ErrBufferLength,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := Assemble(test.rows, 1, test.parts)
			if err == nil {
				t.Fatal("expected an error")
			}
			if test.is != nil && !errors.Is(err, test.is) {
				t.Errorf("have %v, want %v", err, test.is)
			}
		})
	}
}

func TestAssembleEmpty(t *testing.T) {
	have, err := Assemble(0, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 0 {
		t.Errorf("have %v", have)
	}
}
