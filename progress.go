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
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Track identifies one progress counter registered with a Progress.
type Track int

// TrackState is the state of one progress counter.
type TrackState struct {
	Name        string
	Done, Total int
}

// Fraction returns the completed fraction of s, between 0 and 1.
func (s TrackState) Fraction() float64 {
	if s.Total <= 0 {
		return 1
	}
	return float64(s.Done) / float64(s.Total)
}

// A Renderer displays progress. Render is called with the Progress lock
// held, so implementations do not need their own locking and should
// return quickly.
type Renderer interface {
	Render(changed TrackState, all []TrackState)
}

// Progress is a set of progress counters shared by the workers of one run.
// It is safe for concurrent use.
type Progress struct {
	mu     sync.Mutex
	tracks []TrackState
	r      Renderer
}

// resetter is implemented by renderers that keep per-run state.
type resetter interface {
	reset()
}

// NewProgress returns an empty Progress that draws with r.
// If r is nil, nothing is drawn. Any state r kept from an earlier
// Progress is discarded.
func NewProgress(r Renderer) *Progress {
	if r == nil {
		r = NopRenderer{}
	}
	if rs, ok := r.(resetter); ok {
		rs.reset()
	}
	return &Progress{r: r}
}

// Register adds a counter with the given name and total number of units.
func (p *Progress) Register(name string, total int) Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, TrackState{Name: name, Total: total})
	return Track(len(p.tracks) - 1)
}

// Advance moves counter t forward by delta units and redraws.
// Counters never move backward or past their total.
func (p *Progress) Advance(t Track, delta int) {
	if delta <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.tracks[t]
	s.Done += delta
	if s.Done > s.Total {
		s.Done = s.Total
	}
	p.r.Render(*s, p.tracks)
}

// Snapshot returns a copy of the current state of all counters.
func (p *Progress) Snapshot() []TrackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := make([]TrackState, len(p.tracks))
	copy(o, p.tracks)
	return o
}

// NopRenderer draws nothing.
type NopRenderer struct{}

// Render implements Renderer.
func (NopRenderer) Render(TrackState, []TrackState) {}

// LogRenderer writes a log entry each time a counter passes a multiple of
// Step (default 0.1) of its total, and when it completes. A LogRenderer
// may be reused by successive runs but not shared by concurrent ones.
type LogRenderer struct {
	Log  logrus.FieldLogger
	Step float64

	last map[string]int
}

func (l *LogRenderer) reset() { l.last = nil }

// Render implements Renderer.
func (l *LogRenderer) Render(changed TrackState, all []TrackState) {
	step := l.Step
	if step <= 0 {
		step = 0.1
	}
	if l.last == nil {
		l.last = make(map[string]int)
	}
	n := int(math.Round(1 / step))
	bucket := n
	if changed.Total > 0 {
		bucket = changed.Done * n / changed.Total
	}
	if l.last[changed.Name] == bucket {
		return
	}
	l.last[changed.Name] = bucket

	var done, total int
	for _, s := range all {
		done += s.Done
		total += s.Total
	}
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"track":   changed.Name,
		"done":    changed.Done,
		"total":   changed.Total,
		"overall": TrackState{Done: done, Total: total}.Fraction(),
	}).Debugf("%s: %.0f%% complete", changed.Name, changed.Fraction()*100)
}
