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
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// PredicateMode selects how cell footprints are tested against the shape.
type PredicateMode int

const (
	// Inclusive counts any shared point, including a shared edge or
	// corner, as an intersection.
	Inclusive PredicateMode = iota

	// Strict requires the footprint interior to overlap the shape:
	// a positive-area overlap for polygons, a line running through
	// the footprint interior, or a point strictly inside it.
	Strict
)

func (m PredicateMode) String() string {
	switch m {
	case Inclusive:
		return "intersects"
	case Strict:
		return "overlaps"
	default:
		return fmt.Sprintf("PredicateMode(%d)", int(m))
	}
}

// ParsePredicateMode converts a configuration value into a PredicateMode.
// The empty string selects Inclusive.
func ParsePredicateMode(s string) (PredicateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intersects", "inclusive":
		return Inclusive, nil
	case "overlaps", "strict":
		return Strict, nil
	default:
		return Inclusive, fmt.Errorf("gridburn: unknown predicate %q; valid options are 'intersects' and 'overlaps'", s)
	}
}

// A Predicate decides whether a cell footprint intersects a shape.
// Implementations must be safe for concurrent use.
type Predicate interface {
	Intersects(footprint geom.Polygon) bool
}

// Items stored in the shape index. Polygon rings and lines are stored as
// individual segments so that each footprint only looks at nearby edges.
type (
	pointItem   struct{ geom.Point }
	segmentItem struct{ geom.LineString }
	polygonItem struct{ geom.Polygon }
)

// shapeIndex is the default Predicate. The index is only read after
// construction, so one instance can be shared among workers.
type shapeIndex struct {
	mode PredicateMode
	tree *rtree.Rtree
	n    int
}

// NewPredicate returns a Predicate for g. Points, lines, polygons, their
// multi-part variants, and geometry collections are supported. An empty
// geometry intersects nothing. Only the bounds of the footprints passed to
// the returned Predicate are used, so they must be axis-aligned rectangles.
func NewPredicate(g geom.Geom, mode PredicateMode) (Predicate, error) {
	if mode != Inclusive && mode != Strict {
		return nil, fmt.Errorf("gridburn: invalid predicate mode %v", mode)
	}
	s := &shapeIndex{mode: mode, tree: rtree.NewTree(25, 50)}
	if err := s.add(g); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shapeIndex) insert(item geom.Geom) {
	s.tree.Insert(item)
	s.n++
}

func (s *shapeIndex) add(g geom.Geom) error {
	switch t := g.(type) {
	case nil:
	case geom.Point:
		s.insert(&pointItem{t})
	case *geom.Point:
		if t != nil {
			s.insert(&pointItem{*t})
		}
	case geom.MultiPoint:
		for _, p := range t {
			s.insert(&pointItem{p})
		}
	case geom.LineString:
		s.addPath(t, false)
	case geom.MultiLineString:
		for _, l := range t {
			s.addPath(l, false)
		}
	case geom.Polygon:
		s.addPolygon(t)
	case geom.MultiPolygon:
		for _, p := range t {
			s.addPolygon(p)
		}
	case geom.GeometryCollection:
		for _, gg := range t {
			if err := s.add(gg); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("gridburn: unsupported geometry type %T", g)
	}
	return nil
}

// addPath adds the segments of path. If closed is true, a segment joining
// the last point to the first is added when the path is not already closed.
func (s *shapeIndex) addPath(path []geom.Point, closed bool) {
	switch len(path) {
	case 0:
		return
	case 1:
		s.insert(&pointItem{path[0]})
		return
	}
	for i := 1; i < len(path); i++ {
		s.insert(&segmentItem{geom.LineString{path[i-1], path[i]}})
	}
	if closed && !path[len(path)-1].Equals(path[0]) {
		s.insert(&segmentItem{geom.LineString{path[len(path)-1], path[0]}})
	}
}

func (s *shapeIndex) addPolygon(p geom.Polygon) {
	var area bool
	for _, ring := range p {
		s.addPath(ring, true)
		if len(ring) >= 3 {
			area = true
		}
	}
	if area {
		s.insert(&polygonItem{p})
	}
}

// Intersects implements Predicate.
func (s *shapeIndex) Intersects(footprint geom.Polygon) bool {
	if s.n == 0 {
		return false
	}
	box := footprint.Bounds()
	pad := (box.Max.X - box.Min.X) * 1e-9
	query := &geom.Bounds{
		Min: geom.Point{X: box.Min.X - pad, Y: box.Min.Y - pad},
		Max: geom.Point{X: box.Max.X + pad, Y: box.Max.Y + pad},
	}
	candidates := s.tree.SearchIntersect(query)

	// Any point or edge touching the footprint settles the question.
	var polys bool
	for _, c := range candidates {
		switch it := c.(type) {
		case *pointItem:
			if s.pointHits(it.Point, box) {
				return true
			}
		case *segmentItem:
			if s.segmentHits(it.LineString[0], it.LineString[1], box) {
				return true
			}
		case *polygonItem:
			polys = true
		}
	}
	if !polys {
		return false
	}

	// No polygon edge reaches the footprint, so the footprint is either
	// entirely inside or entirely outside each polygon and its center
	// decides.
	center := geom.Point{X: (box.Min.X + box.Max.X) / 2, Y: (box.Min.Y + box.Max.Y) / 2}
	for _, c := range candidates {
		it, ok := c.(*polygonItem)
		if !ok {
			continue
		}
		switch center.Within(it.Polygon) {
		case geom.Inside:
			return true
		case geom.OnEdge:
			if s.mode == Inclusive {
				return true
			}
		}
	}
	return false
}

func (s *shapeIndex) pointHits(p geom.Point, box *geom.Bounds) bool {
	if s.mode == Strict {
		return strictlyInside(p, box)
	}
	return p.X >= box.Min.X && p.X <= box.Max.X && p.Y >= box.Min.Y && p.Y <= box.Max.Y
}

func (s *shapeIndex) segmentHits(a, b geom.Point, box *geom.Bounds) bool {
	t0, t1, ok := clipSegment(a, b, box)
	if !ok {
		return false
	}
	if s.mode == Inclusive {
		return true
	}
	// A chord of a rectangle either lies along one of its edges or
	// passes through its interior, so checking the midpoint suffices.
	if !(t1 > t0) {
		return false
	}
	tm := (t0 + t1) / 2
	mid := geom.Point{X: a.X + tm*(b.X-a.X), Y: a.Y + tm*(b.Y-a.Y)}
	return strictlyInside(mid, box)
}

func strictlyInside(p geom.Point, box *geom.Bounds) bool {
	return p.X > box.Min.X && p.X < box.Max.X && p.Y > box.Min.Y && p.Y < box.Max.Y
}

// clipSegment clips the segment a→b to the closed rectangle box using
// the Liang–Barsky algorithm. It returns the parametric interval
// [t0, t1] of the segment inside box, and false if no part of the
// segment is inside.
func clipSegment(a, b geom.Point, box *geom.Bounds) (t0, t1 float64, ok bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	t0, t1 = 0, 1
	edges := [4][2]float64{
		{-dx, a.X - box.Min.X},
		{dx, box.Max.X - a.X},
		{-dy, a.Y - box.Min.Y},
		{dy, box.Max.Y - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return 0, 0, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	return t0, t1, true
}
