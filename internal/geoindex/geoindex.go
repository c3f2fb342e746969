// Package geoindex provides an R-tree over film locations for bounding box
// and nearest-neighbour queries.
package geoindex

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-filmloc/internal/service"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// ErrInvalidBBox is returned by ParseBBox for malformed input.
var ErrInvalidBBox = errors.New("invalid bbox")

type item struct {
	pos  int
	loc  service.Location
	rect *rtreego.Rect
}

func (it *item) Bounds() *rtreego.Rect { return it.rect }

// Index is an immutable spatial index. Rtree points are (lon, lat).
type Index struct {
	tree *rtreego.Rtree
	size int
}

// New indexes locs. Query results keep the order of locs.
func New(locs []service.Location) *Index {
	objs := make([]rtreego.Spatial, 0, len(locs))
	for i, l := range locs {
		p := rtreego.Point{l.Longitude, l.Latitude}
		objs = append(objs, &item{pos: i, loc: l, rect: p.ToRect(tolerance)})
	}
	return &Index{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren, objs...),
		size: len(objs),
	}
}

// Len returns the number of indexed locations.
func (x *Index) Len() int { return x.size }

// SearchBox returns the locations inside b, edges included. A bound whose
// Min longitude exceeds its Max longitude wraps the antimeridian.
func (x *Index) SearchBox(b orb.Bound) []service.Location {
	var hits []*item
	if b.Min.Lon() > b.Max.Lon() {
		hits = append(x.search(orb.Bound{Min: b.Min, Max: orb.Point{180, b.Max.Lat()}}),
			x.search(orb.Bound{Min: orb.Point{-180, b.Min.Lat()}, Max: b.Max})...)
	} else {
		hits = x.search(b)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]service.Location, 0, len(hits))
	last := -1
	for _, it := range hits {
		if it.pos == last {
			continue
		}
		last = it.pos
		out = append(out, it.loc)
	}
	return out
}

func (x *Index) search(b orb.Bound) []*item {
	w := b.Max.Lon() - b.Min.Lon()
	h := b.Max.Lat() - b.Min.Lat()
	if w < 0 || h < 0 {
		return nil
	}
	rect, err := rtreego.NewRect(rtreego.Point{b.Min.Lon() - tolerance, b.Min.Lat() - tolerance},
		[]float64{w + 2*tolerance, h + 2*tolerance})
	if err != nil {
		return nil
	}

	var hits []*item
	for _, s := range x.tree.SearchIntersect(rect) {
		it, ok := s.(*item)
		if !ok {
			continue
		}
		if b.Contains(it.loc.Point()) {
			hits = append(hits, it)
		}
	}
	return hits
}

// Nearest returns up to k locations closest to p in coordinate space.
func (x *Index) Nearest(p orb.Point, k int) []service.Location {
	if k <= 0 || x.size == 0 {
		return nil
	}
	var out []service.Location
	for _, s := range x.tree.NearestNeighbors(k, rtreego.Point{p.Lon(), p.Lat()}) {
		if it, ok := s.(*item); ok && it != nil {
			out = append(out, it.loc)
		}
	}
	return out
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("%w: want minLon,minLat,maxLon,maxLat", ErrInvalidBBox)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBBox, p)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min.Lat() > b.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("%w: minLat greater than maxLat", ErrInvalidBBox)
	}
	if b.Min.Lat() < -90 || b.Max.Lat() > 90 || b.Min.Lon() < -180 || b.Max.Lon() > 180 ||
		b.Max.Lon() < -180 || b.Min.Lon() > 180 {
		return orb.Bound{}, fmt.Errorf("%w: out of range", ErrInvalidBBox)
	}
	return b, nil
}
