// Package spatial provides point-in-polygon and bounding-box queries
// over parsed area polygons.
package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
)

// edgeTolerance is the distance in degrees within which a point is
// treated as lying on a ring segment. On-edge points count as
// contained.
const edgeTolerance = 1e-9

// Rect is an axis-aligned bounding box in (lng, lat) degrees.
type Rect struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

// Contains reports whether the point lies inside or on the rectangle.
func (r Rect) Contains(lng, lat float64) bool {
	return lng >= r.MinLng-edgeTolerance && lng <= r.MaxLng+edgeTolerance &&
		lat >= r.MinLat-edgeTolerance && lat <= r.MaxLat+edgeTolerance
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() (lng, lat float64) {
	return (r.MinLng + r.MaxLng) / 2, (r.MinLat + r.MaxLat) / 2
}

// BoundingBox computes the polygon's bounding rectangle from its outer
// ring.
func BoundingBox(p *geom.Polygon) Rect {
	b := p.Bounds()
	return Rect{
		MinLng: b.Min(0),
		MinLat: b.Min(1),
		MaxLng: b.Max(0),
		MaxLat: b.Max(1),
	}
}

// Contains reports whether the point lies inside the polygon. Holes
// exclude; points on any ring edge, outer or hole, are contained.
func Contains(p *geom.Polygon, lng, lat float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}

	// Cheap reject before the per-segment tests.
	if !BoundingBox(p).Contains(lng, lat) {
		return false
	}

	outer := p.LinearRing(0)
	if onRing(outer, lng, lat) {
		return true
	}
	if !inRing(outer, lng, lat) {
		return false
	}

	for i := 1; i < p.NumLinearRings(); i++ {
		hole := p.LinearRing(i)
		if onRing(hole, lng, lat) {
			return true
		}
		if inRing(hole, lng, lat) {
			return false
		}
	}
	return true
}

// Centroid returns the area-weighted centroid of the polygon's outer
// ring, falling back to the bounding-box center for degenerate rings.
func Centroid(p *geom.Polygon) (lng, lat float64) {
	ring := p.LinearRing(0)
	n := ring.NumCoords()

	var area, cx, cy float64
	for i := 0; i < n-1; i++ {
		a := ring.Coord(i)
		b := ring.Coord(i + 1)
		cross := a[0]*b[1] - b[0]*a[1]
		area += cross
		cx += (a[0] + b[0]) * cross
		cy += (a[1] + b[1]) * cross
	}
	if math.Abs(area) < 1e-12 {
		return BoundingBox(p).Center()
	}
	area /= 2
	return cx / (6 * area), cy / (6 * area)
}

// inRing is the even-odd ray casting test against a single ring.
func inRing(ring *geom.LinearRing, lng, lat float64) bool {
	inside := false
	n := ring.NumCoords()
	for i := 0; i < n-1; i++ {
		a := ring.Coord(i)
		b := ring.Coord(i + 1)
		if (a[1] > lat) != (b[1] > lat) {
			x := a[0] + (lat-a[1])/(b[1]-a[1])*(b[0]-a[0])
			if lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

// onRing reports whether the point lies within edgeTolerance of any
// ring segment.
func onRing(ring *geom.LinearRing, lng, lat float64) bool {
	n := ring.NumCoords()
	for i := 0; i < n-1; i++ {
		a := ring.Coord(i)
		b := ring.Coord(i + 1)
		if segmentDistance(a[0], a[1], b[0], b[1], lng, lat) <= edgeTolerance {
			return true
		}
	}
	return false
}

// segmentDistance returns the distance from (px, py) to segment
// (ax, ay)-(bx, by).
func segmentDistance(ax, ay, bx, by, px, py float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
