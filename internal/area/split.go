package area

import "math"

const (
	// maxSplitDepth bounds the bisection recursion.
	maxSplitDepth = 12
	// simplifyTolerance is the Douglas-Peucker tolerance in degrees.
	simplifyTolerance = 1e-4
)

// reduceRing brings a closed flat XY ring under maxPoints, returning one
// or more closed rings. Oversized rings are split along the longer
// bounding-box axis into sub-rings that together preserve coverage,
// recursing until every ring fits. Rings that refuse to split are
// simplified, then stride-decimated as the last resort.
func reduceRing(flat []float64, maxPoints int) [][]float64 {
	return splitRing(flat, maxPoints, 0)
}

func splitRing(flat []float64, maxPoints, depth int) [][]float64 {
	if maxPoints < 4 || len(flat)/2 <= maxPoints {
		return [][]float64{flat}
	}

	if depth < maxSplitDepth {
		if halves := bisectRing(flat); halves != nil {
			var out [][]float64
			for _, h := range halves {
				out = append(out, splitRing(h, maxPoints, depth+1)...)
			}
			return out
		}
	}

	if simplified := simplifyRing(flat, simplifyTolerance); len(simplified)/2 <= maxPoints {
		return [][]float64{simplified}
	}
	return [][]float64{decimateRing(flat, maxPoints)}
}

// bisectRing splits a ring across the midline of its longer bounding-box
// axis. It returns nil when the split makes no progress so the caller
// can fall back.
func bisectRing(flat []float64) [][]float64 {
	minX, minY := flat[0], flat[1]
	maxX, maxY := flat[0], flat[1]
	for i := 2; i < len(flat); i += 2 {
		minX = math.Min(minX, flat[i])
		maxX = math.Max(maxX, flat[i])
		minY = math.Min(minY, flat[i+1])
		maxY = math.Max(maxY, flat[i+1])
	}

	axis := 0
	limit := (minX + maxX) / 2
	if maxY-minY > maxX-minX {
		axis = 1
		limit = (minY + maxY) / 2
	}

	var halves [][]float64
	for _, keepBelow := range []bool{true, false} {
		half := closeRing(clipRing(flat, axis, limit, keepBelow))
		if len(half) < 8 || math.Abs(ringArea(half)) < minRingArea {
			continue
		}
		if len(half) >= len(flat) {
			// Clipping added more crossing vertices than it removed.
			return nil
		}
		halves = append(halves, half)
	}
	if len(halves) == 0 {
		return nil
	}
	return halves
}

// clipRing keeps the part of a closed ring on one side of an
// axis-aligned line (Sutherland-Hodgman against a half-plane). The
// returned ring is open; callers close it.
func clipRing(flat []float64, axis int, limit float64, keepBelow bool) []float64 {
	inside := func(x, y float64) bool {
		v := x
		if axis == 1 {
			v = y
		}
		if keepBelow {
			return v <= limit
		}
		return v >= limit
	}
	cross := func(x1, y1, x2, y2 float64) (float64, float64) {
		if axis == 0 {
			t := (limit - x1) / (x2 - x1)
			return limit, y1 + t*(y2-y1)
		}
		t := (limit - y1) / (y2 - y1)
		return x1 + t*(x2-x1), limit
	}

	n := len(flat)/2 - 1 // the closing point duplicates the first
	var out []float64
	for i := 0; i < n; i++ {
		x1, y1 := flat[2*i], flat[2*i+1]
		j := (i + 1) % n
		x2, y2 := flat[2*j], flat[2*j+1]

		in1, in2 := inside(x1, y1), inside(x2, y2)
		switch {
		case in1 && in2:
			out = append(out, x2, y2)
		case in1 && !in2:
			cx, cy := cross(x1, y1, x2, y2)
			out = append(out, cx, cy)
		case !in1 && in2:
			cx, cy := cross(x1, y1, x2, y2)
			out = append(out, cx, cy, x2, y2)
		}
	}
	return out
}

// simplifyRing runs Douglas-Peucker over a closed ring, keeping the
// endpoints and every vertex farther than tolerance from its chord.
func simplifyRing(flat []float64, tolerance float64) []float64 {
	n := len(flat) / 2
	if n <= 4 {
		return flat
	}
	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true
	douglasPeucker(flat, 0, n-1, tolerance, keep)

	out := make([]float64, 0, len(flat))
	for i := 0; i < n; i++ {
		if keep[i] {
			out = append(out, flat[2*i], flat[2*i+1])
		}
	}
	return closeRing(out)
}

func douglasPeucker(flat []float64, first, last int, tolerance float64, keep []bool) {
	if last <= first+1 {
		return
	}
	ax, ay := flat[2*first], flat[2*first+1]
	bx, by := flat[2*last], flat[2*last+1]

	maxDist := 0.0
	maxIdx := -1
	for i := first + 1; i < last; i++ {
		if d := pointSegDistance(ax, ay, bx, by, flat[2*i], flat[2*i+1]); d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}
	if maxDist <= tolerance {
		return
	}
	keep[maxIdx] = true
	douglasPeucker(flat, first, maxIdx, tolerance, keep)
	douglasPeucker(flat, maxIdx, last, tolerance, keep)
}

// pointSegDistance returns the distance from (px, py) to segment
// (ax, ay)-(bx, by).
func pointSegDistance(ax, ay, bx, by, px, py float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// decimateRing reduces a closed flat XY ring to at most maxPoints
// points by sampling at a fixed stride, always keeping the first point
// and re-closing the ring.
func decimateRing(flat []float64, maxPoints int) []float64 {
	n := len(flat) / 2
	if maxPoints < 4 || n <= maxPoints {
		return flat
	}

	// Leave room for the closing point.
	keep := maxPoints - 1
	out := make([]float64, 0, 2*maxPoints)
	for i := 0; i < keep; i++ {
		j := i * (n - 1) / keep
		out = append(out, flat[2*j], flat[2*j+1])
	}
	out = append(out, out[0], out[1])
	return out
}
