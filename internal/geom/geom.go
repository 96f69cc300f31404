// Package geom provides the small amount of 2D polyline math the
// motion simulator needs: segment lengths, arc-length walks, and
// linear interpolation along a segment.
package geom

import "math"

// Point is a 2D position in screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Lerp returns the point a fraction t of the way from a to b.
// t is not clamped; callers keep it in [0,1].
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// SegmentLengths returns the length of each segment of the polyline.
// A polyline with fewer than two points has no segments.
func SegmentLengths(points []Point) []float64 {
	if len(points) < 2 {
		return nil
	}
	lengths := make([]float64, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		lengths[i] = Dist(points[i], points[i+1])
	}
	return lengths
}

// TotalLength returns the arc length of the polyline.
func TotalLength(points []Point) float64 {
	var total float64
	for _, l := range SegmentLengths(points) {
		total += l
	}
	return total
}

// ArcPosition identifies a point on a polyline by segment index and
// fractional progress within that segment.
type ArcPosition struct {
	Segment  int
	Progress float64
}

// Before reports whether p lies strictly before q along the polyline.
func (p ArcPosition) Before(q ArcPosition) bool {
	if p.Segment != q.Segment {
		return p.Segment < q.Segment
	}
	return p.Progress < q.Progress
}

// LocateArc walks the polyline's segments until the accumulated
// length reaches target and returns the position there. A target at
// or past the end of the polyline resolves to the final point of the
// last segment; a target <= 0 resolves to the start.
func LocateArc(lengths []float64, target float64) ArcPosition {
	if len(lengths) == 0 {
		return ArcPosition{}
	}
	if target <= 0 {
		return ArcPosition{Segment: 0, Progress: 0}
	}
	var walked float64
	for i, l := range lengths {
		if l > 0 && target <= walked+l {
			return ArcPosition{Segment: i, Progress: (target - walked) / l}
		}
		walked += l
	}
	return ArcPosition{Segment: len(lengths) - 1, Progress: 1.0}
}
