// Package trajectory holds pre-recorded motion paths and the library
// that groups them by block and condition category.
package trajectory

import (
	"github.com/percept-data/pursuit/internal/geom"
)

// FrameRate is the presentation rate trajectories are recorded
// against. Speeds are expressed in pixels per frame at this rate.
const FrameRate = 60.0

// Trajectory is an immutable ordered polyline. A trajectory with
// fewer than two points is empty and has no motion semantics.
type Trajectory struct {
	points  []geom.Point
	lengths []float64
	total   float64
}

// New constructs a Trajectory from an ordered point list. The points
// are copied so callers cannot mutate the trajectory afterwards.
func New(points []geom.Point) *Trajectory {
	t := &Trajectory{points: make([]geom.Point, len(points))}
	copy(t.points, points)
	t.lengths = geom.SegmentLengths(t.points)
	for _, l := range t.lengths {
		t.total += l
	}
	return t
}

// IsEmpty reports whether the trajectory has no motion semantics.
func (t *Trajectory) IsEmpty() bool {
	return len(t.points) < 2
}

// NumPoints returns the number of points in the polyline.
func (t *Trajectory) NumPoints() int {
	return len(t.points)
}

// NumSegments returns the number of segments in the polyline.
func (t *Trajectory) NumSegments() int {
	return len(t.lengths)
}

// Point returns the i'th point of the polyline.
func (t *Trajectory) Point(i int) geom.Point {
	return t.points[i]
}

// Points returns a copy of the polyline's points.
func (t *Trajectory) Points() []geom.Point {
	out := make([]geom.Point, len(t.points))
	copy(out, t.points)
	return out
}

// SegmentLength returns the length of segment i.
func (t *Trajectory) SegmentLength(i int) float64 {
	return t.lengths[i]
}

// SegmentLengths returns a copy of the per-segment lengths.
func (t *Trajectory) SegmentLengths() []float64 {
	out := make([]float64, len(t.lengths))
	copy(out, t.lengths)
	return out
}

// TotalLength returns the arc length of the trajectory.
func (t *Trajectory) TotalLength() float64 {
	return t.total
}

// Duration returns the time in milliseconds a point takes to traverse
// the trajectory at the given speed in pixels per frame. Degenerate
// trajectories and non-positive speeds yield 0.
func (t *Trajectory) Duration(speed float64) float64 {
	if t.IsEmpty() || speed <= 0 {
		return 0
	}
	frames := t.total / speed
	return frames / FrameRate * 1000.0
}

// Locate resolves a fractional arc-length offset into a segment index
// and progress within that segment.
func (t *Trajectory) Locate(fraction float64) geom.ArcPosition {
	return geom.LocateArc(t.lengths, fraction*t.total)
}
