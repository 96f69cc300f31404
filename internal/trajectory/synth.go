package trajectory

import (
	"math"
	"math/rand"

	"github.com/percept-data/pursuit/internal/geom"
)

// Synthesizer produces plausible random polylines for testing and
// for bootstrapping a trajectory library when no recordings exist.
// Paths are smooth random walks with bounded turning so the moving
// point never doubles back sharply.
type Synthesizer struct {
	rng *rand.Rand

	// Bounds of the drawing area paths are kept inside.
	Width  float64
	Height float64

	// Step length range per segment, in pixels.
	MinStep float64
	MaxStep float64

	// Maximum heading change per segment, in radians.
	MaxTurn float64
}

// NewSynthesizer creates a Synthesizer with screen-sized defaults.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	return &Synthesizer{
		rng:     rng,
		Width:   1280,
		Height:  720,
		MinStep: 20,
		MaxStep: 60,
		MaxTurn: math.Pi / 6,
	}
}

// Path generates one polyline with the given number of points.
func (s *Synthesizer) Path(numPoints int) []geom.Point {
	if numPoints < 2 {
		return nil
	}
	margin := s.MaxStep
	p := geom.Point{
		X: margin + s.rng.Float64()*(s.Width-2*margin),
		Y: margin + s.rng.Float64()*(s.Height-2*margin),
	}
	heading := s.rng.Float64() * 2 * math.Pi

	points := make([]geom.Point, 0, numPoints)
	points = append(points, p)
	for len(points) < numPoints {
		heading += (s.rng.Float64()*2 - 1) * s.MaxTurn
		step := s.MinStep + s.rng.Float64()*(s.MaxStep-s.MinStep)
		next := geom.Point{
			X: p.X + math.Cos(heading)*step,
			Y: p.Y + math.Sin(heading)*step,
		}
		// Bounce off the area edges by reflecting the heading.
		if next.X < margin || next.X > s.Width-margin {
			heading = math.Pi - heading
			continue
		}
		if next.Y < margin || next.Y > s.Height-margin {
			heading = -heading
			continue
		}
		points = append(points, next)
		p = next
	}
	return points
}

// FillLibrary populates lib with perCategory paths for every block
// and category name given.
func (s *Synthesizer) FillLibrary(lib *Library, blocks, categories []string, perCategory, numPoints int) {
	for _, block := range blocks {
		for _, cat := range categories {
			for i := 0; i < perCategory; i++ {
				lib.Add(block, cat, s.Path(numPoints))
			}
		}
	}
}
