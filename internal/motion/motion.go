// Package motion simulates a point traversing a trajectory at a
// fixed speed, including the occlusion windows that temporarily hide
// it from the participant.
package motion

import (
	"time"

	"github.com/percept-data/pursuit/internal/geom"
	"github.com/percept-data/pursuit/internal/monitoring"
	"github.com/percept-data/pursuit/internal/timeutil"
	"github.com/percept-data/pursuit/internal/trajectory"
)

// OcclusionMode selects how the hidden window is resolved.
type OcclusionMode string

const (
	// OcclusionRange hides the point while its arc position lies
	// inside a window derived from fractional arc-length offsets.
	OcclusionRange OcclusionMode = "range"

	// OcclusionTimed hides the point once a fixed delay has elapsed
	// after StartMovement, until the trajectory completes.
	OcclusionTimed OcclusionMode = "timed"
)

// Config carries the motion and occlusion parameters for one trial.
type Config struct {
	// Speed in pixels per frame at the 60 Hz presentation rate.
	Speed float64

	OcclusionEnabled bool
	OcclusionMode    OcclusionMode

	// Fractional arc-length window for range mode.
	OcclusionStart float64
	OcclusionEnd   float64

	// Hide delay for timed mode.
	OcclusionDelay time.Duration

	// Pause after the trajectory completes before the trial may
	// advance, so the participant sees a stable final frame.
	SettleDelay time.Duration
}

// DefaultConfig returns motion parameters with the calibrated
// defaults: slow speed, occlusion off, the second half of the path
// as the range window, 500 ms timed delay, 900 ms settle.
func DefaultConfig() Config {
	return Config{
		Speed:          2.0,
		OcclusionMode:  OcclusionRange,
		OcclusionStart: 0.5,
		OcclusionEnd:   1.0,
		OcclusionDelay: 500 * time.Millisecond,
		SettleDelay:    900 * time.Millisecond,
	}
}

// MovingPoint steps a point along a trajectory and tracks its
// visibility. All elapsed-time decisions go through the injected
// clock so tests can advance time manually.
type MovingPoint struct {
	clock timeutil.Clock
	cfg   Config
	traj  *trajectory.Trajectory

	segment  int
	progress float64
	position geom.Point

	moving        bool
	started       bool
	finished      bool
	stoppedByUser bool

	visible         bool
	occlusionActive bool
	windowStart     geom.ArcPosition
	windowEnd       geom.ArcPosition

	movementStart time.Time
	finishedAt    time.Time
}

// NewMovingPoint creates a MovingPoint with no trajectory assigned.
// Call Reset before starting movement.
func NewMovingPoint(clock timeutil.Clock, cfg Config) *MovingPoint {
	return &MovingPoint{
		clock:   clock,
		cfg:     cfg,
		traj:    trajectory.New(nil),
		visible: true,
	}
}

// Reset reinitializes all motion and occlusion state for a new
// trajectory: segment 0, progress 0, visible, not finished. The
// range-mode window endpoints are resolved here, once.
func (m *MovingPoint) Reset(traj *trajectory.Trajectory, cfg Config) {
	m.cfg = cfg
	m.traj = traj
	m.segment = 0
	m.progress = 0
	m.moving = false
	m.started = false
	m.finished = false
	m.stoppedByUser = false
	m.visible = true
	m.occlusionActive = false
	if !traj.IsEmpty() {
		m.position = traj.Point(0)
		m.windowStart = traj.Locate(cfg.OcclusionStart)
		m.windowEnd = traj.Locate(cfg.OcclusionEnd)
	} else {
		m.position = geom.Point{}
	}
}

// StartMovement begins traversal and starts the timed-occlusion
// countdown. Starting an empty trajectory completes immediately.
func (m *MovingPoint) StartMovement() {
	if m.finished || m.moving {
		return
	}
	m.started = true
	m.movementStart = m.clock.Now()
	if m.traj.IsEmpty() {
		monitoring.Logf("motion: starting empty trajectory, finishing immediately")
		m.finish()
		return
	}
	m.moving = true
}

// Advance steps the point forward by the given number of frames.
// Progress past a segment boundary carries into the next segment so
// the point's path stays continuous. Reaching the end of the last
// segment finishes the traversal, freezes the position at the final
// point, and forces visibility on.
func (m *MovingPoint) Advance(frames float64) {
	if !m.moving || m.finished || frames <= 0 || m.cfg.Speed <= 0 {
		return
	}

	segLen := m.traj.SegmentLength(m.segment)
	if segLen <= 0 {
		m.finish()
		return
	}
	m.progress += m.cfg.Speed * frames / segLen

	// Tolerance absorbs the rounding drift of accumulating
	// speed/segLen increments, so a traversal that arithmetically
	// ends on frame N does not spill into frame N+1.
	const boundaryEps = 1e-9

	for m.progress >= 1.0-boundaryEps {
		overshoot := (m.progress - 1.0) * segLen
		if overshoot < 0 {
			overshoot = 0
		}
		if m.segment >= m.traj.NumSegments()-1 {
			m.finish()
			return
		}
		m.segment++
		segLen = m.traj.SegmentLength(m.segment)
		if segLen <= 0 {
			// Zero-length segment, pass straight through.
			m.progress = 1.0
			continue
		}
		m.progress = overshoot / segLen
	}

	m.position = geom.Lerp(m.traj.Point(m.segment), m.traj.Point(m.segment+1), m.progress)
	m.updateVisibility()
}

// StopByUser halts the traversal in response to the participant.
// Valid only while moving; a stop after completion is a no-op. If
// the point is occluded at the moment of the stop it stays hidden,
// preserving the occlusion manipulation for later analysis.
func (m *MovingPoint) StopByUser() {
	if !m.moving || m.finished {
		monitoring.Logf("motion: ignoring stop request while not moving")
		return
	}
	m.stoppedByUser = true
	m.finished = true
	m.moving = false
	m.finishedAt = m.clock.Now()
	if !m.occlusionActive {
		m.visible = true
	}
}

// ShouldSwitchToNext reports whether the settle delay has elapsed
// since the traversal finished.
func (m *MovingPoint) ShouldSwitchToNext() bool {
	return m.finished && m.clock.Since(m.finishedAt) >= m.cfg.SettleDelay
}

func (m *MovingPoint) finish() {
	m.finished = true
	m.moving = false
	m.finishedAt = m.clock.Now()
	if n := m.traj.NumPoints(); n > 0 {
		m.position = m.traj.Point(n - 1)
	}
	if segs := m.traj.NumSegments(); segs > 0 {
		m.segment = segs - 1
		m.progress = 1.0
	}
	m.visible = true
	m.occlusionActive = false
}

func (m *MovingPoint) updateVisibility() {
	if !m.cfg.OcclusionEnabled || m.finished {
		m.visible = true
		m.occlusionActive = false
		return
	}

	var hidden bool
	switch m.cfg.OcclusionMode {
	case OcclusionTimed:
		hidden = m.started && m.clock.Since(m.movementStart) >= m.cfg.OcclusionDelay
	case OcclusionRange:
		pos := geom.ArcPosition{Segment: m.segment, Progress: m.progress}
		hidden = !pos.Before(m.windowStart) && !m.windowEnd.Before(pos)
	}
	m.occlusionActive = hidden
	m.visible = !hidden
}

// Position returns the point's current position.
func (m *MovingPoint) Position() geom.Point { return m.position }

// IsVisible reports whether the point should currently be drawn.
func (m *MovingPoint) IsVisible() bool { return m.visible }

// IsMoving reports whether the traversal is in progress.
func (m *MovingPoint) IsMoving() bool { return m.moving }

// IsFinished reports whether the traversal has ended.
func (m *MovingPoint) IsFinished() bool { return m.finished }

// StoppedByUser reports whether the participant ended the traversal.
func (m *MovingPoint) StoppedByUser() bool { return m.stoppedByUser }

// OcclusionActive reports whether the point is currently hidden by
// the occlusion window.
func (m *MovingPoint) OcclusionActive() bool { return m.occlusionActive }

// ArcPosition returns the point's segment index and progress within
// that segment.
func (m *MovingPoint) ArcPosition() geom.ArcPosition {
	return geom.ArcPosition{Segment: m.segment, Progress: m.progress}
}
