package motion

import (
	"testing"
	"time"

	"github.com/percept-data/pursuit/internal/geom"
	"github.com/percept-data/pursuit/internal/timeutil"
	"github.com/percept-data/pursuit/internal/trajectory"
)

func testClock() *timeutil.MockClock {
	return timeutil.NewMockClock(time.Unix(1700000000, 0))
}

func straightLine(length float64, n int) *trajectory.Trajectory {
	points := make([]geom.Point, n)
	for i := range points {
		points[i] = geom.Point{X: length * float64(i) / float64(n-1), Y: 0}
	}
	return trajectory.New(points)
}

func TestResetThenAdvanceZeroNeverFinishes(t *testing.T) {
	clock := testClock()
	mp := NewMovingPoint(clock, DefaultConfig())
	mp.Reset(straightLine(100, 3), DefaultConfig())
	mp.StartMovement()

	mp.Advance(0)
	if mp.IsFinished() {
		t.Error("Advance(0) must not finish the traversal")
	}
	if !mp.IsMoving() {
		t.Error("point should still be moving")
	}
}

func TestAdvanceCarriesAcrossSegmentBoundary(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.Speed = 30
	// Two segments of 20 px each; one 30 px frame crosses the
	// boundary and should land 10 px into the second segment.
	traj := trajectory.New([]geom.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 40, Y: 0}})
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(traj, cfg)
	mp.StartMovement()

	mp.Advance(1)
	pos := mp.ArcPosition()
	if pos.Segment != 1 {
		t.Fatalf("segment = %d, want 1", pos.Segment)
	}
	if diff := pos.Progress - 0.5; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("progress = %v, want 0.5 (overshoot carried, not dropped)", pos.Progress)
	}
	if mp.Position().X != 30 {
		t.Errorf("position.X = %v, want 30", mp.Position().X)
	}
}

func TestFinishFreezesAtLastPoint(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.Speed = 4
	traj := straightLine(240, 5)
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(traj, cfg)
	mp.StartMovement()

	frames := 0
	for !mp.IsFinished() && frames < 1000 {
		mp.Advance(1)
		frames++
	}
	if frames != 60 {
		t.Errorf("finished after %d frames, want 60", frames)
	}
	if mp.Position().X != 240 {
		t.Errorf("final position.X = %v, want 240", mp.Position().X)
	}
	if !mp.IsVisible() {
		t.Error("finished point must be visible")
	}
	if mp.StoppedByUser() {
		t.Error("auto finish must not set StoppedByUser")
	}

	// Further advances are no-ops.
	mp.Advance(1)
	if mp.Position().X != 240 {
		t.Error("advance after finish moved the point")
	}
}

func TestRangeOcclusionBoundary(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.OcclusionEnabled = true
	cfg.OcclusionMode = OcclusionRange
	cfg.OcclusionStart = 0.5
	cfg.OcclusionEnd = 1.0
	cfg.Speed = 1
	traj := straightLine(100, 2)
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(traj, cfg)
	mp.StartMovement()

	mp.Advance(49)
	if !mp.IsVisible() {
		t.Error("point at 49% of path should be visible")
	}
	if mp.OcclusionActive() {
		t.Error("occlusion should not be active at 49%")
	}

	mp.Advance(2)
	if mp.IsVisible() {
		t.Error("point at 51% of path should be hidden")
	}
	if !mp.OcclusionActive() {
		t.Error("occlusion should be active at 51%")
	}
}

func TestTimedOcclusion(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.OcclusionEnabled = true
	cfg.OcclusionMode = OcclusionTimed
	cfg.OcclusionDelay = 500 * time.Millisecond
	cfg.Speed = 0.1
	traj := straightLine(1000, 2)
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(traj, cfg)
	mp.StartMovement()

	mp.Advance(1)
	if !mp.IsVisible() {
		t.Error("point should be visible before the delay elapses")
	}

	clock.Advance(501 * time.Millisecond)
	mp.Advance(1)
	if mp.IsVisible() {
		t.Error("point should hide once the delay has elapsed")
	}

	// Hidden until completion, regardless of position.
	clock.Advance(time.Second)
	mp.Advance(1)
	if mp.IsVisible() {
		t.Error("timed occlusion must persist until completion")
	}
}

func TestOcclusionDisabledForcesVisible(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.OcclusionEnabled = false
	cfg.Speed = 1
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(straightLine(100, 2), cfg)
	mp.StartMovement()

	for i := 0; i < 99; i++ {
		mp.Advance(1)
		if !mp.IsVisible() {
			t.Fatal("point must stay visible with occlusion disabled")
		}
	}
}

func TestStopByUser(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.Speed = 1
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(straightLine(100, 2), cfg)
	mp.StartMovement()
	mp.Advance(10)

	mp.StopByUser()
	if !mp.StoppedByUser() || !mp.IsFinished() {
		t.Error("stop should finish the traversal with StoppedByUser set")
	}
	if !mp.IsVisible() {
		t.Error("stop while visible should leave the point visible")
	}

	// A second stop is a no-op.
	mp.StopByUser()
	if mp.IsMoving() {
		t.Error("point must not resume after a duplicate stop")
	}
}

func TestStopWhileOccludedStaysHidden(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.OcclusionEnabled = true
	cfg.OcclusionMode = OcclusionRange
	cfg.OcclusionStart = 0.5
	cfg.OcclusionEnd = 1.0
	cfg.Speed = 1
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(straightLine(100, 2), cfg)
	mp.StartMovement()

	mp.Advance(60)
	if mp.IsVisible() {
		t.Fatal("precondition: point should be hidden at 60%")
	}
	mp.StopByUser()
	if mp.IsVisible() {
		t.Error("stop while occluded must keep the point hidden")
	}
	if !mp.OcclusionActive() {
		t.Error("occlusion state should be preserved through the stop")
	}
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	clock := testClock()
	mp := NewMovingPoint(clock, DefaultConfig())
	mp.Reset(straightLine(100, 2), DefaultConfig())

	mp.StopByUser()
	if mp.StoppedByUser() || mp.IsFinished() {
		t.Error("stop before StartMovement must be ignored")
	}
}

func TestShouldSwitchToNextAfterSettle(t *testing.T) {
	clock := testClock()
	cfg := DefaultConfig()
	cfg.Speed = 100
	cfg.SettleDelay = 900 * time.Millisecond
	mp := NewMovingPoint(clock, cfg)
	mp.Reset(straightLine(100, 2), cfg)
	mp.StartMovement()
	mp.Advance(1)
	if !mp.IsFinished() {
		t.Fatal("precondition: traversal should finish in one frame")
	}

	if mp.ShouldSwitchToNext() {
		t.Error("settle delay has not elapsed yet")
	}
	clock.Advance(899 * time.Millisecond)
	if mp.ShouldSwitchToNext() {
		t.Error("settle delay has not fully elapsed")
	}
	clock.Advance(2 * time.Millisecond)
	if !mp.ShouldSwitchToNext() {
		t.Error("settle delay elapsed, should switch")
	}
}

func TestEmptyTrajectoryFinishesImmediately(t *testing.T) {
	clock := testClock()
	mp := NewMovingPoint(clock, DefaultConfig())
	mp.Reset(trajectory.New(nil), DefaultConfig())
	mp.StartMovement()

	if !mp.IsFinished() {
		t.Error("empty trajectory should finish on StartMovement")
	}
	if !mp.IsVisible() {
		t.Error("finished point must be visible")
	}
}
