package session

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/geom"
	"github.com/percept-data/pursuit/internal/schedule"
	"github.com/percept-data/pursuit/internal/timeutil"
	"github.com/percept-data/pursuit/internal/trajectory"
)

type savedBlock struct {
	participantID string
	blockNumber   int
	records       []collector.TrialRecord
}

type memSink struct {
	saves []savedBlock
}

func (s *memSink) SaveBlock(participantID string, blockNumber int, records []collector.TrialRecord) error {
	s.saves = append(s.saves, savedBlock{participantID, blockNumber, records})
	return nil
}

func singleTrialLibrary() *trajectory.Library {
	return trajectory.NewLibrary(map[string]map[string][][]geom.Point{
		"main": {
			"111111": {{{X: 0, Y: 0}, {X: 240, Y: 0}}},
		},
	})
}

func newTestEngine(lib *trajectory.Library, blocks []schedule.BlockConfig, sink Sink) (*Engine, *timeutil.MockClock) {
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	rng := rand.New(rand.NewSource(42))
	speeds := []float64{4.0, 8.0}
	durations := []float64{500, 1600, 2900}
	manager := schedule.NewBlockManager(lib, blocks, rng, speeds, durations)
	col := collector.NewCollector(clk, "p01", 1)
	return NewEngine(clk, rng, testConfig(), lib, manager, col, sink), clk
}

func tickUntil(t *testing.T, e *Engine, clk *timeutil.MockClock, want TrialState, max int) {
	t.Helper()
	for i := 0; i < max; i++ {
		clk.Advance(tick)
		e.Tick(nil)
		if e.Machine().State() == want {
			return
		}
	}
	t.Fatalf("state %q not reached within %d ticks, still %q", want, max, e.Machine().State())
}

func TestEngineOcclusionTrialEndToEnd(t *testing.T) {
	sink := &memSink{}
	blocks := []schedule.BlockConfig{{Name: "main", Policy: schedule.PolicySequential, LibraryBlock: "main"}}
	e, clk := newTestEngine(singleTrialLibrary(), blocks, sink)

	e.Start()
	if e.Machine().State() != StateInitialWait {
		t.Fatalf("state after Start = %q, want %q", e.Machine().State(), StateInitialWait)
	}

	tickUntil(t, e, clk, StateFixationPreview, 120)
	clk.Advance(tick)
	e.Tick([]Intent{IntentConfirm})
	tickUntil(t, e, clk, StateMoving, 60)

	// 29 frames of motion, then the stop arrives on the 30th tick
	// before that tick's frame advances: 30 tick periods of movement.
	for i := 0; i < 29; i++ {
		clk.Advance(tick)
		e.Tick(nil)
	}
	clk.Advance(tick)
	e.Tick([]Intent{IntentStop})
	if e.Machine().State() != StatePostTrialSettle {
		t.Fatalf("state after stop = %q, want %q", e.Machine().State(), StatePostTrialSettle)
	}

	for i := 0; i < 200 && !e.Done(); i++ {
		clk.Advance(tick)
		e.Tick(nil)
	}
	if !e.Done() {
		t.Fatal("experiment should complete after its only trial")
	}
	if e.Cancelled() {
		t.Fatal("completion is not a cancellation")
	}

	if len(sink.saves) != 1 {
		t.Fatalf("sink saves = %d, want 1", len(sink.saves))
	}
	save := sink.saves[0]
	if save.participantID != "p01" || save.blockNumber != 1 {
		t.Errorf("saved as %s block %d, want p01 block 1", save.participantID, save.blockNumber)
	}
	if len(save.records) != 1 {
		t.Fatalf("saved records = %d, want 1", len(save.records))
	}

	rec := save.records[0]
	if rec.ConditionType != string(schedule.TaskOcclusionHalf) {
		t.Errorf("condition = %q, want %q", rec.ConditionType, schedule.TaskOcclusionHalf)
	}
	if !rec.StoppedByUser {
		t.Error("record should be marked stopped by user")
	}
	if !rec.CompletedNormally {
		t.Error("record should be marked completed normally")
	}
	if rec.ReactionTime == nil {
		t.Fatal("reaction time missing")
	}
	if math.Abs(*rec.ReactionTime-500) > 1 {
		t.Errorf("reaction time = %v ms, want ~500", *rec.ReactionTime)
	}
	if rec.ReferenceResponseTime == nil || math.Abs(*rec.ReferenceResponseTime-1000) > 1e-9 {
		t.Errorf("reference response time = %v, want 1000", rec.ReferenceResponseTime)
	}
	// Stopped one frame short of the midpoint, so the point was
	// still visible and the hidden window never opened.
	if !rec.WasVisibleWhenStopped {
		t.Error("point should have been visible at the stop")
	}
	if rec.OcclusionStartTime != nil {
		t.Error("occlusion onset should not be recorded before the midpoint")
	}
}

func TestEngineDebouncesRepeatedConfirms(t *testing.T) {
	sink := &memSink{}
	blocks := []schedule.BlockConfig{{Name: "main", Policy: schedule.PolicySequential, LibraryBlock: "main"}}
	e, clk := newTestEngine(singleTrialLibrary(), blocks, sink)

	e.Start()
	tickUntil(t, e, clk, StateFixationPreview, 120)

	// Two confirms within one tick: the second is key repeat and must
	// not leak into the next interactive state.
	clk.Advance(tick)
	e.Tick([]Intent{IntentConfirm, IntentConfirm})
	if e.Machine().State() != StateStartDelay {
		t.Fatalf("state = %q, want %q", e.Machine().State(), StateStartDelay)
	}
}

func TestEngineCancelFlushesPartialRecord(t *testing.T) {
	sink := &memSink{}
	blocks := []schedule.BlockConfig{{Name: "main", Policy: schedule.PolicySequential, LibraryBlock: "main"}}
	e, clk := newTestEngine(singleTrialLibrary(), blocks, sink)

	e.Start()
	tickUntil(t, e, clk, StateFixationPreview, 120)

	clk.Advance(tick)
	e.Tick([]Intent{IntentCancel})
	if !e.Done() || !e.Cancelled() {
		t.Fatal("cancel should end the experiment as cancelled")
	}

	if len(sink.saves) != 1 {
		t.Fatalf("sink saves = %d, want 1", len(sink.saves))
	}
	records := sink.saves[0].records
	if len(records) != 1 {
		t.Fatalf("flushed records = %d, want 1", len(records))
	}
	if records[0].CompletedNormally {
		t.Error("a flushed partial record is not a normal completion")
	}
}

func TestEngineSkipsEmptyBlocks(t *testing.T) {
	sink := &memSink{}
	blocks := []schedule.BlockConfig{
		{Name: "warmup", Policy: schedule.PolicySequential, LibraryBlock: "missing"},
		{Name: "main", Policy: schedule.PolicySequential, LibraryBlock: "main"},
	}
	e, _ := newTestEngine(singleTrialLibrary(), blocks, sink)

	e.Start()
	if e.Done() {
		t.Fatal("experiment should continue into the non-empty block")
	}
	if got := e.Progress().BlockNumber; got != 2 {
		t.Errorf("block number = %d, want 2", got)
	}
	if e.Machine().State() != StateInitialWait {
		t.Errorf("state = %q, want %q", e.Machine().State(), StateInitialWait)
	}
}

// TestEngineMonitorReadsDuringTicks drives a full trial on one
// goroutine while polling the read surface the HTTP handlers use on
// another. Run under the race detector this covers the lock on the
// engine's shared state.
func TestEngineMonitorReadsDuringTicks(t *testing.T) {
	sink := &memSink{}
	blocks := []schedule.BlockConfig{{Name: "main", Policy: schedule.PolicySequential, LibraryBlock: "main"}}
	e, clk := newTestEngine(singleTrialLibrary(), blocks, sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 400 && !e.Done(); i++ {
			clk.Advance(tick)
			e.Tick([]Intent{IntentConfirm, IntentStop})
		}
	}()

	for {
		_ = e.Visual()
		_ = e.Progress()
		_ = e.History()
		_ = e.Cancelled()
		select {
		case <-done:
			if !e.Done() {
				t.Fatal("trial should have run to completion under concurrent reads")
			}
			if len(sink.saves) != 1 {
				t.Fatalf("sink saves = %d, want 1", len(sink.saves))
			}
			return
		default:
		}
	}
}

func TestEngineVisualCarriesProgress(t *testing.T) {
	sink := &memSink{}
	blocks := []schedule.BlockConfig{{Name: "main", Policy: schedule.PolicySequential, LibraryBlock: "main"}}
	e, clk := newTestEngine(singleTrialLibrary(), blocks, sink)

	e.Start()
	tickUntil(t, e, clk, StateFixationPreview, 120)

	v := e.Visual()
	if v.Progress.BlockNumber != 1 || v.Progress.TrialInBlock != 1 {
		t.Errorf("progress = %+v, want block 1 trial 1", v.Progress)
	}
	if v.ExperimentDone {
		t.Error("experiment is still running")
	}
}
