package schedule

import (
	"math/rand"
	"testing"

	"github.com/percept-data/pursuit/internal/geom"
	"github.com/percept-data/pursuit/internal/trajectory"
)

var (
	testSpeeds    = []float64{2.0, 4.0}
	testDurations = []float64{500, 1600, 2900}
)

func p1() []geom.Point { return []geom.Point{{X: 0, Y: 0}, {X: 100, Y: 0}} }
func p2() []geom.Point { return []geom.Point{{X: 0, Y: 0}, {X: 0, Y: 50}} }

func TestDecodeCondition(t *testing.T) {
	tests := []struct {
		code         string
		wantTask     TaskKind
		wantSpeed    float64
		wantDuration float64
	}{
		{"C1S1D1", TaskOcclusionHalf, 2.0, 500},
		{"C2S2D2", TaskEstimation, 4.0, 1600},
		{"C3S1D3", TaskReproduction, 2.0, 2900},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			cond := DecodeCondition(tt.code, testSpeeds, testDurations)
			if cond.Task != tt.wantTask {
				t.Errorf("task = %v, want %v", cond.Task, tt.wantTask)
			}
			if cond.Speed != tt.wantSpeed {
				t.Errorf("speed = %v, want %v", cond.Speed, tt.wantSpeed)
			}
			if cond.Duration != tt.wantDuration {
				t.Errorf("duration = %v, want %v", cond.Duration, tt.wantDuration)
			}
		})
	}
}

func TestDecodeConditionMalformed(t *testing.T) {
	for _, code := range []string{"", "C1S1", "totally-wrong", "CXSYDZ"} {
		cond := DecodeCondition(code, testSpeeds, testDurations)
		if cond.Task != TaskOcclusionHalf {
			t.Errorf("%q: task = %v, want default occlusion task", code, cond.Task)
		}
		if cond.Speed != 2.0 {
			t.Errorf("%q: speed = %v, want slow default", code, cond.Speed)
		}
		if cond.Duration != 500 {
			t.Errorf("%q: duration = %v, want shortest default", code, cond.Duration)
		}
	}
}

func TestCleanCategory(t *testing.T) {
	if got := CleanCategory("C1S2D3_1"); got != "C1S2D3" {
		t.Errorf("CleanCategory = %q, want C1S2D3", got)
	}
	if got := CleanCategory("C1S2D3"); got != "C1S2D3" {
		t.Errorf("CleanCategory without suffix = %q, want unchanged", got)
	}
}

func TestSequentialGeneration(t *testing.T) {
	lib := trajectory.NewLibrary(map[string]map[string][][]geom.Point{
		"main": {
			"B": {p1(), p2()},
			"A": {p1()},
		},
	})
	m := NewBlockManager(lib, nil, rand.New(rand.NewSource(1)), testSpeeds, testDurations)

	if m.NumBlocks() != 1 {
		t.Fatalf("blocks = %d, want 1", m.NumBlocks())
	}
	trials := m.BlockTrials(0)
	if len(trials) != 3 {
		t.Fatalf("trials = %d, want 3", len(trials))
	}
	// Sorted-category order: A first, then B's two instances.
	if trials[0].Category != "A" || trials[1].Category != "B" || trials[2].Category != "B" {
		t.Errorf("category order = %s,%s,%s, want A,B,B",
			trials[0].Category, trials[1].Category, trials[2].Category)
	}
	for i, trial := range trials {
		if trial.DisplayOrder != i+1 {
			t.Errorf("trial %d display order = %d, want %d", i, trial.DisplayOrder, i+1)
		}
		if trial.TrialInBlock != i+1 {
			t.Errorf("trial %d trial_in_block = %d, want %d", i, trial.TrialInBlock, i+1)
		}
	}
	if trials[1].TrajectoryIndex != 0 || trials[2].TrajectoryIndex != 1 {
		t.Error("sequential mode should emit one trial per stored trajectory in order")
	}
}

func TestSequentialDecodesSuffixedCategories(t *testing.T) {
	lib := trajectory.NewLibrary(map[string]map[string][][]geom.Point{
		"main": {"C3S2D2_1": {p1()}},
	})
	m := NewBlockManager(lib, nil, rand.New(rand.NewSource(1)), testSpeeds, testDurations)

	trials := m.BlockTrials(0)
	if len(trials) != 1 {
		t.Fatalf("trials = %d, want 1", len(trials))
	}
	if trials[0].Task != TaskReproduction {
		t.Errorf("task = %v, want reproduction (suffix stripped before decode)", trials[0].Task)
	}
	if trials[0].Category != "C3S2D2_1" {
		t.Errorf("category = %q, want original name retained", trials[0].Category)
	}
	if trials[0].Speed != nil {
		t.Error("reproduction trial must not carry a speed")
	}
	if trials[0].Duration == nil || *trials[0].Duration != 1600 {
		t.Error("reproduction trial should carry the decoded duration")
	}
}

func distributionLib(n int) *trajectory.Library {
	lists := make([][]geom.Point, n)
	for i := range lists {
		lists[i] = p1()
	}
	return trajectory.NewLibrary(map[string]map[string][][]geom.Point{
		"main": {"R": lists},
	})
}

func distributionBlocks(dist map[TaskKind]int) []BlockConfig {
	return []BlockConfig{{
		Name:         "block 1",
		Policy:       PolicyDistribution,
		LibraryBlock: "main",
		Category:     "R",
		Distribution: dist,
	}}
}

func TestDistributionGeneration(t *testing.T) {
	dist := map[TaskKind]int{
		TaskOcclusionHalf: 2,
		TaskOcclusionNone: 2,
		TaskEstimation:    2,
		TaskReproduction:  2,
	}
	m := NewBlockManager(distributionLib(8), distributionBlocks(dist),
		rand.New(rand.NewSource(3)), testSpeeds, testDurations)

	trials := m.BlockTrials(0)
	if len(trials) != 8 {
		t.Fatalf("trials = %d, want 8", len(trials))
	}

	counts := map[TaskKind]int{}
	seenOrder := map[int]bool{}
	for _, trial := range trials {
		counts[trial.Task]++
		seenOrder[trial.DisplayOrder] = true

		if trial.Task.UsesSpeed() && trial.Speed == nil {
			t.Errorf("%v trial missing speed", trial.Task)
		}
		if !trial.Task.UsesSpeed() && trial.Speed != nil {
			t.Errorf("%v trial should not carry a speed", trial.Task)
		}
		if trial.Task.UsesDuration() && trial.Duration == nil {
			t.Errorf("%v trial missing duration", trial.Task)
		}
	}
	for kind, want := range dist {
		if counts[kind] != want {
			t.Errorf("%v count = %d, want %d", kind, counts[kind], want)
		}
	}
	for i := 1; i <= 8; i++ {
		if !seenOrder[i] {
			t.Errorf("display order %d missing after shuffle", i)
		}
	}
}

func TestDistributionDrawNoRepeatsUntilExhausted(t *testing.T) {
	dist := map[TaskKind]int{TaskOcclusionHalf: 5}
	m := NewBlockManager(distributionLib(5), distributionBlocks(dist),
		rand.New(rand.NewSource(9)), testSpeeds, testDurations)

	trials := m.BlockTrials(0)
	seen := map[int]bool{}
	for _, trial := range trials {
		if seen[trial.TrajectoryIndex] {
			t.Fatalf("index %d drawn twice before pool exhaustion", trial.TrajectoryIndex)
		}
		seen[trial.TrajectoryIndex] = true
	}
	if len(seen) != 5 {
		t.Errorf("drew %d distinct indices, want 5", len(seen))
	}
}

func TestDistributionDrawResetsAfterExhaustion(t *testing.T) {
	// Ten draws from a pool of five must reuse each index exactly
	// twice, resetting the pool once in between.
	dist := map[TaskKind]int{TaskOcclusionHalf: 10}
	m := NewBlockManager(distributionLib(5), distributionBlocks(dist),
		rand.New(rand.NewSource(4)), testSpeeds, testDurations)

	counts := map[int]int{}
	for _, trial := range m.BlockTrials(0) {
		counts[trial.TrajectoryIndex]++
	}
	for idx, n := range counts {
		if n != 2 {
			t.Errorf("index %d drawn %d times, want 2", idx, n)
		}
	}
}

func TestDistributionEmptyCategoryFallsBack(t *testing.T) {
	dist := map[TaskKind]int{TaskOcclusionHalf: 2}
	m := NewBlockManager(distributionLib(0), distributionBlocks(dist),
		rand.New(rand.NewSource(2)), testSpeeds, testDurations)

	for _, trial := range m.BlockTrials(0) {
		if trial.TrajectoryIndex != 0 {
			t.Errorf("index = %d, want fallback 0", trial.TrajectoryIndex)
		}
	}
}

func TestAdvanceAcrossBlocks(t *testing.T) {
	lib := trajectory.NewLibrary(map[string]map[string][][]geom.Point{
		"b1": {"A": {p1(), p2()}},
		"b2": {"A": {p1()}},
	})
	m := NewBlockManager(lib, nil, rand.New(rand.NewSource(1)), testSpeeds, testDurations)

	if _, ok := m.CurrentTrial(); !ok {
		t.Fatal("expected a current trial at start")
	}
	if completed := m.Advance(); completed {
		t.Error("first advance within block should not complete it")
	}
	if completed := m.Advance(); !completed {
		t.Error("advancing past the last trial should complete the block")
	}
	if m.IsComplete() {
		t.Error("experiment should not be complete with a block remaining")
	}

	trial, ok := m.CurrentTrial()
	if !ok {
		t.Fatal("expected a current trial in block 2")
	}
	if trial.Block != "b2" {
		t.Errorf("block = %q, want b2", trial.Block)
	}

	if completed := m.Advance(); !completed {
		t.Error("advancing past the last block should complete it")
	}
	if !m.IsComplete() {
		t.Error("experiment should be complete")
	}
	if _, ok := m.CurrentTrial(); ok {
		t.Error("no trial should be current after completion")
	}

	// Advancing after completion is a no-op.
	if completed := m.Advance(); completed {
		t.Error("advance after completion must be a no-op")
	}
}

func TestProgress(t *testing.T) {
	lib := trajectory.NewLibrary(map[string]map[string][][]geom.Point{
		"b1": {"A": {p1(), p2()}},
	})
	m := NewBlockManager(lib, nil, rand.New(rand.NewSource(1)), testSpeeds, testDurations)

	p := m.Progress()
	if p.BlockNumber != 1 || p.TotalBlocks != 1 {
		t.Errorf("block progress = %d/%d, want 1/1", p.BlockNumber, p.TotalBlocks)
	}
	if p.TrialInBlock != 1 || p.TrialsInBlock != 2 {
		t.Errorf("trial progress = %d/%d, want 1/2", p.TrialInBlock, p.TrialsInBlock)
	}

	m.Advance()
	p = m.Progress()
	if p.TrialInBlock != 2 {
		t.Errorf("trial progress = %d, want 2", p.TrialInBlock)
	}
}
