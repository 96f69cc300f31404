package schedule

import (
	"math/rand"

	"github.com/percept-data/pursuit/internal/monitoring"
	"github.com/percept-data/pursuit/internal/trajectory"
)

// Policy selects how a block's trial sequence is generated.
type Policy string

const (
	// PolicySequential iterates every category of the library block
	// in sorted order and emits one trial per stored trajectory, in
	// deterministic order.
	PolicySequential Policy = "sequential"

	// PolicyDistribution generates a fixed per-task multiset of
	// trials, shuffles it, and draws trajectory indices from a
	// not-yet-used pool per category.
	PolicyDistribution Policy = "distribution"
)

// BlockConfig describes one block of the experiment.
type BlockConfig struct {
	Name string `json:"name"`

	Policy Policy `json:"policy"`

	// LibraryBlock names the trajectory-library block trials draw
	// their paths from.
	LibraryBlock string `json:"library_block"`

	// Category is the category code distribution-policy trials draw
	// trajectories from.
	Category string `json:"category,omitempty"`

	// Distribution maps task kind to repeat count for the
	// distribution policy.
	Distribution map[TaskKind]int `json:"distribution,omitempty"`
}

// Trial is one scheduled stimulus-presentation unit. Created once at
// block-generation time and never mutated afterwards.
type Trial struct {
	Task TaskKind `json:"task"`

	// Speed in px/frame; nil for tasks without motion.
	Speed *float64 `json:"speed,omitempty"`

	// Duration target in milliseconds; nil for tasks without one.
	Duration *float64 `json:"duration,omitempty"`

	// Category as stored in the library, including any suffix.
	Category        string `json:"category"`
	TrajectoryIndex int    `json:"trajectory_index"`

	Block        string `json:"block"`
	TrialInBlock int    `json:"trial_in_block"`
	DisplayOrder int    `json:"display_order"`

	Condition Condition `json:"condition"`
}

// Progress is the experiment cursor exposed for on-screen display.
type Progress struct {
	BlockNumber   int `json:"block_number"`
	TotalBlocks   int `json:"total_blocks"`
	TrialInBlock  int `json:"trial_in_block"`
	TrialsInBlock int `json:"trials_in_block"`
	DisplayOrder  int `json:"display_order"`
}

// BlockManager owns the ordered blocks and their trial sequences and
// tracks the current position. Exactly one trial is current at any
// time until the experiment completes.
type BlockManager struct {
	lib       *trajectory.Library
	rng       *rand.Rand
	speeds    []float64
	durations []float64

	blocks    []BlockConfig
	sequences [][]Trial

	blockIdx int
	trialIdx int
	complete bool

	// used tracks drawn trajectory indices per library block and
	// category for the distribution policy.
	used map[string]map[int]bool
}

// NewBlockManager generates the trial sequence for every block at
// construction time. A nil or empty block list derives one
// sequential block per library block, in sorted order.
func NewBlockManager(lib *trajectory.Library, blocks []BlockConfig, rng *rand.Rand, speeds, durations []float64) *BlockManager {
	if len(blocks) == 0 {
		for _, name := range lib.Blocks() {
			blocks = append(blocks, BlockConfig{
				Name:         name,
				Policy:       PolicySequential,
				LibraryBlock: name,
			})
		}
	}

	m := &BlockManager{
		lib:       lib,
		rng:       rng,
		speeds:    speeds,
		durations: durations,
		blocks:    blocks,
		used:      map[string]map[int]bool{},
	}
	for _, block := range blocks {
		var seq []Trial
		switch block.Policy {
		case PolicyDistribution:
			seq = m.generateDistribution(block)
		default:
			seq = m.generateSequential(block)
		}
		m.sequences = append(m.sequences, seq)
	}
	if len(m.blocks) == 0 {
		m.complete = true
	}
	return m
}

func (m *BlockManager) generateSequential(block BlockConfig) []Trial {
	var trials []Trial
	for _, category := range m.lib.Categories(block.LibraryBlock) {
		cond := DecodeCondition(CleanCategory(category), m.speeds, m.durations)
		for idx := 0; idx < m.lib.Count(block.LibraryBlock, category); idx++ {
			trial := Trial{
				Task:            cond.Task,
				Category:        category,
				TrajectoryIndex: idx,
				Block:           block.Name,
				TrialInBlock:    len(trials) + 1,
				DisplayOrder:    len(trials) + 1,
				Condition:       cond,
			}
			if cond.Task.UsesSpeed() {
				speed := cond.Speed
				trial.Speed = &speed
			}
			if cond.Task.UsesDuration() {
				duration := cond.Duration
				trial.Duration = &duration
			}
			trials = append(trials, trial)
		}
	}
	return trials
}

func (m *BlockManager) generateDistribution(block BlockConfig) []Trial {
	var trials []Trial
	for _, kind := range []TaskKind{TaskOcclusionHalf, TaskOcclusionNone, TaskEstimation, TaskReproduction} {
		for i := 0; i < block.Distribution[kind]; i++ {
			trial := Trial{
				Task:         kind,
				Category:     block.Category,
				Block:        block.Name,
				TrialInBlock: len(trials) + 1,
				Condition: Condition{
					Task: kind,
					Code: block.Category,
				},
			}
			if kind.UsesSpeed() && len(m.speeds) > 0 {
				speed := m.speeds[m.rng.Intn(len(m.speeds))]
				trial.Speed = &speed
				trial.Condition.Speed = speed
			}
			if kind.UsesDuration() && len(m.durations) > 0 {
				duration := m.durations[m.rng.Intn(len(m.durations))]
				trial.Duration = &duration
				trial.Condition.Duration = duration
			}
			trials = append(trials, trial)
		}
	}

	m.rng.Shuffle(len(trials), func(i, j int) {
		trials[i], trials[j] = trials[j], trials[i]
	})
	for i := range trials {
		trials[i].DisplayOrder = i + 1
		trials[i].TrajectoryIndex = m.drawIndex(block.LibraryBlock, block.Category)
	}
	return trials
}

// drawIndex picks a not-yet-used trajectory index for the category.
// An exhausted pool resets once and redraws; a category with no
// trajectories at all falls back to index 0.
func (m *BlockManager) drawIndex(libraryBlock, category string) int {
	count := m.lib.Count(libraryBlock, category)
	if count == 0 {
		monitoring.Logf("schedule: no trajectories for %s/%s, using index 0", libraryBlock, category)
		return 0
	}

	key := libraryBlock + "/" + category
	for attempt := 0; attempt < 2; attempt++ {
		used := m.used[key]
		var unused []int
		for i := 0; i < count; i++ {
			if !used[i] {
				unused = append(unused, i)
			}
		}
		if len(unused) == 0 {
			monitoring.Logf("schedule: trajectory pool for %s exhausted, resetting", key)
			m.used[key] = map[int]bool{}
			continue
		}
		idx := unused[m.rng.Intn(len(unused))]
		if m.used[key] == nil {
			m.used[key] = map[int]bool{}
		}
		m.used[key][idx] = true
		return idx
	}
	return 0
}

// CurrentBlock returns the active block config. ok is false once the
// experiment is complete.
func (m *BlockManager) CurrentBlock() (BlockConfig, bool) {
	if m.complete || m.blockIdx >= len(m.blocks) {
		return BlockConfig{}, false
	}
	return m.blocks[m.blockIdx], true
}

// CurrentTrial returns the active trial. ok is false once the
// experiment is complete or the active block is empty.
func (m *BlockManager) CurrentTrial() (Trial, bool) {
	if m.complete || m.blockIdx >= len(m.sequences) {
		return Trial{}, false
	}
	seq := m.sequences[m.blockIdx]
	if m.trialIdx >= len(seq) {
		return Trial{}, false
	}
	return seq[m.trialIdx], true
}

// Advance moves the cursor to the next trial and reports whether the
// active block just completed. Advancing past the last block marks
// the experiment complete; advancing after that is a no-op.
func (m *BlockManager) Advance() bool {
	if m.complete {
		monitoring.Logf("schedule: advance called after experiment completion")
		return false
	}
	m.trialIdx++
	if m.trialIdx < len(m.sequences[m.blockIdx]) {
		return false
	}
	m.trialIdx = 0
	m.blockIdx++
	if m.blockIdx >= len(m.blocks) {
		m.complete = true
	}
	return true
}

// IsComplete reports whether every block has been exhausted.
func (m *BlockManager) IsComplete() bool {
	return m.complete
}

// NumBlocks returns the number of configured blocks.
func (m *BlockManager) NumBlocks() int {
	return len(m.blocks)
}

// BlockTrials returns a copy of the generated sequence for block i.
func (m *BlockManager) BlockTrials(i int) []Trial {
	if i < 0 || i >= len(m.sequences) {
		return nil
	}
	out := make([]Trial, len(m.sequences[i]))
	copy(out, m.sequences[i])
	return out
}

// Progress returns the cursor position for on-screen display.
func (m *BlockManager) Progress() Progress {
	p := Progress{
		BlockNumber: m.blockIdx + 1,
		TotalBlocks: len(m.blocks),
	}
	if m.complete {
		p.BlockNumber = len(m.blocks)
	}
	if m.blockIdx < len(m.sequences) {
		p.TrialsInBlock = len(m.sequences[m.blockIdx])
		p.TrialInBlock = m.trialIdx + 1
		if trial, ok := m.CurrentTrial(); ok {
			p.DisplayOrder = trial.DisplayOrder
		}
	}
	return p
}
