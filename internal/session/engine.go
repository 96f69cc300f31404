package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/monitoring"
	"github.com/percept-data/pursuit/internal/schedule"
	"github.com/percept-data/pursuit/internal/timeutil"
	"github.com/percept-data/pursuit/internal/trajectory"
)

// Engine is the fixed-frequency driving loop. Each tick it drains
// pending input intents, routes them to the active machine, then
// fires the elapsed-time transitions, so a keypress can never be
// missed by a time transition firing first. Only one trial and
// sub-machine are ever active.
type Engine struct {
	clock timeutil.Clock
	cfg   Config

	manager *schedule.BlockManager
	lib     TrajectorySource
	col     *collector.Collector
	machine *TrialMachine
	deb     *Debouncer
	sink    Sink

	// mu guards the machine, manager, and collector: ticks mutate
	// them under the write lock, the monitor accessors read under
	// the read lock.
	mu        sync.RWMutex
	started   bool
	done      bool
	cancelled bool
}

// TrajectorySource resolves a trial's trajectory reference. The
// trajectory library satisfies it; tests may substitute fixtures.
type TrajectorySource interface {
	Trajectory(block, category string, index int) *trajectory.Trajectory
}

// NewEngine wires the driving loop. The rng seeds both the trial
// machine's delay choices and the reproduction sub-machine.
func NewEngine(clock timeutil.Clock, rng *rand.Rand, cfg Config, lib TrajectorySource,
	manager *schedule.BlockManager, col *collector.Collector, sink Sink) *Engine {
	return &Engine{
		clock:   clock,
		cfg:     cfg,
		manager: manager,
		lib:     lib,
		col:     col,
		machine: NewTrialMachine(clock, rng, cfg, col),
		deb:     NewDebouncer(clock, cfg.Debounce),
		sink:    sink,
	}
}

// Start begins the first trial. Subsequent calls are no-ops.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.start()
}

func (e *Engine) start() {
	if e.started {
		return
	}
	e.started = true
	if e.manager.IsComplete() {
		e.done = true
		return
	}
	e.beginCurrentTrial()
}

// Tick processes one frame: pending intents first, then time-based
// transitions, then trial/block advancement.
func (e *Engine) Tick(intents []Intent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick(intents)
}

func (e *Engine) tick(intents []Intent) {
	if !e.started {
		e.start()
	}
	if e.done {
		return
	}

	for _, in := range intents {
		if !e.deb.Allow(in) {
			continue
		}
		if in == IntentCancel {
			e.cancel()
			return
		}
		e.machine.HandleIntent(in)
	}

	e.machine.Update()

	if e.machine.Done() {
		blockCompleted := e.manager.Advance()
		if blockCompleted {
			e.saveBlock()
			if e.manager.IsComplete() {
				e.done = true
				return
			}
			e.col.ResetBlock(e.manager.Progress().BlockNumber)
		}
		e.beginCurrentTrial()
	}
}

// Run drives ticks from the clock until the experiment completes or
// the context is cancelled. Intents arriving between ticks are
// buffered by the channel and drained at the start of the next tick.
func (e *Engine) Run(ctx context.Context, intents <-chan Intent) error {
	period := time.Duration(float64(time.Second) / e.cfg.TickRate)
	ticker := e.clock.NewTicker(period)
	defer ticker.Stop()

	e.Start()
	for !e.Done() {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.cancel()
			e.mu.Unlock()
			return ctx.Err()
		case <-ticker.C():
			var pending []Intent
		drain:
			for {
				select {
				case in, ok := <-intents:
					if !ok {
						intents = nil
						break drain
					}
					pending = append(pending, in)
				default:
					break drain
				}
			}
			e.Tick(pending)
		}
	}
	return nil
}

// beginCurrentTrial, cancel, and saveBlock are called with mu held.

func (e *Engine) beginCurrentTrial() {
	for {
		trial, ok := e.manager.CurrentTrial()
		if ok {
			block, _ := e.manager.CurrentBlock()
			traj := e.lib.Trajectory(block.LibraryBlock, trial.Category, trial.TrajectoryIndex)
			e.machine.Begin(trial, traj)
			return
		}
		// Empty block: skip forward.
		monitoring.Logf("session: block %d has no trials, skipping", e.manager.Progress().BlockNumber)
		e.manager.Advance()
		if e.manager.IsComplete() {
			e.done = true
			return
		}
		e.col.ResetBlock(e.manager.Progress().BlockNumber)
	}
}

// cancel flushes the in-progress trial's best-effort data before
// shutdown. Partial trial data is preserved, not discarded.
func (e *Engine) cancel() {
	e.cancelled = true
	records := e.col.Records()
	if partial, ok := e.col.PartialRecord(); ok {
		records = append(records, partial)
	}
	if len(records) > 0 {
		if err := e.sink.SaveBlock(e.col.ParticipantID(), e.col.BlockNumber(), records); err != nil {
			monitoring.Logf("session: flush on cancel failed: %v", err)
		}
	}
	e.done = true
}

func (e *Engine) saveBlock() {
	records := e.col.Records()
	if len(records) == 0 {
		return
	}
	if err := e.sink.SaveBlock(e.col.ParticipantID(), e.col.BlockNumber(), records); err != nil {
		monitoring.Logf("session: saving block %d failed: %v", e.col.BlockNumber(), err)
	}
}

// Done reports whether the experiment has ended.
func (e *Engine) Done() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.done
}

// Cancelled reports whether the experiment ended by cancellation.
func (e *Engine) Cancelled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cancelled
}

// Progress returns the block/trial counters for display.
func (e *Engine) Progress() schedule.Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.manager.Progress()
}

// History returns the completed records of the current block.
func (e *Engine) History() []collector.TrialRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.col.Records()
}

// Machine exposes the active trial controller to tests that drive
// ticks synchronously.
func (e *Engine) Machine() *TrialMachine { return e.machine }

// Visual returns the side-effect-free projection of what should be
// on screen this frame.
func (e *Engine) Visual() VisualState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := e.machine.Visual()
	v.Progress = e.manager.Progress()
	v.ExperimentDone = e.done
	return v
}
