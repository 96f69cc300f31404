package session

import (
	"math"
	"math/rand"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/timeutil"
)

// ReproductionState tags the reproduction sub-machine's state.
type ReproductionState string

const (
	ReproductionInactive ReproductionState = "inactive"

	// ReproductionFirstCross shows the first fixation cross and
	// waits for the participant to confirm readiness.
	ReproductionFirstCross ReproductionState = "first_cross_waiting"

	// ReproductionStartDelay pauses for a randomly chosen delay
	// before the target circle appears.
	ReproductionStartDelay ReproductionState = "start_delay"

	// ReproductionCircle shows the target circle for exactly the
	// target duration.
	ReproductionCircle ReproductionState = "circle"

	// ReproductionSecondCross shows the second cross and waits for
	// confirmation before the response phase.
	ReproductionSecondCross ReproductionState = "second_cross_waiting"

	// ReproductionResponse shows the response circle; the confirming
	// keypress latency from entering this state is the reproduced
	// duration.
	ReproductionResponse ReproductionState = "response_waiting"

	ReproductionComplete ReproductionState = "complete"
)

// Reproduction is the cross/circle duration-matching sub-task.
type Reproduction struct {
	clock timeutil.Clock
	rng   *rand.Rand

	startDelays []time.Duration

	state   ReproductionState
	entered time.Time

	target     float64
	startDelay time.Duration
	reproduced float64
}

// NewReproduction creates an inactive reproduction sub-machine with
// the given start-delay choices.
func NewReproduction(clock timeutil.Clock, rng *rand.Rand, startDelays []time.Duration) *Reproduction {
	if len(startDelays) == 0 {
		startDelays = []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}
	}
	return &Reproduction{
		clock:       clock,
		rng:         rng,
		startDelays: startDelays,
		state:       ReproductionInactive,
	}
}

// Activate arms the sub-machine with the target duration in
// milliseconds. The start delay is chosen once, here.
func (r *Reproduction) Activate(targetDuration float64) {
	r.target = targetDuration
	r.startDelay = r.startDelays[r.rng.Intn(len(r.startDelays))]
	r.reproduced = 0
	r.enter(ReproductionFirstCross)
}

func (r *Reproduction) enter(s ReproductionState) {
	r.state = s
	r.entered = r.clock.Now()
}

// State returns the current state tag.
func (r *Reproduction) State() ReproductionState { return r.state }

// StartDelay returns the delay chosen at activation.
func (r *Reproduction) StartDelay() time.Duration { return r.startDelay }

// IsComplete reports whether the response has been registered.
func (r *Reproduction) IsComplete() bool { return r.state == ReproductionComplete }

// Interactive reports whether the current state accepts a confirm.
func (r *Reproduction) Interactive() bool {
	switch r.state {
	case ReproductionFirstCross, ReproductionSecondCross, ReproductionResponse:
		return true
	}
	return false
}

// HandleIntent processes a confirm keypress in interactive states.
// Returns true when the sub-task completes.
func (r *Reproduction) HandleIntent(in Intent) bool {
	if in != IntentConfirm {
		return false
	}
	switch r.state {
	case ReproductionFirstCross:
		r.enter(ReproductionStartDelay)
	case ReproductionSecondCross:
		r.enter(ReproductionResponse)
	case ReproductionResponse:
		r.reproduced = float64(r.clock.Since(r.entered)) / float64(time.Millisecond)
		r.enter(ReproductionComplete)
		return true
	}
	return false
}

// Update fires the elapsed-time transitions.
func (r *Reproduction) Update() {
	switch r.state {
	case ReproductionStartDelay:
		if r.clock.Since(r.entered) >= r.startDelay {
			r.enter(ReproductionCircle)
		}
	case ReproductionCircle:
		if float64(r.clock.Since(r.entered))/float64(time.Millisecond) >= r.target {
			r.enter(ReproductionSecondCross)
		}
	}
}

// Result returns the completed measurement. The reproduced duration
// is measured from entering the response state, never from trial
// start.
func (r *Reproduction) Result() collector.ReproductionResult {
	ratio := 0.0
	if r.target > 0 {
		ratio = r.reproduced / r.target
	}
	return collector.ReproductionResult{
		TargetDuration:     r.target,
		ReproducedDuration: r.reproduced,
		Error:              r.reproduced - r.target,
		AbsError:           math.Abs(r.reproduced - r.target),
		Ratio:              ratio,
		StartDelay:         float64(r.startDelay) / float64(time.Millisecond),
	}
}
