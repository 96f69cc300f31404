package session

import (
	"math"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/timeutil"
)

// EstimationState tags the estimation sub-machine's state.
type EstimationState string

const (
	EstimationInactive EstimationState = "inactive"

	// EstimationCircleWaiting shows the response circle and measures
	// the keypress latency against the recorded actual duration.
	EstimationCircleWaiting EstimationState = "circle_waiting"

	EstimationComplete EstimationState = "complete"
)

// Estimation is the keypress-timed duration judgment that follows
// motion in estimation trials.
type Estimation struct {
	clock timeutil.Clock

	state   EstimationState
	entered time.Time

	actual    float64
	estimated float64
}

// NewEstimation creates an inactive estimation sub-machine.
func NewEstimation(clock timeutil.Clock) *Estimation {
	return &Estimation{clock: clock, state: EstimationInactive}
}

// Activate arms the sub-machine with the duration the participant is
// judging against. The latency measurement starts here.
func (e *Estimation) Activate(actualDuration float64) {
	e.state = EstimationCircleWaiting
	e.entered = e.clock.Now()
	e.actual = actualDuration
	e.estimated = 0
}

// State returns the current state tag.
func (e *Estimation) State() EstimationState { return e.state }

// IsComplete reports whether the response has been registered.
func (e *Estimation) IsComplete() bool { return e.state == EstimationComplete }

// HandleIntent processes a confirm keypress. Returns true when the
// sub-task completes.
func (e *Estimation) HandleIntent(in Intent) bool {
	if in != IntentConfirm || e.state != EstimationCircleWaiting {
		return false
	}
	e.estimated = float64(e.clock.Since(e.entered)) / float64(time.Millisecond)
	e.state = EstimationComplete
	return true
}

// Result returns the completed measurement.
func (e *Estimation) Result() collector.EstimationResult {
	ratio := 0.0
	if e.actual > 0 {
		ratio = e.estimated / e.actual
	}
	return collector.EstimationResult{
		ActualDuration:    e.actual,
		EstimatedDuration: e.estimated,
		Error:             e.estimated - e.actual,
		AbsError:          math.Abs(e.estimated - e.actual),
		Ratio:             ratio,
	}
}
