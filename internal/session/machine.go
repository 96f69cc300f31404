package session

import (
	"math/rand"
	"time"

	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/motion"
	"github.com/percept-data/pursuit/internal/schedule"
	"github.com/percept-data/pursuit/internal/timeutil"
	"github.com/percept-data/pursuit/internal/trajectory"
)

// TrialState tags the per-trial controller's state. Input is accepted
// only in states that declare themselves interactive; every other
// state ignores it.
type TrialState string

const (
	// StateIdle means no trial has begun.
	StateIdle TrialState = "idle"

	// StateInitialWait is the fixed lead-in before the fixation
	// preview becomes interactive.
	StateInitialWait TrialState = "initial_wait"

	// StateFixationPreview shows the task's fixation marker and the
	// trajectory, waiting for the participant to confirm.
	StateFixationPreview TrialState = "fixation_preview"

	// StateStartDelay pauses for a randomly chosen delay before
	// motion (or the reproduction sub-task) begins.
	StateStartDelay TrialState = "start_delay"

	// StateMoving advances the point along its trajectory.
	StateMoving TrialState = "moving"

	// StateCrossInterstimulus shows a cross between a user-stopped
	// motion phase and the estimation sub-task. Confirm is accepted
	// once the cross has been shown for its minimum duration.
	StateCrossInterstimulus TrialState = "cross_interstimulus"

	// StatePostTrialSettle holds the final frame after motion ends.
	StatePostTrialSettle TrialState = "post_trial_settle"

	// StateEstimation runs the estimation sub-machine.
	StateEstimation TrialState = "estimation"

	// StateReproduction runs the reproduction sub-machine.
	StateReproduction TrialState = "reproduction"

	// StateComplete means the trial's record has been finalized.
	StateComplete TrialState = "complete"
)

// Config carries the session timing parameters.
type Config struct {
	// InitialWait precedes the fixation preview.
	InitialWait time.Duration

	// StartDelays are the candidate pre-motion delays, chosen from
	// uniformly per trial.
	StartDelays []time.Duration

	// CrossDuration is the minimum interstimulus cross presentation.
	CrossDuration time.Duration

	// Debounce suppresses duplicate key events.
	Debounce time.Duration

	// TickRate is the loop frequency in Hz.
	TickRate float64

	Tasks  map[schedule.TaskKind]schedule.TaskConfig
	Motion motion.Config
}

// DefaultConfig returns the calibrated session timings.
func DefaultConfig() Config {
	return Config{
		InitialWait:   900 * time.Millisecond,
		StartDelays:   []time.Duration{200 * time.Millisecond, 400 * time.Millisecond},
		CrossDuration: 900 * time.Millisecond,
		Debounce:      50 * time.Millisecond,
		TickRate:      60,
		Tasks:         schedule.DefaultTasks(),
		Motion:        motion.DefaultConfig(),
	}
}

// TrialMachine is the per-trial controller: it drives the fixation
// preview, start delay, motion, stop/finish detection, and dispatch
// into the task branches, stamping the collector as events occur.
type TrialMachine struct {
	clock timeutil.Clock
	rng   *rand.Rand
	cfg   Config
	point *motion.MovingPoint
	col   *collector.Collector

	trial schedule.Trial
	traj  *trajectory.Trajectory
	task  schedule.TaskConfig

	state   TrialState
	entered time.Time

	startDelay      time.Duration
	movementStart   time.Time
	actualDuration  float64
	occlusionLogged bool

	estimation   *Estimation
	reproduction *Reproduction
}

// NewTrialMachine creates a controller bound to a collector. Begin
// must be called before updates have any effect.
func NewTrialMachine(clock timeutil.Clock, rng *rand.Rand, cfg Config, col *collector.Collector) *TrialMachine {
	return &TrialMachine{
		clock:        clock,
		rng:          rng,
		cfg:          cfg,
		col:          col,
		point:        motion.NewMovingPoint(clock, cfg.Motion),
		state:        StateIdle,
		estimation:   NewEstimation(clock),
		reproduction: NewReproduction(clock, rng, cfg.StartDelays),
	}
}

// Begin configures the machine for one trial: it resolves the motion
// parameters, opens the collector record, stores the reference
// times, and enters the initial wait.
func (m *TrialMachine) Begin(trial schedule.Trial, traj *trajectory.Trajectory) {
	m.trial = trial
	m.traj = traj
	m.task = schedule.TaskFor(m.cfg.Tasks, trial.Task)
	m.occlusionLogged = false
	m.actualDuration = 0

	speed := 0.0
	if trial.Speed != nil {
		speed = *trial.Speed
	}

	// The occlusion mode comes from the session config; the task
	// supplies the range window's start fraction.
	motionCfg := m.cfg.Motion
	motionCfg.Speed = speed
	motionCfg.OcclusionEnabled = m.task.OcclusionEnabled
	if motionCfg.OcclusionMode == "" {
		motionCfg.OcclusionMode = motion.OcclusionRange
	}
	motionCfg.OcclusionStart = m.task.OcclusionKind.StartFraction()
	motionCfg.OcclusionEnd = 1.0
	m.point.Reset(traj, motionCfg)

	m.startDelay = m.cfg.StartDelays[m.rng.Intn(len(m.cfg.StartDelays))]

	m.col.StartTrial(collector.StartParams{
		TrajectoryType:   trial.Category,
		Duration:         traj.Duration(speed),
		Speed:            speed,
		TrajectoryNumber: trial.TrajectoryIndex,
		ConditionType:    string(trial.Task),
		BlockNumber:      m.col.BlockNumber(),
		TrialInBlock:     trial.TrialInBlock,
		DisplayOrder:     trial.DisplayOrder,
		AssignedSpeed:    trial.Speed,
		AssignedDuration: trial.Duration,
		StartDelay:       float64(m.startDelay) / float64(time.Millisecond),
	})

	if trial.Task.HasMotion() && speed > 0 && !traj.IsEmpty() {
		ref := traj.TotalLength() / (speed * trajectory.FrameRate) * 1000.0
		m.col.RecordReferenceTimes(ref, ref, ref)
	}

	m.enter(StateInitialWait)
}

func (m *TrialMachine) enter(s TrialState) {
	m.state = s
	m.entered = m.clock.Now()
}

// State returns the current state tag.
func (m *TrialMachine) State() TrialState { return m.state }

// Trial returns the trial this machine is running.
func (m *TrialMachine) Trial() schedule.Trial { return m.trial }

// Task returns the resolved task config for the current trial.
func (m *TrialMachine) Task() schedule.TaskConfig { return m.task }

// Point exposes the motion simulator for the visual projection.
func (m *TrialMachine) Point() *motion.MovingPoint { return m.point }

// Reproduction exposes the reproduction sub-machine's state for the
// visual projection.
func (m *TrialMachine) Reproduction() *Reproduction { return m.reproduction }

// Done reports whether the trial has completed.
func (m *TrialMachine) Done() bool { return m.state == StateComplete }

// HandleIntent routes an input intent to the current state. States
// that are not interactive ignore it.
func (m *TrialMachine) HandleIntent(in Intent) {
	switch m.state {
	case StateFixationPreview:
		if in == IntentConfirm {
			m.enter(StateStartDelay)
		}

	case StateMoving:
		if in == IntentStop && m.point.IsMoving() {
			wasVisible := m.point.IsVisible()
			m.point.StopByUser()
			m.col.RecordSpacePress(true, wasVisible)
			m.actualDuration = m.elapsedMs(m.movementStart)
			m.dispatchAfterMotion(true)
		}

	case StateCrossInterstimulus:
		if in == IntentConfirm && m.clock.Since(m.entered) >= m.cfg.CrossDuration {
			m.estimation.Activate(m.actualDuration)
			m.enter(StateEstimation)
		}

	case StateEstimation:
		if m.estimation.HandleIntent(in) {
			m.col.RecordTimingEstimation(m.estimation.Result())
			m.finish(true)
		}

	case StateReproduction:
		if m.reproduction.HandleIntent(in) {
			m.col.RecordReproductionResults(m.reproduction.Result())
			m.finish(true)
		}
	}
}

// Update fires the elapsed-time transitions and advances the point
// by one frame while moving. Input intents for the same tick must be
// delivered before this is called.
func (m *TrialMachine) Update() {
	switch m.state {
	case StateInitialWait:
		if m.clock.Since(m.entered) >= m.cfg.InitialWait {
			m.enter(StateFixationPreview)
		}

	case StateStartDelay:
		if m.clock.Since(m.entered) >= m.startDelay {
			if m.trial.Task == schedule.TaskReproduction {
				m.reproduction.Activate(m.targetDuration())
				m.enter(StateReproduction)
			} else {
				m.point.StartMovement()
				m.movementStart = m.clock.Now()
				m.col.RecordMovementStart()
				m.col.RecordStimulusStart()
				m.enter(StateMoving)
			}
		}

	case StateMoving:
		m.point.Advance(1)
		if !m.occlusionLogged && m.point.OcclusionActive() {
			m.occlusionLogged = true
			m.col.RecordOcclusionStart(m.occlusionZone())
		}
		if m.point.IsFinished() && !m.point.StoppedByUser() {
			m.col.RecordMovementEnd()
			m.actualDuration = m.elapsedMs(m.movementStart)
			m.col.RecordTrajectoryDuration(m.actualDuration)
			m.dispatchAfterMotion(false)
		}

	case StatePostTrialSettle:
		if m.point.ShouldSwitchToNext() {
			m.finish(true)
		}

	case StateReproduction:
		m.reproduction.Update()
	}
}

// dispatchAfterMotion branches on the task kind once motion has
// ended. A user-stopped estimation trial passes through the
// user-gated cross; an auto-finished one enters estimation directly.
func (m *TrialMachine) dispatchAfterMotion(stoppedByUser bool) {
	if m.trial.Task == schedule.TaskEstimation {
		if stoppedByUser {
			m.enter(StateCrossInterstimulus)
			return
		}
		m.estimation.Activate(m.actualDuration)
		m.enter(StateEstimation)
		return
	}
	m.enter(StatePostTrialSettle)
}

func (m *TrialMachine) finish(completedNormally bool) {
	m.col.CompleteTrial(completedNormally)
	m.enter(StateComplete)
}

func (m *TrialMachine) targetDuration() float64 {
	if m.trial.Duration != nil {
		return *m.trial.Duration
	}
	return m.task.DefaultDuration
}

func (m *TrialMachine) occlusionZone() collector.OcclusionZone {
	start := m.traj.Locate(m.task.OcclusionKind.StartFraction())
	end := m.traj.Locate(1.0)
	return collector.OcclusionZone{
		StartSegment:  start.Segment,
		StartProgress: start.Progress,
		EndSegment:    end.Segment,
		EndProgress:   end.Progress,
	}
}

func (m *TrialMachine) elapsedMs(since time.Time) float64 {
	return float64(m.clock.Now().Sub(since)) / float64(time.Millisecond)
}
