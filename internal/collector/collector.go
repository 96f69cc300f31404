// Package collector accumulates per-trial timestamped measurements.
// It exposes a write-only recording API: the state machines call
// Record* setters as events happen, and the finished records form an
// append-only history.
package collector

import (
	"time"

	"github.com/percept-data/pursuit/internal/monitoring"
	"github.com/percept-data/pursuit/internal/timeutil"
)

// EstimationResult is the outcome of a time-estimation sub-task.
type EstimationResult struct {
	ActualDuration    float64 `json:"actual_duration"`
	EstimatedDuration float64 `json:"estimated_duration"`
	Error             float64 `json:"estimation_error"`
	AbsError          float64 `json:"estimation_error_abs"`
	Ratio             float64 `json:"estimation_ratio"`
}

// ReproductionResult is the outcome of a duration-reproduction
// sub-task.
type ReproductionResult struct {
	TargetDuration     float64 `json:"target_duration"`
	ReproducedDuration float64 `json:"reproduced_duration"`
	Error              float64 `json:"reproduction_error"`
	AbsError           float64 `json:"reproduction_error_abs"`
	Ratio              float64 `json:"reproduction_ratio"`
	StartDelay         float64 `json:"start_delay"`
}

// OcclusionZone records where along the path the point was hidden.
type OcclusionZone struct {
	StartSegment  int     `json:"start_segment"`
	StartProgress float64 `json:"start_progress"`
	EndSegment    int     `json:"end_segment"`
	EndProgress   float64 `json:"end_progress"`
}

// TrialRecord is one row of collected data. All times are
// milliseconds since the collector's epoch; optional fields are nil
// until their event occurs. Once appended to the history a record is
// never mutated.
type TrialRecord struct {
	TrialNumber  int `json:"trial_number"`
	BlockNumber  int `json:"block_number"`
	TrialInBlock int `json:"trial_in_block"`
	DisplayOrder int `json:"display_order"`

	TrajectoryType   string   `json:"trajectory_type"`
	Duration         float64  `json:"duration"`
	Speed            float64  `json:"speed"`
	AssignedSpeed    *float64 `json:"assigned_speed"`
	AssignedDuration *float64 `json:"assigned_duration"`
	TrajectoryNumber int      `json:"trajectory_number"`
	ConditionType    string   `json:"condition_type"`
	StartDelay       float64  `json:"start_delay"`

	StartTime          float64  `json:"start_time"`
	MovementStartTime  *float64 `json:"movement_start_time"`
	StimulusStartTime  *float64 `json:"stimulus_start_time"`
	MovementEndTime    *float64 `json:"movement_end_time"`
	OcclusionStartTime *float64 `json:"occlusion_start_time"`

	ReferenceResponseTime    *float64 `json:"reference_response_time"`
	StimulusPresentationTime *float64 `json:"stimulus_presentation_time"`
	TrajectoryCompletionTime *float64 `json:"trajectory_completion_time"`

	ActualResponseTimeMovement *float64 `json:"actual_response_time_movement"`
	ActualResponseTimeStimulus *float64 `json:"actual_response_time_stimulus"`
	SpacePressTime             *float64 `json:"space_press_time"`
	ReactionTime               *float64 `json:"reaction_time"`

	StoppedByUser     bool `json:"stopped_by_user"`
	CompletedNormally bool `json:"completed_normally"`

	ActualTrajectoryDuration *float64            `json:"actual_trajectory_duration"`
	TimingEstimation         *EstimationResult   `json:"timing_estimation"`
	ReproductionResults      *ReproductionResult `json:"reproduction_results"`
	OcclusionZone            *OcclusionZone      `json:"occlusion_zone"`
	WasVisibleWhenStopped    bool                `json:"was_visible_when_stopped"`
}

// StartParams is the fixed field set a new trial record opens with.
type StartParams struct {
	TrajectoryType   string
	Duration         float64
	Speed            float64
	TrajectoryNumber int
	ConditionType    string
	BlockNumber      int
	TrialInBlock     int
	DisplayOrder     int
	AssignedSpeed    *float64
	AssignedDuration *float64
	StartDelay       float64
}

// Collector owns the in-progress record and the per-block history.
type Collector struct {
	clock timeutil.Clock
	epoch time.Time

	participantID string
	blockNumber   int
	trialNumber   int

	current   *TrialRecord
	completed bool
	records   []TrialRecord
}

// NewCollector creates a Collector whose timestamps are measured
// from the moment of creation.
func NewCollector(clock timeutil.Clock, participantID string, blockNumber int) *Collector {
	return &Collector{
		clock:         clock,
		epoch:         clock.Now(),
		participantID: participantID,
		blockNumber:   blockNumber,
	}
}

// ParticipantID returns the participant this collector records for.
func (c *Collector) ParticipantID() string { return c.participantID }

// BlockNumber returns the block currently being recorded.
func (c *Collector) BlockNumber() int { return c.blockNumber }

// TrialNumber returns the monotonic trial counter.
func (c *Collector) TrialNumber() int { return c.trialNumber }

func (c *Collector) nowMs() float64 {
	return float64(c.clock.Since(c.epoch)) / float64(time.Millisecond)
}

// StartTrial opens a new record and increments the trial counter.
func (c *Collector) StartTrial(p StartParams) {
	c.trialNumber++
	c.completed = false
	c.current = &TrialRecord{
		TrialNumber:           c.trialNumber,
		BlockNumber:           p.BlockNumber,
		TrialInBlock:          p.TrialInBlock,
		DisplayOrder:          p.DisplayOrder,
		TrajectoryType:        p.TrajectoryType,
		Duration:              p.Duration,
		Speed:                 p.Speed,
		AssignedSpeed:         p.AssignedSpeed,
		AssignedDuration:      p.AssignedDuration,
		TrajectoryNumber:      p.TrajectoryNumber,
		ConditionType:         p.ConditionType,
		StartDelay:            p.StartDelay,
		StartTime:             c.nowMs(),
		WasVisibleWhenStopped: true,
	}
}

func (c *Collector) active(op string) *TrialRecord {
	if c.current == nil {
		monitoring.Logf("collector: %s with no trial in progress", op)
		return nil
	}
	return c.current
}

// RecordMovementStart stamps the start of point motion.
func (c *Collector) RecordMovementStart() {
	if r := c.active("RecordMovementStart"); r != nil {
		t := c.nowMs()
		r.MovementStartTime = &t
	}
}

// RecordStimulusStart stamps the start of stimulus presentation.
func (c *Collector) RecordStimulusStart() {
	if r := c.active("RecordStimulusStart"); r != nil {
		t := c.nowMs()
		r.StimulusStartTime = &t
	}
}

// RecordMovementEnd stamps the end of motion. Idempotent: the first
// recorded value wins.
func (c *Collector) RecordMovementEnd() {
	if r := c.active("RecordMovementEnd"); r != nil && r.MovementEndTime == nil {
		t := c.nowMs()
		r.MovementEndTime = &t
	}
}

// RecordSpacePress stamps the participant's response key. It also
// closes the movement window if still open and derives the reaction
// times from the movement and stimulus start stamps.
func (c *Collector) RecordSpacePress(stoppedByUser, wasVisible bool) {
	r := c.active("RecordSpacePress")
	if r == nil {
		return
	}
	now := c.nowMs()
	r.SpacePressTime = &now
	r.StoppedByUser = stoppedByUser
	r.WasVisibleWhenStopped = wasVisible
	if r.MovementEndTime == nil {
		end := now
		r.MovementEndTime = &end
	}
	if r.MovementStartTime != nil {
		elapsed := now - *r.MovementStartTime
		r.ActualTrajectoryDuration = &elapsed
		movement := elapsed
		r.ActualResponseTimeMovement = &movement
		reaction := elapsed
		r.ReactionTime = &reaction
	}
	if r.StimulusStartTime != nil {
		stim := now - *r.StimulusStartTime
		r.ActualResponseTimeStimulus = &stim
	}
}

// RecordReferenceTimes stores the analytic reference durations for
// the trial's trajectory and speed.
func (c *Collector) RecordReferenceTimes(movementToTarget, stimulusPresentation, trajectoryCompletion float64) {
	if r := c.active("RecordReferenceTimes"); r != nil {
		r.ReferenceResponseTime = &movementToTarget
		r.StimulusPresentationTime = &stimulusPresentation
		r.TrajectoryCompletionTime = &trajectoryCompletion
	}
}

// RecordOcclusionStart stamps the moment the point became hidden and
// stores the occlusion window.
func (c *Collector) RecordOcclusionStart(zone OcclusionZone) {
	if r := c.active("RecordOcclusionStart"); r != nil {
		t := c.nowMs()
		r.OcclusionStartTime = &t
		z := zone
		r.OcclusionZone = &z
	}
}

// RecordTrajectoryDuration stores the measured traversal duration.
func (c *Collector) RecordTrajectoryDuration(ms float64) {
	if r := c.active("RecordTrajectoryDuration"); r != nil {
		r.ActualTrajectoryDuration = &ms
	}
}

// RecordTimingEstimation stores the estimation sub-task result.
func (c *Collector) RecordTimingEstimation(res EstimationResult) {
	if r := c.active("RecordTimingEstimation"); r != nil {
		r.TimingEstimation = &res
	}
}

// RecordReproductionResults stores the reproduction sub-task result.
func (c *Collector) RecordReproductionResults(res ReproductionResult) {
	if r := c.active("RecordReproductionResults"); r != nil {
		r.ReproductionResults = &res
	}
}

// CompleteTrial finalizes the in-progress record and appends an
// immutable copy to the history. Completing twice is a no-op.
func (c *Collector) CompleteTrial(completedNormally bool) {
	r := c.active("CompleteTrial")
	if r == nil {
		return
	}
	if c.completed {
		monitoring.Logf("collector: trial %d already completed", r.TrialNumber)
		return
	}
	r.CompletedNormally = completedNormally
	if completedNormally && r.MovementEndTime == nil {
		t := c.nowMs()
		r.MovementEndTime = &t
	}
	c.records = append(c.records, *r)
	c.completed = true
}

// Records returns a copy of the completed records for this block.
func (c *Collector) Records() []TrialRecord {
	out := make([]TrialRecord, len(c.records))
	copy(out, c.records)
	return out
}

// PartialRecord returns a snapshot of the in-progress record, if one
// exists and has not been completed. Used to flush best-effort data
// on early exit.
func (c *Collector) PartialRecord() (TrialRecord, bool) {
	if c.current == nil || c.completed {
		return TrialRecord{}, false
	}
	return *c.current, true
}

// ResetBlock clears the history and trial counter for a new block.
func (c *Collector) ResetBlock(blockNumber int) {
	c.blockNumber = blockNumber
	c.records = nil
	c.trialNumber = 0
	c.current = nil
	c.completed = false
}
