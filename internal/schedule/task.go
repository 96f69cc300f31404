// Package schedule decides which trial runs next: it decodes
// condition categories, generates per-block trial sequences, and
// tracks the experiment cursor across blocks.
package schedule

// TaskKind identifies what a trial asks of the participant.
type TaskKind string

const (
	// TaskOcclusionHalf shows motion with the second half of the
	// path occluded; the participant stops the point.
	TaskOcclusionHalf TaskKind = "occlusion_half"

	// TaskOcclusionNone shows fully visible motion.
	TaskOcclusionNone TaskKind = "occlusion_none"

	// TaskEstimation shows motion and then asks the participant to
	// press when they judge the traversal duration to have elapsed
	// again.
	TaskEstimation TaskKind = "estimation"

	// TaskReproduction shows no motion; a cross/circle cue sequence
	// presents a target duration the participant reproduces.
	TaskReproduction TaskKind = "reproduction"
)

// HasMotion reports whether trials of this kind traverse a
// trajectory.
func (k TaskKind) HasMotion() bool {
	return k != TaskReproduction
}

// UsesSpeed reports whether trials of this kind carry an assigned
// speed.
func (k TaskKind) UsesSpeed() bool {
	return k == TaskOcclusionHalf || k == TaskOcclusionNone || k == TaskEstimation
}

// UsesDuration reports whether trials of this kind carry an assigned
// target duration.
func (k TaskKind) UsesDuration() bool {
	return k == TaskEstimation || k == TaskReproduction
}

// FixationShape is the marker drawn during the fixation preview.
type FixationShape string

const (
	FixationTriangle FixationShape = "triangle"
	FixationRhombus  FixationShape = "rhombus"
	FixationStar     FixationShape = "star"
	FixationCross    FixationShape = "cross"
)

// OcclusionKind names the fraction of the path that is hidden.
type OcclusionKind string

const (
	OcclusionHalf  OcclusionKind = "half"
	OcclusionThird OcclusionKind = "third"
)

// StartFraction returns the arc-length fraction at which the hidden
// window begins. The window always extends to the end of the path.
func (k OcclusionKind) StartFraction() float64 {
	switch k {
	case OcclusionThird:
		return 2.0 / 3.0
	default:
		return 0.5
	}
}

// TaskConfig carries the presentation parameters of a task kind.
type TaskConfig struct {
	Kind             TaskKind
	Title            string
	Fixation         FixationShape
	OcclusionEnabled bool
	OcclusionKind    OcclusionKind

	// DefaultDuration is the reproduction target in milliseconds
	// used when a trial carries no assigned duration.
	DefaultDuration float64
}

// DefaultTasks returns the calibrated task set.
func DefaultTasks() map[TaskKind]TaskConfig {
	return map[TaskKind]TaskConfig{
		TaskOcclusionHalf: {
			Kind:             TaskOcclusionHalf,
			Title:            "Occlusion (half path)",
			Fixation:         FixationTriangle,
			OcclusionEnabled: true,
			OcclusionKind:    OcclusionHalf,
		},
		TaskOcclusionNone: {
			Kind:          TaskOcclusionNone,
			Title:         "No occlusion",
			Fixation:      FixationRhombus,
			OcclusionKind: OcclusionHalf,
		},
		TaskEstimation: {
			Kind:          TaskEstimation,
			Title:         "Time estimation",
			Fixation:      FixationStar,
			OcclusionKind: OcclusionHalf,
		},
		TaskReproduction: {
			Kind:            TaskReproduction,
			Title:           "Time reproduction",
			Fixation:        FixationCross,
			OcclusionKind:   OcclusionHalf,
			DefaultDuration: 2000,
		},
	}
}

// TaskFor returns the config for kind, falling back to the occlusion
// task for unknown kinds.
func TaskFor(tasks map[TaskKind]TaskConfig, kind TaskKind) TaskConfig {
	if cfg, ok := tasks[kind]; ok {
		return cfg
	}
	return tasks[TaskOcclusionHalf]
}
