package session

import (
	"github.com/percept-data/pursuit/internal/geom"
	"github.com/percept-data/pursuit/internal/schedule"
)

// VisualState is the side-effect-free projection of what a frontend
// should draw this frame. The engine never renders; it only reports.
type VisualState struct {
	Phase    TrialState
	SubState string

	TaskTitle string
	Fixation  schedule.FixationShape

	ShowFixation   bool
	ShowTrajectory bool
	ShowPoint      bool
	PointPosition  geom.Point

	ShowCircle bool
	ShowCross  bool
	ShowPrompt bool

	Progress       schedule.Progress
	ExperimentDone bool
}

// Visual projects the machine's current state onto a frame
// description. It reads state only, so callers may invoke it any
// number of times per tick.
func (m *TrialMachine) Visual() VisualState {
	v := VisualState{
		Phase:     m.state,
		TaskTitle: m.task.Title,
		Fixation:  m.task.Fixation,
	}

	switch m.state {
	case StateFixationPreview:
		v.ShowFixation = true
		v.ShowTrajectory = m.trial.Task.HasMotion()
		v.ShowPrompt = true

	case StateStartDelay:
		v.ShowFixation = true
		v.ShowTrajectory = m.trial.Task.HasMotion()

	case StateMoving, StatePostTrialSettle:
		v.ShowTrajectory = true
		v.ShowPoint = m.point.IsVisible()
		v.PointPosition = m.point.Position()

	case StateCrossInterstimulus:
		v.ShowCross = true
		v.ShowPrompt = true

	case StateEstimation:
		v.SubState = string(m.estimation.State())
		v.ShowCircle = m.estimation.State() == EstimationCircleWaiting
		v.ShowPrompt = v.ShowCircle

	case StateReproduction:
		v.SubState = string(m.reproduction.State())
		switch m.reproduction.State() {
		case ReproductionFirstCross, ReproductionSecondCross:
			v.ShowCross = true
			v.ShowPrompt = true
		case ReproductionCircle:
			v.ShowCircle = true
		case ReproductionResponse:
			v.ShowCircle = true
			v.ShowPrompt = true
		}
	}

	return v
}
