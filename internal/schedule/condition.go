package schedule

import (
	"strings"

	"github.com/percept-data/pursuit/internal/monitoring"
)

// Condition is the decoded parameter snapshot of a trajectory
// category code.
type Condition struct {
	Task     TaskKind `json:"task"`
	Speed    float64  `json:"speed"`
	Duration float64  `json:"duration_ms"`
	Code     string   `json:"code"`
}

// CleanCategory strips the disambiguating suffix some library
// categories carry ("C1S2D3_1" decodes as "C1S2D3").
func CleanCategory(category string) string {
	if i := strings.IndexByte(category, '_'); i >= 0 {
		return category[:i]
	}
	return category
}

// DecodeCondition parses a fixed-width six-character category code
// like "C1S2D3": character 2 selects the task kind (1 occlusion,
// 2 estimation, 3 reproduction), character 4 one of two calibrated
// speeds, character 6 one of three calibrated durations. Category
// names are external data, so the parser is permissive: malformed
// codes decode to the occlusion task, the slow speed, and the
// shortest duration, with a diagnostic log line.
func DecodeCondition(code string, speeds, durations []float64) Condition {
	cond := Condition{
		Task:     TaskOcclusionHalf,
		Speed:    pick(speeds, 0),
		Duration: pick(durations, 0),
		Code:     code,
	}
	if len(code) != 6 {
		monitoring.Logf("schedule: category code %q is not 6 characters, using defaults", code)
		return cond
	}

	switch code[1] {
	case '1':
		cond.Task = TaskOcclusionHalf
	case '2':
		cond.Task = TaskEstimation
	case '3':
		cond.Task = TaskReproduction
	default:
		monitoring.Logf("schedule: category code %q has unknown task digit %q", code, code[1])
	}

	switch code[3] {
	case '1':
		cond.Speed = pick(speeds, 0)
	case '2':
		cond.Speed = pick(speeds, 1)
	default:
		monitoring.Logf("schedule: category code %q has unknown speed digit %q", code, code[3])
	}

	switch code[5] {
	case '1':
		cond.Duration = pick(durations, 0)
	case '2':
		cond.Duration = pick(durations, 1)
	case '3':
		cond.Duration = pick(durations, 2)
	default:
		monitoring.Logf("schedule: category code %q has unknown duration digit %q", code, code[5])
	}

	return cond
}

func pick(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		if len(values) == 0 {
			return 0
		}
		return values[0]
	}
	return values[i]
}
