// Package summary aggregates trial records into per-block and
// per-condition descriptive statistics for the post-session report.
package summary

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/percept-data/pursuit/internal/collector"
)

// ConditionStats summarizes all trials that share a condition type.
type ConditionStats struct {
	Condition string `json:"condition"`
	Trials    int    `json:"trials"`

	MeanReactionTime float64 `json:"mean_reaction_time"`
	StdReactionTime  float64 `json:"std_reaction_time"`

	MeanEstimationRatio   float64 `json:"mean_estimation_ratio"`
	MeanEstimationError   float64 `json:"mean_estimation_error"`
	MeanReproductionRatio float64 `json:"mean_reproduction_ratio"`
	MeanReproductionError float64 `json:"mean_reproduction_error"`
}

// BlockStats summarizes one block.
type BlockStats struct {
	BlockNumber       int `json:"block_number"`
	Trials            int `json:"trials"`
	StoppedByUser     int `json:"stopped_by_user"`
	CompletedNormally int `json:"completed_normally"`

	MeanReactionTime float64 `json:"mean_reaction_time"`
	StdReactionTime  float64 `json:"std_reaction_time"`
}

// Report is the full descriptive summary of a session.
type Report struct {
	ParticipantID string           `json:"participant_id"`
	TotalTrials   int              `json:"total_trials"`
	Blocks        []BlockStats     `json:"blocks"`
	Conditions    []ConditionStats `json:"conditions"`
}

// Build aggregates the records into a Report. Trials without a given
// measurement are excluded from that measurement's statistics rather
// than counted as zero.
func Build(participantID string, records []collector.TrialRecord) Report {
	rep := Report{
		ParticipantID: participantID,
		TotalTrials:   len(records),
	}

	byBlock := map[int][]collector.TrialRecord{}
	byCondition := map[string][]collector.TrialRecord{}
	for _, rec := range records {
		byBlock[rec.BlockNumber] = append(byBlock[rec.BlockNumber], rec)
		byCondition[rec.ConditionType] = append(byCondition[rec.ConditionType], rec)
	}

	blockNumbers := make([]int, 0, len(byBlock))
	for n := range byBlock {
		blockNumbers = append(blockNumbers, n)
	}
	sort.Ints(blockNumbers)
	for _, n := range blockNumbers {
		rep.Blocks = append(rep.Blocks, buildBlockStats(n, byBlock[n]))
	}

	conditions := make([]string, 0, len(byCondition))
	for c := range byCondition {
		conditions = append(conditions, c)
	}
	sort.Strings(conditions)
	for _, c := range conditions {
		rep.Conditions = append(rep.Conditions, buildConditionStats(c, byCondition[c]))
	}

	return rep
}

func buildBlockStats(blockNumber int, records []collector.TrialRecord) BlockStats {
	bs := BlockStats{BlockNumber: blockNumber, Trials: len(records)}

	var reactions []float64
	for _, rec := range records {
		if rec.StoppedByUser {
			bs.StoppedByUser++
		}
		if rec.CompletedNormally {
			bs.CompletedNormally++
		}
		if rec.ReactionTime != nil {
			reactions = append(reactions, *rec.ReactionTime)
		}
	}
	bs.MeanReactionTime, bs.StdReactionTime = meanStd(reactions)
	return bs
}

func buildConditionStats(condition string, records []collector.TrialRecord) ConditionStats {
	cs := ConditionStats{Condition: condition, Trials: len(records)}

	var reactions, estRatios, estErrors, repRatios, repErrors []float64
	for _, rec := range records {
		if rec.ReactionTime != nil {
			reactions = append(reactions, *rec.ReactionTime)
		}
		if est := rec.TimingEstimation; est != nil {
			estRatios = append(estRatios, est.Ratio)
			estErrors = append(estErrors, est.Error)
		}
		if rr := rec.ReproductionResults; rr != nil {
			repRatios = append(repRatios, rr.Ratio)
			repErrors = append(repErrors, rr.Error)
		}
	}

	cs.MeanReactionTime, cs.StdReactionTime = meanStd(reactions)
	cs.MeanEstimationRatio = meanOrZero(estRatios)
	cs.MeanEstimationError = meanOrZero(estErrors)
	cs.MeanReproductionRatio = meanOrZero(repRatios)
	cs.MeanReproductionError = meanOrZero(repErrors)
	return cs
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		std = stat.StdDev(xs, nil)
	}
	return mean, std
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
