package summary

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes the report as a standalone HTML page with one
// chart per measure.
func RenderHTML(w io.Writer, rep Report) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Session summary: %s", rep.ParticipantID)
	page.AddCharts(
		reactionChart(rep),
		ratioChart(rep),
		completionChart(rep),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render summary page: %w", err)
	}
	return nil
}

// reactionChart plots mean reaction time per condition with the
// standard deviation alongside.
func reactionChart(rep Report) components.Charter {
	var x []string
	var means, stds []opts.BarData
	for _, cs := range rep.Conditions {
		x = append(x, cs.Condition)
		means = append(means, opts.BarData{Value: cs.MeanReactionTime})
		stds = append(stds, opts.BarData{Value: cs.StdReactionTime})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Reaction time by condition",
			Subtitle: fmt.Sprintf("participant=%s trials=%d", rep.ParticipantID, rep.TotalTrials),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	bar.SetXAxis(x).
		AddSeries("mean", means, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("std", stds)
	return bar
}

// ratioChart plots the mean estimation and reproduction ratios per
// condition; 1.0 is a perfect judgment.
func ratioChart(rep Report) components.Charter {
	var x []string
	var est, repro []opts.BarData
	for _, cs := range rep.Conditions {
		x = append(x, cs.Condition)
		est = append(est, opts.BarData{Value: cs.MeanEstimationRatio})
		repro = append(repro, opts.BarData{Value: cs.MeanReproductionRatio})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Timing judgment ratios", Subtitle: "1.0 = veridical"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("estimation", est).
		AddSeries("reproduction", repro)
	return bar
}

// completionChart plots per-block trial counts and how they ended.
func completionChart(rep Report) components.Charter {
	var x []string
	var totals, stopped, completed []opts.BarData
	for _, bs := range rep.Blocks {
		x = append(x, fmt.Sprintf("block %d", bs.BlockNumber))
		totals = append(totals, opts.BarData{Value: bs.Trials})
		stopped = append(stopped, opts.BarData{Value: bs.StoppedByUser})
		completed = append(completed, opts.BarData{Value: bs.CompletedNormally})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trials per block"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("trials", totals).
		AddSeries("stopped", stopped).
		AddSeries("completed", completed)
	return bar
}
