package app

import (
	"goparam/domain/analysis"
	"goparam/domain/run"

	"github.com/montanaflynn/stats"
)

// Summarize builds the descriptive overview of a run collection: time span,
// per-metric distribution and per-parameter cardinality.
func Summarize(records run.Collection, excluded []run.Exclusion, target string) analysis.DatasetSummary {
	summary := analysis.DatasetSummary{Runs: len(records), Excluded: excluded}

	for _, r := range records {
		if r.Timestamp.IsZero() {
			continue
		}
		if summary.From.IsZero() || r.Timestamp.Before(summary.From) {
			summary.From = r.Timestamp
		}
		if summary.To.IsZero() || r.Timestamp.After(summary.To) {
			summary.To = r.Timestamp
		}
	}

	for _, name := range records.MetricNames() {
		var values stats.Float64Data
		for _, r := range records {
			if m, ok := r.Metric(name); ok {
				values = append(values, m)
			}
		}
		if len(values) == 0 {
			continue
		}
		ms := analysis.MetricSummary{Name: name, Count: len(values)}
		ms.Mean, _ = values.Mean()
		ms.Median, _ = values.Median()
		ms.Min, _ = values.Min()
		ms.Max, _ = values.Max()
		if len(values) > 1 {
			ms.StdDev, _ = values.StandardDeviationSample()
		}
		summary.Metrics = append(summary.Metrics, ms)
	}

	for _, name := range records.ParamNames() {
		ps := analysis.ParamSummary{Name: name, Numeric: true}
		distinct := make(map[string]struct{})
		for _, r := range records {
			v, ok := r.Param(name)
			if !ok {
				ps.Missing++
				continue
			}
			if !v.IsNumber() {
				ps.Numeric = false
			}
			distinct[v.String()] = struct{}{}
		}
		ps.Distinct = len(distinct)
		summary.Params = append(summary.Params, ps)
	}

	if i := records.Best(target); i >= 0 {
		summary.BestLabel = records[i].Label
		summary.BestValue, _ = records[i].Metric(target)
	}
	return summary
}
