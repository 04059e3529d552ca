// Package report renders analysis reports as markdown, HTML, JSON and CSV.
package report

import (
	"fmt"
	"sort"
	"strings"

	"goparam/domain/analysis"
	"goparam/domain/run"
)

// Markdown renders the full report as a markdown document
func Markdown(r *analysis.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Parameter analysis: %s\n\n", r.Target)
	fmt.Fprintf(&b, "Report `%s`, fingerprint `%s`, seed %d, model %s.\n\n",
		r.ID, r.Fingerprint.Fingerprint.Short(), r.Fingerprint.Seed, r.Fingerprint.ModelKind)

	writeSummary(&b, r)
	if r.Importance != nil {
		writeImportance(&b, r.Importance)
	}
	if r.Recommendation != nil {
		writeRecommendation(&b, r.Target, r.Recommendation)
	}
	if r.Causal != nil {
		writeCausal(&b, r.Causal)
	}
	return b.String()
}

func writeSummary(b *strings.Builder, r *analysis.Report) {
	s := r.Summary
	b.WriteString("## Dataset\n\n")
	fmt.Fprintf(b, "- Runs analysed: %d\n", s.Runs)
	if len(s.Excluded) > 0 {
		fmt.Fprintf(b, "- Excluded: %d\n", len(s.Excluded))
	}
	if !s.From.IsZero() && !s.To.IsZero() {
		fmt.Fprintf(b, "- Period: %s to %s\n", s.From.Time().Format("2006-01-02"), s.To.Time().Format("2006-01-02"))
	}
	if s.BestLabel != "" {
		fmt.Fprintf(b, "- Best run: %s (%s = %.4f)\n", s.BestLabel, r.Target, s.BestValue)
	}
	b.WriteString("\n")

	if len(s.Metrics) > 0 {
		b.WriteString("| Metric | n | Mean | Median | Std | Min | Max |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, m := range s.Metrics {
			fmt.Fprintf(b, "| %s | %d | %.3f | %.3f | %.3f | %.3f | %.3f |\n",
				m.Name, m.Count, m.Mean, m.Median, m.StdDev, m.Min, m.Max)
		}
		b.WriteString("\n")
	}
	if len(s.Params) > 0 {
		b.WriteString("| Parameter | Distinct | Missing | Type |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, p := range s.Params {
			kind := "categorical"
			if p.Numeric {
				kind = "numeric"
			}
			fmt.Fprintf(b, "| %s | %d | %d | %s |\n", p.Name, p.Distinct, p.Missing, kind)
		}
		b.WriteString("\n")
	}
	for _, e := range s.Excluded {
		fmt.Fprintf(b, "> excluded %s: %s\n", e.Label, e.Reason)
	}
	if len(s.Excluded) > 0 {
		b.WriteString("\n")
	}
}

func writeOutcome(b *strings.Builder, o analysis.Outcome) bool {
	fmt.Fprintf(b, "Status: **%s**", o.Status)
	if o.Reason != "" {
		fmt.Fprintf(b, " (%s)", o.Reason)
	}
	b.WriteString("\n\n")
	for _, w := range o.Warnings {
		fmt.Fprintf(b, "> warning: %s\n", w)
	}
	if len(o.Warnings) > 0 {
		b.WriteString("\n")
	}
	return o.Ran()
}

func writeImportance(b *strings.Builder, imp *analysis.ImportanceReport) {
	b.WriteString("## Parameter importance\n\n")
	if !writeOutcome(b, imp.Outcome) {
		return
	}
	m := imp.Model
	fmt.Fprintf(b, "Surrogate %s with %d estimators on %d rows and %d features.", m.Kind, m.Estimators, m.Rows, m.Features)
	if m.HasCV {
		fmt.Fprintf(b, " %d-fold CV R² = %.3f ± %.3f.", m.CVFolds, m.CVR2, m.CVR2Std)
	}
	if m.LowConfidence {
		b.WriteString(" Low confidence.")
	}
	b.WriteString("\n\n")

	b.WriteString("| Rank | Parameter | Mean abs SHAP |\n|---|---|---|\n")
	for i, p := range imp.ByParameter {
		fmt.Fprintf(b, "| %d | %s | %.4f |\n", i+1, p.Param, p.Importance)
	}
	b.WriteString("\n")

	if len(imp.Ranking) > len(imp.ByParameter) {
		b.WriteString("| Feature | Mean abs SHAP |\n|---|---|\n")
		for _, f := range imp.Ranking {
			fmt.Fprintf(b, "| %s | %.4f |\n", f.Feature, f.Importance)
		}
		b.WriteString("\n")
	}

	for _, pd := range imp.Partial {
		fmt.Fprintf(b, "Partial dependence of %s: ", pd.Feature)
		parts := make([]string, len(pd.Grid))
		for i := range pd.Grid {
			parts[i] = fmt.Sprintf("%s → %.3f", run.FormatNumber(pd.Grid[i]), pd.Average[i])
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n\n")
	}
	for _, d := range imp.Dependence {
		if d.InteractsWith != "" {
			fmt.Fprintf(b, "%s interacts most with %s.\n\n", d.Feature, d.InteractsWith)
		}
	}
}

func writeRecommendation(b *strings.Builder, target string, rec *analysis.Recommendation) {
	b.WriteString("## Suggested configurations\n\n")
	if !writeOutcome(b, rec.Outcome) {
		return
	}
	fmt.Fprintf(b, "Ranked by %s over %d sampled candidates.\n\n", rec.Source, rec.Sampled)

	names := candidateParams(rec.Candidates)
	b.WriteString("| Rank | predicted " + target + " |")
	for _, n := range names {
		b.WriteString(" " + n + " |")
	}
	b.WriteString("\n|---|---|" + strings.Repeat("---|", len(names)) + "\n")
	for _, c := range rec.Candidates {
		pred := "n/a"
		if c.HasPrediction {
			pred = fmt.Sprintf("%.4f", c.Predicted)
		}
		fmt.Fprintf(b, "| %d | %s |", c.Rank, pred)
		for _, n := range names {
			b.WriteString(" " + c.Params[n].String() + " |")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeCausal(b *strings.Builder, c *analysis.CausalEstimate) {
	b.WriteString("## Causal effect\n\n")
	if !writeOutcome(b, c.Outcome) {
		return
	}
	fmt.Fprintf(b, "Treatment `%s` on %s: %d of %d runs treated.\n\n", c.Rule, c.Target, c.Treated, c.Rows)
	fmt.Fprintf(b, "- ATE: **%+.4f** (se %.4f, p %.4f)\n", c.ATE, c.StdErr, c.PValue)
	if len(c.Confounders) > 0 {
		fmt.Fprintf(b, "- Adjusted for: %s\n", strings.Join(c.Confounders, ", "))
	}
	b.WriteString("\n")

	if len(c.Refutations) > 0 {
		b.WriteString("| Refutation | New effect | Simulations | Passed |\n|---|---|---|---|\n")
		for _, r := range c.Refutations {
			fmt.Fprintf(b, "| %s | %+.4f | %d | %t |\n", r.Method, r.NewEffect, r.Simulations, r.Passed)
		}
		b.WriteString("\n")
	}
	if len(c.Counterfactuals) > 0 {
		b.WriteString("| Run | Treatment | Actual | Fitted | Counterfactual | Delta |\n|---|---|---|---|---|---|\n")
		for _, cf := range c.Counterfactuals {
			fmt.Fprintf(b, "| %s | %g | %.4f | %.4f | %.4f | %+.4f |\n",
				cf.Label, cf.Treatment, cf.Actual, cf.Observed, cf.Flipped, cf.Delta)
		}
		b.WriteString("\n")
	}
}

func candidateParams(cands []analysis.Candidate) []string {
	seen := make(map[string]struct{})
	for _, c := range cands {
		for k := range c.Params {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
