package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"goparam/domain/analysis"
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// WriteSuggestions writes rank, predicted_<target> and one column per parameter
func WriteSuggestions(w io.Writer, target string, rec *analysis.Recommendation) error {
	names := candidateParams(rec.Candidates)
	header := append([]string{"rank", "predicted_" + target}, names...)
	rows := [][]string{header}
	for _, c := range rec.Candidates {
		pred := ""
		if c.HasPrediction {
			pred = formatFloat(c.Predicted)
		}
		row := []string{strconv.Itoa(c.Rank), pred}
		for _, n := range names {
			row = append(row, c.Params[n].String())
		}
		rows = append(rows, row)
	}
	return writeAll(w, rows)
}

// WriteCounterfactuals writes the observed and flipped outcome per run
func WriteCounterfactuals(w io.Writer, c *analysis.CausalEstimate) error {
	t, y := c.Treatment, c.Target
	rows := [][]string{{"run", t + "_actual", t + "_counterfactual", y + "_actual", y + "_fitted", y + "_counterfactual", "delta"}}
	for _, cf := range c.Counterfactuals {
		rows = append(rows, []string{
			cf.Label,
			strconv.FormatFloat(cf.Treatment, 'g', -1, 64),
			strconv.FormatFloat(1-cf.Treatment, 'g', -1, 64),
			formatFloat(cf.Actual),
			formatFloat(cf.Observed),
			formatFloat(cf.Flipped),
			formatFloat(cf.Delta),
		})
	}
	return writeAll(w, rows)
}

// WriteImportance writes the per-feature ranking followed by the
// per-parameter totals, tagged by level
func WriteImportance(w io.Writer, imp *analysis.ImportanceReport) error {
	rows := [][]string{{"level", "name", "importance"}}
	for _, f := range imp.Ranking {
		rows = append(rows, []string{"feature", f.Feature, strconv.FormatFloat(f.Importance, 'f', 6, 64)})
	}
	for _, p := range imp.ByParameter {
		rows = append(rows, []string{"parameter", p.Param, strconv.FormatFloat(p.Importance, 'f', 6, 64)})
	}
	return writeAll(w, rows)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
