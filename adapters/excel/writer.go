package excel

import (
	"fmt"
	"log"
	"sort"

	"goparam/domain/run"

	"github.com/xuri/excelize/v2"
)

// WriteRuns stores records as a Sheet1 table that DataReader reads back:
// label, timestamp, source, test_cases, one column per parameter, then one
// metric_ column per metric.
func WriteRuns(path string, records run.Collection) error {
	f := excelize.NewFile()
	defer f.Close()

	params := records.ParamNames()
	metrics := records.MetricNames()
	sort.Strings(metrics)

	header := []interface{}{"label", "timestamp", "source", "test_cases"}
	for _, p := range params {
		header = append(header, p)
	}
	for _, m := range metrics {
		header = append(header, MetricPrefix+m)
	}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		row := []interface{}{r.Label, "", r.Source, r.TestCases}
		if !r.Timestamp.IsZero() {
			row[1] = r.Timestamp.Format()
		}
		for _, p := range params {
			v, ok := r.Param(p)
			switch {
			case !ok:
				row = append(row, "")
			case v.IsNumber():
				f, _ := v.Float()
				row = append(row, f)
			default:
				row = append(row, v.String())
			}
		}
		for _, m := range metrics {
			if v, ok := r.Metric(m); ok {
				row = append(row, v)
			} else {
				row = append(row, "")
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	log.Printf("[DataWriter] wrote %d runs to %s", len(records), path)
	return nil
}
