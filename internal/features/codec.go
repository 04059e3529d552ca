// Package features encodes mixed numeric/categorical run configurations
// into a fixed-width numeric matrix.
package features

import (
	"fmt"
	"sort"

	"goparam/domain/core"
	"goparam/domain/run"

	"github.com/montanaflynn/stats"
)

// ColumnKind distinguishes pass-through numeric columns from one-hot indicators
type ColumnKind int

const (
	ColumnNumeric ColumnKind = iota
	ColumnIndicator
)

// Column describes one encoded feature
type Column struct {
	Name     string
	Param    string
	Kind     ColumnKind
	Category string  // indicator columns only
	Median   float64 // numeric columns only, used for imputation
}

// Table is the encoded view of a run collection. The column set is derived
// once from the input records; row i encodes record i.
type Table struct {
	Columns []Column
	Rows    [][]float64
	Labels  []string
	Params  []string
}

// IndicatorName is the column name of a category indicator
func IndicatorName(param, category string) string {
	return param + "=" + category
}

// Encode builds the feature table for the given parameters. A parameter with
// any categorical value is one-hot encoded; a numeric parameter keeps its
// value and missing entries take the median of the observed values.
func Encode(records run.Collection, params []string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no usable rows to encode", core.ErrInsufficientData)
	}

	var columns []Column
	var used []string
	for _, p := range params {
		cols, err := columnsFor(records, p)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			columns = append(columns, cols...)
			used = append(used, p)
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: none of %d parameters produced a column", core.ErrNoFeatures, len(params))
	}

	t := &Table{
		Columns: columns,
		Rows:    make([][]float64, len(records)),
		Labels:  make([]string, len(records)),
		Params:  used,
	}
	for i, r := range records {
		t.Rows[i] = t.EncodeConfig(r.Params)
		t.Labels[i] = r.Label
	}
	return t, nil
}

func columnsFor(records run.Collection, param string) ([]Column, error) {
	var numbers []float64
	categories := make(map[string]struct{})
	categorical := false
	for _, r := range records {
		v, ok := r.Param(param)
		if !ok {
			continue
		}
		if f, isNum := v.Float(); isNum {
			numbers = append(numbers, f)
		} else {
			categorical = true
		}
		categories[v.String()] = struct{}{}
	}
	if len(categories) == 0 {
		return nil, nil
	}

	if categorical {
		names := make([]string, 0, len(categories))
		for c := range categories {
			names = append(names, c)
		}
		sort.Strings(names)
		cols := make([]Column, len(names))
		for i, c := range names {
			cols[i] = Column{Name: IndicatorName(param, c), Param: param, Kind: ColumnIndicator, Category: c}
		}
		return cols, nil
	}

	median, err := stats.Median(numbers)
	if err != nil {
		return nil, fmt.Errorf("median of %s: %w", param, err)
	}
	return []Column{{Name: param, Param: param, Kind: ColumnNumeric, Median: median}}, nil
}

// EncodeConfig encodes one configuration with the table's column set.
// Unseen categories give an all-zero indicator block; missing or
// non-numeric values in numeric columns take the stored median.
func (t *Table) EncodeConfig(params map[string]run.Value) []float64 {
	row := make([]float64, len(t.Columns))
	for j, c := range t.Columns {
		v := params[c.Param]
		switch c.Kind {
		case ColumnIndicator:
			if !v.IsMissing() && v.String() == c.Category {
				row[j] = 1
			}
		default:
			if f, ok := v.Float(); ok {
				row[j] = f
			} else {
				row[j] = c.Median
			}
		}
	}
	return row
}

// Names returns the column names in order
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Name
	}
	return out
}

func (t *Table) NumRows() int { return len(t.Rows) }
func (t *Table) NumCols() int { return len(t.Columns) }

// Column returns a copy of column j
func (t *Table) Column(j int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out
}

// ColumnIndex returns the index of the named column, or -1
func (t *Table) ColumnIndex(name string) int {
	for j, c := range t.Columns {
		if c.Name == name {
			return j
		}
	}
	return -1
}

// ParamColumns groups column indices by source parameter, in parameter order
func (t *Table) ParamColumns() map[string][]int {
	out := make(map[string][]int, len(t.Params))
	for j, c := range t.Columns {
		out[c.Param] = append(out[c.Param], j)
	}
	return out
}

// Subset returns a table holding only the given rows, sharing column metadata
func (t *Table) Subset(rows []int) *Table {
	sub := &Table{
		Columns: t.Columns,
		Rows:    make([][]float64, len(rows)),
		Labels:  make([]string, len(rows)),
		Params:  t.Params,
	}
	for i, r := range rows {
		sub.Rows[i] = t.Rows[r]
		sub.Labels[i] = t.Labels[r]
	}
	return sub
}
