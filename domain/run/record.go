package run

import (
	"math"
	"sort"

	"goparam/domain/core"
)

// Record is one experiment execution: a parameter configuration plus the
// quality metrics it produced. Records are never mutated after ingestion.
type Record struct {
	Label     string             `json:"label"`
	Timestamp core.Timestamp     `json:"timestamp"`
	Params    map[string]Value   `json:"params"`
	Metrics   map[string]float64 `json:"metrics"`
	Source    string             `json:"source,omitempty"`
	TestCases int                `json:"test_cases,omitempty"`
}

// Validate checks that the record carries a configuration and at least one metric
func (r Record) Validate() error {
	present := 0
	for _, v := range r.Params {
		if !v.IsMissing() {
			present++
		}
	}
	if present == 0 {
		return core.NewMalformedRecordError(r.Label, "no parameters")
	}
	for _, m := range r.Metrics {
		if !math.IsNaN(m) {
			return nil
		}
	}
	return core.NewMalformedRecordError(r.Label, "no metrics")
}

// Param returns the value for name; missing values report false
func (r Record) Param(name string) (Value, bool) {
	v, ok := r.Params[name]
	if !ok || v.IsMissing() {
		return Value{}, false
	}
	return v, true
}

// Metric returns the score for name; NaN counts as missing
func (r Record) Metric(name string) (float64, bool) {
	m, ok := r.Metrics[name]
	if !ok || math.IsNaN(m) {
		return 0, false
	}
	return m, true
}

// ParamNames returns the record's parameter names, sorted
func (r Record) ParamNames() []string {
	names := make([]string, 0, len(r.Params))
	for k := range r.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
