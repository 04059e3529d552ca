package run

import (
	"fmt"
	"sort"
	"strings"

	"goparam/domain/core"
)

// KeySeparator joins canonical parameter strings into a configuration key
const KeySeparator = "\x1f"

// Collection is the immutable, ordered set of records one analysis works on
type Collection []Record

// Exclusion records why a record was left out of the analysis
type Exclusion struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// Sanitize drops malformed records and reports why each was dropped.
// The order of the surviving records is preserved.
func Sanitize(records []Record) (Collection, []Exclusion) {
	kept := make(Collection, 0, len(records))
	var excluded []Exclusion
	for i, r := range records {
		if err := r.Validate(); err != nil {
			label := r.Label
			if label == "" {
				label = fmt.Sprintf("#%d", i)
			}
			excluded = append(excluded, Exclusion{Label: label, Reason: err.Error()})
			continue
		}
		kept = append(kept, r)
	}
	return kept, excluded
}

// ParamNames returns the union of parameter names, sorted
func (c Collection) ParamNames() []string {
	seen := make(map[string]struct{})
	for _, r := range c {
		for k, v := range r.Params {
			if !v.IsMissing() {
				seen[k] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// MetricNames returns the union of metric names, sorted
func (c Collection) MetricNames() []string {
	seen := make(map[string]struct{})
	for _, r := range c {
		for k := range r.Metrics {
			if _, ok := r.Metric(k); ok {
				seen[k] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// HasMetric reports whether any record carries the metric
func (c Collection) HasMetric(name string) bool {
	for _, r := range c {
		if _, ok := r.Metric(name); ok {
			return true
		}
	}
	return false
}

// WithTarget keeps the records whose target metric is present, in order,
// and returns the aligned target vector.
func (c Collection) WithTarget(metric string) (Collection, []float64) {
	rows := make(Collection, 0, len(c))
	y := make([]float64, 0, len(c))
	for _, r := range c {
		if m, ok := r.Metric(metric); ok {
			rows = append(rows, r)
			y = append(y, m)
		}
	}
	return rows, y
}

// Values returns the column of values for one parameter (missing included)
func (c Collection) Values(param string) []Value {
	out := make([]Value, len(c))
	for i, r := range c {
		out[i] = r.Params[param]
	}
	return out
}

// Best returns the index of the record with the highest target, or -1
func (c Collection) Best(metric string) int {
	best := -1
	var bestVal float64
	for i, r := range c {
		m, ok := r.Metric(metric)
		if !ok {
			continue
		}
		if best < 0 || m > bestVal {
			best, bestVal = i, m
		}
	}
	return best
}

// ConfigKey is the identity of a configuration: canonical value strings in
// parameter order, missing values as empty strings.
func ConfigKey(params map[string]Value, names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = params[n].String()
	}
	return strings.Join(parts, KeySeparator)
}

// ConfigKeys returns the set of configuration identities in the collection
func (c Collection) ConfigKeys(names []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(c))
	for _, r := range c {
		keys[ConfigKey(r.Params, names)] = struct{}{}
	}
	return keys
}

// ContentHash hashes the canonical content of the collection. Record order
// does not change the hash.
func (c Collection) ContentHash() core.Hash {
	lines := make([]string, len(c))
	params := c.ParamNames()
	metrics := c.MetricNames()
	for i, r := range c {
		var b strings.Builder
		b.WriteString(ConfigKey(r.Params, params))
		for _, m := range metrics {
			b.WriteString(KeySeparator)
			if v, ok := r.Metric(m); ok {
				b.WriteString(FormatNumber(v))
			}
		}
		lines[i] = b.String()
	}
	sort.Strings(lines)
	header := strings.Join(params, ",") + "|" + strings.Join(metrics, ",")
	return core.NewHash([]byte(header + "\n" + strings.Join(lines, "\n")))
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
