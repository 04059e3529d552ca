package causal

import (
	"fmt"
	"math"
	"sort"

	"goparam/domain/analysis"
	"goparam/domain/run"

	"github.com/montanaflynn/stats"
)

// treatment is a parameter reduced to a 0/1 indicator per row
type treatment struct {
	param  string
	rule   string
	values []float64
}

func (t *treatment) treated() int {
	n := 0
	for _, v := range t.values {
		if v == 1 {
			n++
		}
	}
	return n
}

// paramProfile holds the distinct observed values of one parameter
type paramProfile struct {
	name     string
	numeric  bool
	distinct []string // canonical strings, sorted
	numbers  []float64
}

func profile(rows run.Collection, name string) paramProfile {
	p := paramProfile{name: name, numeric: true}
	seen := make(map[string]struct{})
	for _, r := range rows {
		v, ok := r.Param(name)
		if !ok {
			continue
		}
		if f, isNum := v.Float(); isNum {
			p.numbers = append(p.numbers, f)
		} else {
			p.numeric = false
		}
		if _, dup := seen[v.String()]; !dup {
			seen[v.String()] = struct{}{}
			p.distinct = append(p.distinct, v.String())
		}
	}
	if p.numeric {
		sort.Slice(p.distinct, func(a, b int) bool {
			return parse(p.distinct[a]) < parse(p.distinct[b])
		})
	} else {
		sort.Strings(p.distinct)
	}
	return p
}

func parse(s string) float64 {
	f, _ := run.ParseValue(s).Float()
	return f
}

// selectTreatment applies the selection policy: an explicit override when it
// names a usable parameter, else the first two-valued parameter, else the
// most positively deviating category, else the numeric parameter with the
// highest spread split at its median.
func selectTreatment(rows run.Collection, y []float64, override string, outcome *analysis.Outcome) *treatment {
	names := rows.ParamNames()
	profiles := make(map[string]paramProfile, len(names))
	for _, n := range names {
		profiles[n] = profile(rows, n)
	}

	if override != "" {
		p, ok := profiles[override]
		switch {
		case !ok:
			outcome.Warn(fmt.Sprintf("treatment %q not among parameters %v, selecting automatically", override, names))
		case len(p.distinct) < 2:
			outcome.Warn(fmt.Sprintf("treatment %q has a single value, selecting automatically", override))
		default:
			return binarize(rows, y, p)
		}
	}

	for _, n := range names {
		if p := profiles[n]; len(p.distinct) == 2 {
			return twoValued(rows, p)
		}
	}

	var categorical []paramProfile
	for _, n := range names {
		if p := profiles[n]; !p.numeric && len(p.distinct) >= 2 {
			categorical = append(categorical, p)
		}
	}
	if t := bestCategory(rows, y, categorical); t != nil {
		return t
	}

	var best *paramProfile
	bestSpread := 0.0
	for _, n := range names {
		p := profiles[n]
		if !p.numeric || len(p.distinct) < 2 {
			continue
		}
		sd, err := stats.StandardDeviationSample(p.numbers)
		if err != nil {
			continue
		}
		if best == nil || sd > bestSpread {
			best, bestSpread = &p, sd
		}
	}
	if best != nil {
		return medianSplit(rows, *best)
	}
	return nil
}

// binarize turns an explicitly chosen parameter into an indicator
func binarize(rows run.Collection, y []float64, p paramProfile) *treatment {
	switch {
	case len(p.distinct) == 2:
		return twoValued(rows, p)
	case p.numeric:
		return medianSplit(rows, p)
	default:
		if t := bestCategory(rows, y, []paramProfile{p}); t != nil {
			return t
		}
		return indicator(rows, p.name, p.distinct[len(p.distinct)-1], fmt.Sprintf("%s == %q (vs rest)", p.name, p.distinct[len(p.distinct)-1]))
	}
}

// twoValued maps the larger (or later sorted) value to 1
func twoValued(rows run.Collection, p paramProfile) *treatment {
	lo, hi := p.distinct[0], p.distinct[1]
	rule := fmt.Sprintf("%s == %s (vs %s)", p.name, hi, lo)
	if !p.numeric {
		rule = fmt.Sprintf("%s == %q (vs %q)", p.name, hi, lo)
	}
	return indicator(rows, p.name, hi, rule)
}

// bestCategory finds the category, over groups of at least two runs, whose
// mean target deviates most positively from the overall mean.
func bestCategory(rows run.Collection, y []float64, params []paramProfile) *treatment {
	overall, err := stats.Mean(y)
	if err != nil {
		return nil
	}
	var bestParam, bestCat string
	bestDelta := math.Inf(-1)
	for _, p := range params {
		for _, c := range p.distinct {
			var group []float64
			for i, r := range rows {
				if v, ok := r.Param(p.name); ok && v.String() == c {
					group = append(group, y[i])
				}
			}
			if len(group) < 2 {
				continue
			}
			m, _ := stats.Mean(group)
			if delta := m - overall; delta > bestDelta {
				bestParam, bestCat, bestDelta = p.name, c, delta
			}
		}
	}
	if bestParam == "" {
		return nil
	}
	return indicator(rows, bestParam, bestCat, fmt.Sprintf("%s == %q (vs rest, delta %+.3f)", bestParam, bestCat, bestDelta))
}

func medianSplit(rows run.Collection, p paramProfile) *treatment {
	median, _ := stats.Median(p.numbers)
	t := &treatment{param: p.name, rule: fmt.Sprintf("%s > median (%s)", p.name, run.FormatNumber(median))}
	t.values = make([]float64, len(rows))
	for i, r := range rows {
		if v, ok := r.Param(p.name); ok {
			if f, isNum := v.Float(); isNum && f > median {
				t.values[i] = 1
			}
		}
	}
	return t
}

func indicator(rows run.Collection, param, value, rule string) *treatment {
	t := &treatment{param: param, rule: rule, values: make([]float64, len(rows))}
	for i, r := range rows {
		if v, ok := r.Param(param); ok && v.String() == value {
			t.values[i] = 1
		}
	}
	return t
}
