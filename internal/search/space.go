// Package search infers the searchable parameter space from observed runs
// and proposes unseen configurations with a Tree-structured Parzen Estimator.
package search

import (
	"math"
	"sort"

	"goparam/domain/run"
	"goparam/domain/space"
)

const (
	maxCategoricalDistinct = 5
	maxIntegerDistinct     = 30
)

// InferSpace derives one domain per parameter from the observed values.
// A parameter is categorical if any value is non-numeric or it has at most
// five distinct values; otherwise integer when every value is whole and at
// most 30 are distinct; otherwise real. Parameters are ordered by name.
func InferSpace(records run.Collection) space.Space {
	var out space.Space
	for _, name := range records.ParamNames() {
		if d, ok := inferDomain(records.Values(name)); ok {
			out = append(out, space.Param{Name: name, Domain: d})
		}
	}
	return out
}

func inferDomain(values []run.Value) (space.Domain, bool) {
	distinct := make(map[string]struct{})
	numeric := true
	whole := true
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		distinct[v.String()] = struct{}{}
		f, ok := v.Float()
		if !ok {
			numeric = false
			continue
		}
		if f != math.Trunc(f) {
			whole = false
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	if len(distinct) == 0 {
		return space.Domain{}, false
	}

	if !numeric || len(distinct) <= maxCategoricalDistinct {
		choices := make([]string, 0, len(distinct))
		for c := range distinct {
			choices = append(choices, c)
		}
		sort.Strings(choices)
		return space.Categorical(choices, numeric), true
	}
	if lo == hi {
		return space.Categorical([]string{run.FormatNumber(lo)}, true), true
	}
	if whole && len(distinct) <= maxIntegerDistinct {
		return space.Integer(lo, hi), true
	}
	return space.Real(lo, hi), true
}

// Trial is one historical observation fed to the sampler
type Trial struct {
	Params map[string]run.Value
	Value  float64
	Key    string // identity of the raw configuration
}

// HistoryFromRecords converts records with a target value into trials.
// Values the sampler cannot use are imputed: the first choice for
// categoricals, the midpoint for ranges, then clamped into the domain.
func HistoryFromRecords(records run.Collection, sp space.Space, target string) []Trial {
	names := sp.Names()
	var trials []Trial
	for _, r := range records {
		y, ok := r.Metric(target)
		if !ok {
			continue
		}
		params := make(map[string]run.Value, len(sp))
		for _, p := range sp {
			params[p.Name] = impute(p.Domain, r.Params[p.Name])
		}
		trials = append(trials, Trial{Params: params, Value: y, Key: run.ConfigKey(r.Params, names)})
	}
	return trials
}

func impute(d space.Domain, v run.Value) run.Value {
	switch d.Kind {
	case space.KindCategorical:
		if i := d.Index(v); i >= 0 {
			return d.Decode(i)
		}
		return d.Decode(0)
	case space.KindInteger:
		f, ok := v.Float()
		if !ok {
			f = math.Floor((d.Low + d.High) / 2)
		}
		return run.Number(math.Max(d.Low, math.Min(d.High, math.Trunc(f))))
	default:
		f, ok := v.Float()
		if !ok {
			f = (d.Low + d.High) / 2
		}
		return run.Number(math.Max(d.Low, math.Min(d.High, f)))
	}
}
