package space

import (
	"fmt"
	"math"

	"goparam/domain/run"
)

// Kind is the shape of a searchable parameter domain
type Kind string

const (
	KindCategorical Kind = "categorical"
	KindInteger     Kind = "integer"
	KindReal        Kind = "real"
)

// Domain describes the searchable values of one parameter.
// Categorical domains keep their choices as canonical strings; Numeric marks
// choices that decode back to numbers.
type Domain struct {
	Kind    Kind     `json:"kind"`
	Choices []string `json:"choices,omitempty"`
	Numeric bool     `json:"numeric,omitempty"`
	Low     float64  `json:"low,omitempty"`
	High    float64  `json:"high,omitempty"`
}

// Categorical builds a choice domain
func Categorical(choices []string, numeric bool) Domain {
	return Domain{Kind: KindCategorical, Choices: choices, Numeric: numeric}
}

// Integer builds an inclusive integer range
func Integer(low, high float64) Domain {
	return Domain{Kind: KindInteger, Low: low, High: high}
}

// Real builds an inclusive real range
func Real(low, high float64) Domain {
	return Domain{Kind: KindReal, Low: low, High: high}
}

// Decode turns a categorical choice index back into a parameter value
func (d Domain) Decode(i int) run.Value {
	if d.Numeric {
		return run.ParseValue(d.Choices[i])
	}
	return run.Category(d.Choices[i])
}

// Index returns the choice index of v, or -1
func (d Domain) Index(v run.Value) int {
	s := v.String()
	for i, c := range d.Choices {
		if c == s {
			return i
		}
	}
	return -1
}

// Contains reports whether v is representable in the domain
func (d Domain) Contains(v run.Value) bool {
	switch d.Kind {
	case KindCategorical:
		return d.Index(v) >= 0
	case KindInteger:
		f, ok := v.Float()
		return ok && f == math.Trunc(f) && f >= d.Low && f <= d.High
	case KindReal:
		f, ok := v.Float()
		return ok && f >= d.Low && f <= d.High
	}
	return false
}

func (d Domain) String() string {
	if d.Kind == KindCategorical {
		return fmt.Sprintf("categorical%v", d.Choices)
	}
	return fmt.Sprintf("%s[%s, %s]", d.Kind, run.FormatNumber(d.Low), run.FormatNumber(d.High))
}

// Param pairs a parameter name with its domain
type Param struct {
	Name   string `json:"name"`
	Domain Domain `json:"domain"`
}

// Space is the ordered set of searchable parameters, sorted by name
type Space []Param

// Names returns parameter names in space order
func (s Space) Names() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Name
	}
	return out
}

// Lookup finds the domain of a parameter
func (s Space) Lookup(name string) (Domain, bool) {
	for _, p := range s {
		if p.Name == name {
			return p.Domain, true
		}
	}
	return Domain{}, false
}

// Contains reports whether every present value of the config lies in its domain
func (s Space) Contains(params map[string]run.Value) bool {
	for _, p := range s {
		v, ok := params[p.Name]
		if !ok || v.IsMissing() {
			continue
		}
		if !p.Domain.Contains(v) {
			return false
		}
	}
	return true
}
