package run

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags a parameter value as numeric or categorical
type ValueKind int

const (
	KindMissing ValueKind = iota
	KindNumber
	KindCategory
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindCategory:
		return "category"
	default:
		return "missing"
	}
}

// Value is a parameter value: Number(f64) | Category(string).
// The zero Value is missing.
type Value struct {
	kind ValueKind
	num  float64
	cat  string
}

// Number creates a numeric value. NaN is treated as missing.
func Number(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{kind: KindNumber, num: v}
}

// Category creates a categorical value
func Category(s string) Value {
	return Value{kind: KindCategory, cat: s}
}

// ParseValue reads a raw cell: numbers become Number, blank is missing,
// everything else is a Category.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Category(s)
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }

// Float returns the numeric payload
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the categorical payload
func (v Value) Text() (string, bool) {
	if v.kind != KindCategory {
		return "", false
	}
	return v.cat, true
}

// String is the canonical representation used for configuration identity
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindCategory:
		return v.cat
	default:
		return ""
	}
}

// Equal compares kind and payload
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.num == o.num && v.cat == o.cat
}

// FormatNumber renders the shortest decimal form that round-trips
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindCategory:
		return json.Marshal(v.cat)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Value{}
	case float64:
		*v = Number(x)
	case string:
		*v = Category(x)
	case bool:
		*v = Category(strconv.FormatBool(x))
	default:
		return fmt.Errorf("unsupported parameter value %s", string(data))
	}
	return nil
}
