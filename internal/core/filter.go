package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Comparator is the operator of a payload condition.
type Comparator string

const (
	OpEq Comparator = "eq"
	OpNe Comparator = "ne"
	OpIn Comparator = "in"
)

// Condition is a single payload predicate: field <op> value.
// For OpIn, Value must be a slice of scalars.
type Condition struct {
	Field string
	Op    Comparator
	Value any
}

// Filter is a conjunction of conditions. The zero value matches everything.
type Filter struct {
	Must []Condition
}

func FieldEquals(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func NewFilter(conds ...Condition) Filter {
	return Filter{Must: conds}
}

// And returns a new filter holding both condition sets.
func (f Filter) And(conds ...Condition) Filter {
	out := make([]Condition, 0, len(f.Must)+len(conds))
	out = append(out, f.Must...)
	out = append(out, conds...)
	return Filter{Must: out}
}

func (f Filter) IsEmpty() bool { return len(f.Must) == 0 }

// Matches evaluates the filter against a payload. Numeric values compare by
// value regardless of their Go type, so int64(7) matches a decoded float64(7).
func (f Filter) Matches(payload map[string]any) bool {
	for _, c := range f.Must {
		if !c.Matches(payload) {
			return false
		}
	}
	return true
}

func (c Condition) Matches(payload map[string]any) bool {
	got, present := payload[c.Field]
	switch c.Op {
	case OpEq:
		return present && ScalarEqual(got, c.Value)
	case OpNe:
		return !present || !ScalarEqual(got, c.Value)
	case OpIn:
		if !present {
			return false
		}
		values, err := ScalarSlice(c.Value)
		if err != nil {
			return false
		}
		for _, v := range values {
			if ScalarEqual(got, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ScalarEqual compares two payload scalars.
func ScalarEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

// ScalarSlice flattens the supported slice types of an OpIn value.
func ScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		return typed, nil
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, nil
	case []int:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, nil
	case []int64:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

// ScalarString renders a scalar the way a JSON text extraction would
// (integral floats lose their fraction).
func ScalarString(v any) string {
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt converts a numeric payload value (often a float64 after a JSON round
// trip) to int.
func ToInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
