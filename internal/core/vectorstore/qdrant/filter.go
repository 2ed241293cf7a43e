package qdrant

import (
	"encoding/json"
	"fmt"

	"github.com/markdave123-py/studyvault/internal/core"
)

type translatedFilter struct {
	Must    []any
	MustNot []any
}

func (f translatedFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

// translateFilter renders a core.Filter as a Qdrant filter object. An empty
// filter yields nil so the request omits it.
func translateFilter(filter core.Filter) (map[string]any, error) {
	if filter.IsEmpty() {
		return nil, nil
	}
	var out translatedFilter
	for _, c := range filter.Must {
		switch c.Op {
		case core.OpEq, core.OpNe:
			scalar, ok := toScalarValue(c.Value)
			if !ok {
				return nil, opErr("filter_translate", OperationErrorValidation,
					fmt.Sprintf("field %q expects scalar value, got %T", c.Field, c.Value), nil)
			}
			if c.Op == core.OpEq {
				out.Must = append(out.Must, matchCondition(c.Field, scalar))
			} else {
				out.MustNot = append(out.MustNot, matchCondition(c.Field, scalar))
			}
		case core.OpIn:
			values, err := core.ScalarSlice(c.Value)
			if err != nil {
				return nil, opErr("filter_translate", OperationErrorValidation,
					fmt.Sprintf("field %q expects scalar array", c.Field), err)
			}
			if len(values) == 0 {
				return nil, opErr("filter_translate", OperationErrorValidation,
					fmt.Sprintf("field %q: in-list cannot be empty", c.Field), nil)
			}
			out.Must = append(out.Must, map[string]any{
				"key":   c.Field,
				"match": map[string]any{"any": values},
			})
		default:
			return nil, opErr("filter_translate", OperationErrorValidation,
				fmt.Sprintf("unsupported operator %q for field %q", c.Op, c.Field), nil)
		}
	}
	return out.asMap(), nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint, uint64, float64:
		return typed, true
	case int8:
		return int(typed), true
	case int16:
		return int(typed), true
	case int32:
		return int(typed), true
	case uint8:
		return uint(typed), true
	case uint16:
		return uint(typed), true
	case uint32:
		return uint(typed), true
	case float32:
		return float64(typed), true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}
