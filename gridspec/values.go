package gridspec

import (
	"encoding/json"
	"math"
	"reflect"
)

// asFloat converts the numeric types produced by JSON decoders and Go
// literals to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// asInt accepts integral numbers only.
func asInt(v any) (int, bool) {
	if _, ok := v.(bool); ok {
		return 0, false
	}
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// asFloats converts any slice or array of numbers.
func asFloats(v any) ([]float64, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]float64, rv.Len())
	for i := range out {
		f, ok := asFloat(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func asInts(v any) ([]int, bool) {
	fs, ok := asFloats(v)
	if !ok {
		return nil, false
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		n, ok := asInt(f)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// asFlag maps bools and numbers to 0/1 style flags; anything else is 0.
func asFlag(v any) int {
	switch b := v.(type) {
	case nil:
		return 0
	case bool:
		if b {
			return 1
		}
		return 0
	}
	if f, ok := asFloat(v); ok && f != 0 {
		if n, ok := asInt(f); ok {
			return n
		}
		return 1
	}
	return 0
}
