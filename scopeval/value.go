// Package scopeval models the values scopeprobe reads out of an
// application's scope tree: JSON-shaped data plus an explicit "undefined"
// marker for model paths that do not resolve.
//
// Values cross two boundaries with different numeric habits (the embedded
// JavaScript runtime exports integral numbers as int64, encoding/json decodes
// everything as float64), so equality and rendering both go through a
// normalization step rather than comparing raw Go types.
package scopeval

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Value is one observation of a model path: either a defined JSON-shaped
// value (which may be null) or the explicit absence marker.
type Value struct {
	Defined bool
	Data    any
}

// DefinedValue wraps a JSON-shaped value as a defined observation.
func DefinedValue(data any) Value {
	return Value{Defined: true, Data: data}
}

// Undefined is the observation for a model path that does not resolve.
func Undefined() Value {
	return Value{}
}

// Equals reports whether the observation is defined and structurally equal
// to want.
func (v Value) Equals(want any) bool {
	return v.Defined && Equal(v.Data, want)
}

// String renders the value for diagnostics: "undefined" for the absence
// marker, canonical JSON otherwise.
func (v Value) String() string {
	if !v.Defined {
		return "undefined"
	}
	b, err := MarshalCanonical(v.Data)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return string(b)
}

// Equal reports structural equality between two JSON-shaped values.
// Map key order never matters. Numbers compare by value regardless of the
// Go type carrying them.
func Equal(a, b any) bool {
	return equalNormalized(Normalize(a), Normalize(b))
}

// Normalize reduces a JSON-shaped value to the canonical Go shapes
// (nil, bool, float64, string, []any, map[string]any). Typed slices and
// string-keyed maps are widened; other types pass through untouched.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case bool, string:
		return val
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return string(val)
		}
		return f
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Normalize(elem)
		}
		return out
	}

	// Typed containers (e.g. []string, map[string]int) widen via reflection.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = Normalize(iter.Value().Interface())
			}
			return out
		}
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}

	return v
}

func equalNormalized(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalNormalized(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, present := bv[k]
			if !present || !equalNormalized(elem, other) {
				return false
			}
		}
		return true
	}

	// Non-JSON shapes that survived normalization untouched.
	return reflect.DeepEqual(a, b)
}
