// Package document defines the canonical keyed document merged by the
// session engine, together with the sentinels, deep equality and diffing
// primitives the merge algorithm relies on.
//
// Values held by a Document are JSON-comparable: string, int64, float64,
// bool, nil, map[string]any and []any. Integers stay int64 so identifiers
// beyond 2^53 survive intact. Normalize converts decoded payloads from any
// codec into that canonical shape so equality holds across round trips.
package document

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/google/go-cmp/cmp"
)

// Document maps string keys to JSON-comparable values.
type Document map[string]any

type sentinel struct {
	name string
}

func (s *sentinel) String() string {
	return s.name
}

var (
	// Removed marks a key that must be deleted from the merged result.
	Removed any = &sentinel{name: "<removed>"}
	// Absent stands in for a key that is not present in a document.
	Absent any = &sentinel{name: "<absent>"}
)

// IsRemoved reports whether value is the removal marker.
func IsRemoved(value any) bool {
	return value == Removed
}

// IsAbsent reports whether value is the absent sentinel.
func IsAbsent(value any) bool {
	return value == Absent
}

// IsSentinel reports whether value is one of the package sentinels.
func IsSentinel(value any) bool {
	_, ok := value.(*sentinel)
	return ok
}

// New returns an empty, non-nil Document.
func New() Document {
	return Document{}
}

// Lookup returns the value stored under key, or Absent when missing.
func (d Document) Lookup(key string) any {
	if d == nil {
		return Absent
	}
	value, ok := d[key]
	if !ok {
		return Absent
	}
	return value
}

// Keys returns the document keys sorted alphabetically.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of d. A nil document clones to an empty one.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for key, value := range d {
		out[key] = CloneValue(value)
	}
	return out
}

// CloneValue deep copies maps and slices; scalars and sentinels are returned as is.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case Document:
		return map[string]any(typed.Clone())
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			out[key] = CloneValue(nested)
		}
		return out
	case []any:
		if typed == nil {
			return []any(nil)
		}
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = CloneValue(nested)
		}
		return out
	default:
		return value
	}
}

// Equal reports deep, structural equality between two values. Sentinels only
// equal themselves; numbers compare by value regardless of their Go type.
func Equal(a, b any) bool {
	if IsSentinel(a) || IsSentinel(b) {
		return a == b
	}
	return cmp.Equal(FloatSafe(Normalize(a)), FloatSafe(Normalize(b)), equalOptions...)
}

// maxExactInt is the largest magnitude float64 holds without rounding.
const maxExactInt = 1 << 53

// FloatSafe returns a copy of a normalized value in which every int64 that
// float64 represents exactly is converted to float64. Larger integers keep
// int64, so they never compare equal to a rounded float.
func FloatSafe(value any) any {
	switch typed := value.(type) {
	case int64:
		if typed >= -maxExactInt && typed <= maxExactInt {
			return float64(typed)
		}
		return typed
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			out[key] = FloatSafe(nested)
		}
		return out
	case []any:
		if typed == nil {
			return []any(nil)
		}
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = FloatSafe(nested)
		}
		return out
	default:
		return value
	}
}

// Float64 reports the numeric value of v after normalization.
func Float64(v any) (float64, bool) {
	switch n := Normalize(v).(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

var equalOptions = []cmp.Option{
	cmp.Comparer(func(x, y float64) bool {
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	}),
	cmp.Comparer(func(x, y *sentinel) bool {
		return x == y
	}),
}

// FromAny coerces a decoded payload into a Document. It reports false when
// the payload is not an object.
func FromAny(value any) (Document, bool) {
	switch typed := Normalize(value).(type) {
	case map[string]any:
		return Document(typed), true
	default:
		return nil, false
	}
}

// Normalize converts value into canonical JSON types. Unsupported values are
// kept untouched so equality can still compare them structurally.
func Normalize(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case *sentinel:
		return typed
	case string, bool, float64:
		return typed
	case Document:
		return normalizeMap(typed)
	case map[string]any:
		return normalizeMap(typed)
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			out[fmt.Sprint(key)] = Normalize(nested)
		}
		return out
	case []any:
		if typed == nil {
			return []any{}
		}
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = Normalize(nested)
		}
		return out
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case int64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint:
		return unsigned(uint64(typed))
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		return unsigned(typed)
	}
	return normalizeReflect(reflect.ValueOf(value))
}

func unsigned(n uint64) any {
	if n > math.MaxInt64 {
		return float64(n)
	}
	return int64(n)
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, nested := range in {
		out[key] = Normalize(nested)
	}
	return out
}

func normalizeReflect(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes())
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = Normalize(v.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return Normalize(v.Elem().Interface())
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsigned(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		return v.Interface()
	}
}
