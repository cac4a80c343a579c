package beacons

import (
	"fmt"
	"math"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Normalize rewrites a decoded configuration into one canonical shape:
// integers become int64 (uint64 above math.MaxInt64), floats float64,
// every mapping map[string]any and every sequence []any. Values decoded
// from YAML, JSON and CBOR compare equal after normalization.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	case reflect.Float32:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}

// Equal reports whether two configurations are the same after
// normalization. Nil and empty collections are equal. Numbers of different
// kinds are equal only when they denote exactly the same value.
func Equal(a, b any) bool {
	return cmp.Equal(Normalize(a), Normalize(b), cmpopts.EquateEmpty(), equateNumbers)
}

// equateNumbers compares an int64, uint64 or float64 against a number of
// another kind. Same-kind numbers keep cmp's exact comparison.
var equateNumbers = cmp.FilterValues(func(x, y any) bool {
	_, xok := numberKind(x)
	_, yok := numberKind(y)
	return xok && yok && reflect.TypeOf(x) != reflect.TypeOf(y)
}, cmp.Comparer(sameNumber))

func numberKind(v any) (reflect.Kind, bool) {
	switch v.(type) {
	case int64:
		return reflect.Int64, true
	case uint64:
		return reflect.Uint64, true
	case float64:
		return reflect.Float64, true
	}
	return reflect.Invalid, false
}

// sameNumber reports whether x and y denote the same value without
// rounding either through float64.
func sameNumber(x, y any) bool {
	switch a := x.(type) {
	case int64:
		switch b := y.(type) {
		case int64:
			return a == b
		case uint64:
			return a >= 0 && uint64(a) == b
		case float64:
			return floatIsInt(b, a)
		}
	case uint64:
		switch b := y.(type) {
		case uint64:
			return a == b
		case int64:
			return b >= 0 && uint64(b) == a
		case float64:
			return b >= 0 && b == math.Trunc(b) && b < math.Exp2(64) && uint64(b) == a
		}
	case float64:
		if b, ok := y.(float64); ok {
			return a == b
		}
		return sameNumber(y, x)
	}
	return false
}

// floatIsInt reports whether f is integral and exactly i.
func floatIsInt(f float64, i int64) bool {
	if f != math.Trunc(f) || f < -math.Exp2(63) || f >= math.Exp2(63) {
		return false
	}
	return int64(f) == i
}

// items splits a configuration into its mappings: a list of mappings
// yields each one, a single mapping yields itself. Non-mapping list
// entries are skipped.
func items(config any) []map[string]any {
	switch t := Normalize(config).(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Merge folds a list of mappings into one mapping. Later keys win.
func Merge(config any) map[string]any {
	out := make(map[string]any)
	for _, item := range items(config) {
		for k, v := range item {
			out[k] = v
		}
	}
	return out
}

// contains reports whether every entry of want appears in have. For lists
// each submitted item must equal some item of have; for mappings each key
// must be present with an equal value.
func contains(have, want any) bool {
	switch w := Normalize(want).(type) {
	case []any:
		h, ok := Normalize(have).([]any)
		if !ok {
			return len(w) == 0
		}
		for _, item := range w {
			found := false
			for _, candidate := range h {
				if Equal(item, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case map[string]any:
		h := Merge(have)
		for k, v := range w {
			got, ok := h[k]
			if !ok || !Equal(got, v) {
				return false
			}
		}
		return true
	case nil:
		return true
	}
	return Equal(have, want)
}

// hasName reports whether a listing names beacon. Listings are either a
// mapping keyed by beacon name or a list of names.
func hasName(listing any, name string) bool {
	switch t := Normalize(listing).(type) {
	case map[string]any:
		_, ok := t[name]
		return ok
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == name {
				return true
			}
		}
	}
	return false
}

// ModuleName returns the module a configuration runs, which is the
// beacon_module entry when present and the beacon's own name otherwise.
func ModuleName(name string, config any) string {
	for _, item := range items(config) {
		if mod, ok := item["beacon_module"].(string); ok && mod != "" {
			return mod
		}
	}
	return name
}
