// Package layering overlays option records. Records are plain
// map[string]any values as returned by an option store, so the merge
// works on decoded JSON-like shapes rather than arbitrary structs.
package layering

import "sort"

// MergeLayers composes records ordered from strongest to weakest, returning a
// new record that keeps explicit values from stronger layers while filling any
// missing keys from weaker ones. Nested maps are merged key by key; any other
// value (scalars, slices) from a stronger layer replaces the weaker value
// wholesale. A nil value in a stronger layer counts as missing.
func MergeLayers(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return nil
	}

	merged := CloneMap(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeMap(layers[i], merged)
	}
	if merged == nil {
		return map[string]any{}
	}
	return merged
}

// Restrict returns a copy of record holding only the keys listed in allowed.
func Restrict(record map[string]any, allowed []string) map[string]any {
	out := make(map[string]any, len(allowed))
	for _, key := range allowed {
		value, ok := record[key]
		if !ok {
			continue
		}
		out[key] = Clone(value)
	}
	return out
}

// Keys returns the record keys in lexical order.
func Keys(record map[string]any) []string {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func mergeMap(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return CloneMap(weak)
	}
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = Clone(value)
	}
	for key, value := range strong {
		if value == nil {
			continue
		}
		existing, ok := result[key]
		if !ok {
			result[key] = Clone(value)
			continue
		}
		result[key] = mergeValue(value, existing)
	}
	return result
}

func mergeValue(strong, weak any) any {
	strongMap, ok := asMap(strong)
	if !ok {
		return Clone(strong)
	}
	weakMap, ok := asMap(weak)
	if !ok {
		return CloneMap(strongMap)
	}
	return mergeMap(strongMap, weakMap)
}

// Clone deep-copies maps and slices found in value. Scalars are returned as is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneMap(typed)
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}

// CloneMap deep-copies record. A nil record stays nil.
func CloneMap(record map[string]any) map[string]any {
	if record == nil {
		return nil
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = Clone(value)
	}
	return out
}

// AsMap reports whether value is a record and returns it.
func AsMap(value any) (map[string]any, bool) {
	return asMap(value)
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return out, true
	default:
		return nil, false
	}
}
