package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// sentinelCircular is substituted for any value that would otherwise
// introduce a reference cycle into the serialized tree.
const sentinelCircular = "<circular-reference>"

// sentinelCallable is substituted for function/channel values, which are
// never JSON-serializable.
const sentinelCallable = "<unserializable>"

const maxSanitizeDepth = 64

// sanitize walks an arbitrary payload (typically map[string]any / []any /
// primitives, but tolerant of structs and pointers too) and returns a tree
// that is always safe to pass to json.Marshal: cycles are cut and replaced
// by a sentinel, depth is capped, non-string map keys are stringified, and
// function/channel values are replaced by a placeholder. It reports whether
// any substitution occurred (SerializationDegraded signal).
func sanitize(v any) (out any, degraded bool) {
	seen := map[uintptr]bool{}
	return sanitizeValue(reflect.ValueOf(v), seen, 0)
}

func sanitizeValue(rv reflect.Value, seen map[uintptr]bool, depth int) (any, bool) {
	if !rv.IsValid() {
		return nil, false
	}
	if depth > maxSanitizeDepth {
		return sentinelCircular, true
	}

	// Types that implement json.Marshaler (time.Time in particular) pass
	// through encoding/json rather than being recursed into as a plain
	// struct: time.Time has only unexported fields, so the struct branch
	// below would otherwise silently flatten it to {} with no degraded
	// signal.
	if (rv.Kind() != reflect.Ptr || !rv.IsNil()) && rv.CanInterface() {
		if m, ok := rv.Interface().(json.Marshaler); ok {
			raw, err := m.MarshalJSON()
			if err != nil {
				return sentinelCallable, true
			}
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return sentinelCallable, true
			}
			return decoded, false
		}
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		if rv.Kind() == reflect.Ptr {
			ptr := rv.Pointer()
			if seen[ptr] {
				return sentinelCircular, true
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		return sanitizeValue(rv.Elem(), seen, depth+1)

	case reflect.Map:
		if rv.IsNil() {
			return map[string]any{}, false
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return sentinelCircular, true
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		degraded := false
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := stringifyKey(iter.Key())
			val, d := sanitizeValue(iter.Value(), seen, depth+1)
			if d {
				degraded = true
			}
			out[key] = val
		}
		return out, degraded

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, false
		}
		if rv.Kind() == reflect.Slice {
			ptr := rv.Pointer()
			if seen[ptr] {
				return sentinelCircular, true
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		degraded := false
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, d := sanitizeValue(rv.Index(i), seen, depth+1)
			if d {
				degraded = true
			}
			out[i] = val
		}
		return out, degraded

	case reflect.Struct:
		degraded := false
		out := make(map[string]any, rv.NumField())
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, skip := jsonFieldName(f)
			if skip {
				continue
			}
			val, d := sanitizeValue(rv.Field(i), seen, depth+1)
			if d {
				degraded = true
			}
			out[name] = val
		}
		return out, degraded

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return sentinelCallable, true

	case reflect.String:
		return rv.String(), false
	case reflect.Bool:
		return rv.Bool(), false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), false
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), false
	case reflect.Float32, reflect.Float64:
		return rv.Float(), false
	default:
		return fmt.Sprintf("%v", rv.Interface()), false
	}
}

// jsonFieldName mirrors encoding/json's struct-tag convention: the portion
// of the "json" tag before the first comma is the serialized key, a bare
// "-" tag omits the field, and an absent tag falls back to the Go field
// name — so a struct persisted here round-trips through LoadStage's
// json.Unmarshal into the same typed struct instead of keying by Go
// identifier.
func jsonFieldName(f reflect.StructField) (name string, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name, false
	}
	name = strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return "", true
	}
	if name == "" {
		name = f.Name
	}
	return name, false
}

func stringifyKey(rv reflect.Value) string {
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprintf("%v", rv.Interface())
}
