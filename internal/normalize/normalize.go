// Package normalize converts arbitrarily nested provider response values
// into plain JSON-safe Go values: maps keyed by string, []any slices,
// strings, numbers, booleans and nil.
package normalize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// MappingViewer is implemented by response objects that can render
// themselves as a mapping.
type MappingViewer interface {
	ToMap() (map[string]any, error)
}

// AttributeViewer is implemented by response objects that expose their
// fields as an attribute bag.
type AttributeViewer interface {
	Attributes() map[string]any
}

// knownFields are the attributes pulled off opaque objects that offer no
// mapping or attribute view. Ordered as they appear in utterance payloads.
var knownFields = []string{
	"start", "end", "transcript", "id", "confidence",
	"speaker", "channel", "word", "punctuated_word",
}

// Value returns a JSON-safe rendition of v. It never fails: anything that
// cannot be structurally converted degrades to its string form.
//
// Plain values (nil, booleans, strings, numbers, []any, map[string]any)
// are returned unchanged in shape, so Value is idempotent on its output.
func Value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Value(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		return sequence(rv)
	case reflect.Array:
		return sequence(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		return mapping(rv)
	}

	if mv, ok := v.(MappingViewer); ok {
		if m, err := toMap(mv); err == nil {
			return Value(m)
		}
	}
	if av, ok := v.(AttributeViewer); ok {
		if attrs := av.Attributes(); attrs != nil {
			return Value(attrs)
		}
	}

	// Pointers without views are unwrapped once so that struct values
	// behind them get the same treatment as the struct itself.
	if rv.Kind() == reflect.Pointer {
		return Value(rv.Elem().Interface())
	}

	if m, ok := knownAttributes(rv); ok {
		return m
	}
	return fmt.Sprint(v)
}

func sequence(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = Value(rv.Index(i).Interface())
	}
	return out
}

func mapping(rv reflect.Value) map[string]any {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key()
		var k string
		if key.Kind() == reflect.String {
			k = key.String()
		} else {
			k = fmt.Sprint(key.Interface())
		}
		out[k] = Value(iter.Value().Interface())
	}
	return out
}

// toMap calls ToMap and treats a panic like a returned error.
func toMap(mv MappingViewer) (m map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ToMap panicked: %v", r)
		}
	}()
	return mv.ToMap()
}

// knownAttributes extracts knownFields from an exported struct, matching
// fields by json tag first and snake_cased field name second. Absent and
// nil fields are omitted. Reports false when nothing matched.
func knownAttributes(rv reflect.Value) (map[string]any, bool) {
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	byName := make(map[string]reflect.Value, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := snakeCase(f.Name)
		if tag := f.Tag.Get("json"); tag != "" {
			if n, _, _ := strings.Cut(tag, ","); n != "" && n != "-" {
				name = n
			}
		}
		byName[name] = rv.Field(i)
	}

	out := make(map[string]any)
	for _, name := range knownFields {
		fv, ok := byName[name]
		if !ok {
			continue
		}
		switch fv.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			if fv.IsNil() {
				continue
			}
		}
		out[name] = Value(fv.Interface())
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func snakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(rs[i-1])
			nextLower := i > 0 && i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
