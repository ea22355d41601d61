package lenient

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field declares one expected key and the value substituted when the key is
// absent, null, or of a type that cannot be coerced to Default's type.
// Nested keys use dot notation ("riscos.legal").
type Field struct {
	Path    string
	Default any
}

// Schema is the set of fields a caller relies on.
type Schema []Field

// Document is a parsed model response with schema defaults applied.
type Document struct {
	values  map[string]any
	missing []string
}

// Parse recovers a JSON object from raw and applies schema. It fails only
// when no object can be recovered at all; individual bad fields are
// defaulted and reported by Missing.
func Parse(raw string, schema Schema) (Document, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return Document{}, err
	}
	doc := Document{values: obj}
	for _, f := range schema {
		v, ok := lookup(obj, f.Path)
		if ok {
			if coerced, ok := coerce(v, f.Default); ok {
				assign(obj, f.Path, coerced)
				continue
			}
		}
		doc.missing = append(doc.missing, f.Path)
		assign(obj, f.Path, f.Default)
	}
	return doc, nil
}

// Missing lists schema paths that were defaulted.
func (d Document) Missing() []string { return d.missing }

// Defaulted reports whether path was filled from the schema.
func (d Document) Defaulted(path string) bool {
	for _, m := range d.missing {
		if m == path {
			return true
		}
	}
	return false
}

// String returns the string at path, or "" when absent or not a string.
func (d Document) String(path string) string {
	v, _ := lookup(d.values, path)
	s, _ := v.(string)
	return s
}

// Bool returns the bool at path, or false.
func (d Document) Bool(path string) bool {
	v, _ := lookup(d.values, path)
	b, _ := v.(bool)
	return b
}

// Float returns the number at path, or 0.
func (d Document) Float(path string) float64 {
	v, _ := lookup(d.values, path)
	f, _ := v.(float64)
	return f
}

// Raw returns the underlying value at path.
func (d Document) Raw(path string) (any, bool) {
	return lookup(d.values, path)
}

func lookup(obj map[string]any, path string) (any, bool) {
	var cur any = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func assign(obj map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := obj
	for _, key := range parts[:len(parts)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// coerce converts v to the dynamic type of def. Models often quote numbers
// and booleans, so numeric and boolean strings are accepted.
func coerce(v, def any) (any, bool) {
	switch def.(type) {
	case string:
		switch t := v.(type) {
		case string:
			return t, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case json.Number:
			return t.String(), true
		}
	case bool:
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
			if err == nil {
				return b, true
			}
		}
	case float64:
		var f float64
		switch t := v.(type) {
		case float64:
			f = t
		case json.Number:
			n, err := t.Float64()
			if err != nil {
				return nil, false
			}
			f = n
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64)
			if err != nil {
				return nil, false
			}
			f = n
		default:
			return nil, false
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	case map[string]any:
		if m, ok := v.(map[string]any); ok {
			return m, true
		}
	default:
		return v, true
	}
	return nil, false
}

// Clamp01 bounds f to [0,1]; NaN becomes 0.
func Clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
