package catalog

import "strings"

// Payload is a raw state document fetched for one data group, decoded
// straight from the API JSON. Accessors use dot paths ("energy.current")
// and default to zero values so predicates never panic on missing fields.
type Payload map[string]any

// Num returns the numeric value at path, or 0 when absent or non-numeric.
func (p Payload) Num(path string) float64 {
	v, ok := p.lookup(path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Str returns the string value at path, or "" when absent.
func (p Payload) Str(path string) string {
	v, ok := p.lookup(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool returns the boolean value at path, or false when absent.
func (p Payload) Bool(path string) bool {
	v, ok := p.lookup(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Has reports whether any value exists at path.
func (p Payload) Has(path string) bool {
	_, ok := p.lookup(path)
	return ok
}

func (p Payload) lookup(path string) (any, bool) {
	if p == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = map[string]any(p)
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
