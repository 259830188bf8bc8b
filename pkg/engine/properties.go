package engine

import (
	"github.com/spf13/cast"
)

// Properties is the open, type-specific payload of a resource. Values come
// from decoded JSON/YAML, so accessors coerce rather than type-assert.
type Properties map[string]interface{}

// Has reports whether the key is present.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value at key coerced to a string, or "" when absent.
func (p Properties) String(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	return cast.ToString(v)
}

// StringOr returns the value at key, or fallback when absent or empty.
func (p Properties) StringOr(key, fallback string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return fallback
}

// Bool returns the value at key coerced to a bool, or false when absent.
func (p Properties) Bool(key string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	return cast.ToBool(v)
}

// Int returns the value at key coerced to an int, or 0 when absent.
func (p Properties) Int(key string) int {
	v, ok := p[key]
	if !ok {
		return 0
	}
	return cast.ToInt(v)
}

// StringSlice returns the value at key coerced to a string slice.
func (p Properties) StringSlice(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	return cast.ToStringSlice(v)
}

// Clone returns a shallow copy so callers can layer defaults without
// mutating the original payload.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
