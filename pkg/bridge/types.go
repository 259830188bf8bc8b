package bridge

import (
	"time"
)

// RequestKind names the logical configuration dimension being resolved.
type RequestKind string

const (
	// KindCategory resolves a category item list (e.g. "developer").
	KindCategory RequestKind = "category"

	// KindTheme resolves a visual theme definition (e.g. "Dark").
	KindTheme RequestKind = "theme"

	// KindProfile resolves a profile-type definition (e.g. "zsh").
	KindProfile RequestKind = "profile"
)

// KnownKinds lists the request kinds the bridge resolves.
func KnownKinds() []RequestKind {
	return []RequestKind{KindCategory, KindTheme, KindProfile}
}

// Payload is a resolved configuration-shaped document. Values come from
// decoded JSON/YAML. Callers receive a private copy they may merge further;
// the cache never observes those changes.
type Payload map[string]interface{}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Payload:
		return map[string]interface{}(val.Clone())
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}

// CacheStatistics is a point-in-time view of the resolution cache.
type CacheStatistics struct {
	// Enabled reports whether caching is currently on.
	Enabled bool `json:"enabled"`

	// Entries is the number of cached resolutions.
	Entries int `json:"entries"`

	// Hits and Misses count lookups since construction or the last
	// statistics reset. ClearCache does not reset them.
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// cacheKey identifies one resolution request.
type cacheKey struct {
	kind RequestKind
	key  string
}

// cacheEntry is one cached resolution.
type cacheEntry struct {
	payload   Payload
	createdAt time.Time
}
