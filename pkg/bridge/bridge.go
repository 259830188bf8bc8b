package bridge

import (
	"context"
	"sort"
	"time"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// Bridge resolves named configuration requests by layering baselines under
// user overrides. It exclusively owns its resolution cache: reads are
// concurrent, writes are serialized, and only wholesale clears are
// supported.
type Bridge struct {
	locator Locator
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	cache *resolutionCache

	baselines map[cacheKey]Payload
}

// Options configures a Bridge. Zero-value fields fall back to defaults.
type Options struct {
	// Locator discovers user overrides. Defaults to a FileLocator over
	// DefaultSearchRoots.
	Locator Locator

	// Logger, Metrics and Tracer are optional observability hooks.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	// DisableCache starts the bridge with caching off.
	DisableCache bool

	// ExtraBaselines are layered over the built-in baseline definitions at
	// construction time.
	ExtraBaselines map[RequestKind]map[string]Payload
}

// New creates a Bridge.
func New(opts Options) *Bridge {
	locator := opts.Locator
	if locator == nil {
		locator = NewFileLocator(DefaultSearchRoots())
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	b := &Bridge{
		locator:   locator,
		log:       log.NewComponentLogger("bridge"),
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		cache:     newResolutionCache(!opts.DisableCache),
		baselines: builtinBaselines(),
	}
	for kind, byKey := range opts.ExtraBaselines {
		for key, payload := range byKey {
			b.RegisterBaseline(kind, key, payload)
		}
	}
	return b
}

// RegisterBaseline installs or replaces a module-provided baseline.
// Baselines registered after construction do not invalidate the cache;
// callers that need that call ClearCache themselves.
func (b *Bridge) RegisterBaseline(kind RequestKind, key string, payload Payload) {
	b.baselines[cacheKey{kind: kind, key: key}] = payload.Clone()
}

// BaselineKeys returns the sorted keys with a baseline for the given kind.
func (b *Bridge) BaselineKeys(kind RequestKind) []string {
	keys := make([]string, 0, len(b.baselines))
	for ck := range b.baselines {
		if ck.kind == kind {
			keys = append(keys, ck.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Resolve returns the merged payload for a request. The result is the
// caller's private copy. Resolution fails with an unresolved-configuration
// error when neither a baseline nor an override exists for the key; falling
// back to a degraded default is the caller's responsibility.
func (b *Bridge) Resolve(ctx context.Context, kind RequestKind, key string) (Payload, error) {
	ck := cacheKey{kind: kind, key: key}

	if payload, ok := b.cache.get(ck); ok {
		if b.metrics != nil {
			b.metrics.CacheHit()
		}
		b.log.WithField("kind", kind).WithField("key", key).Debug("cache hit")
		return payload.Clone(), nil
	}
	if b.metrics != nil {
		b.metrics.CacheMiss()
	}

	payload, err := b.resolve(ctx, kind, key)
	if err != nil {
		return nil, err
	}

	b.cache.put(ck, payload)
	if b.metrics != nil {
		b.metrics.CacheEntries(b.cache.len())
	}
	return payload.Clone(), nil
}

// resolve computes a resolution without consulting the cache.
func (b *Bridge) resolve(ctx context.Context, kind RequestKind, key string) (Payload, error) {
	if b.tracer != nil {
		spanCtx, span := b.tracer.StartResolveSpan(ctx, string(kind), key)
		ctx = spanCtx
		defer span.End()
	}

	baseline, hasBaseline := b.baselines[cacheKey{kind: kind, key: key}]
	override, overridePath := b.findOverride(kind, key)

	switch {
	case !hasBaseline && override == nil:
		return nil, engine.NewUnresolvedError(string(kind), key)
	case !hasBaseline:
		b.log.WithField("key", key).Debugf("override-only resolution from %s", overridePath)
		return override.Clone(), nil
	case override == nil:
		return baseline.Clone(), nil
	default:
		b.log.WithField("key", key).Debugf("merging override from %s", overridePath)
		return Merge(baseline, override), nil
	}
}

// findOverride scans discovered candidates best-first and returns the first
// override document containing the key. Unreadable candidates are logged
// and skipped; a broken user file must not mask a lower-priority one.
func (b *Bridge) findOverride(kind RequestKind, key string) (Payload, string) {
	for _, candidate := range b.locator.Discover(kind) {
		overrides, err := loadOverrides(candidate.Path, kind)
		if err != nil {
			b.log.WithError(err).Warnf("skipping unreadable override %s", candidate.Path)
			continue
		}
		if payload, ok := overrides[key]; ok {
			return payload, candidate.Path
		}
	}
	return nil, ""
}

// SetCacheEnabled globally enables or disables caching. Disabling does not
// clear existing entries; they simply stop being consulted.
func (b *Bridge) SetCacheEnabled(enabled bool) {
	b.cache.setEnabled(enabled)
}

// ClearCache evicts every cached resolution. Per-key invalidation is
// intentionally not supported.
func (b *Bridge) ClearCache() {
	b.cache.clear()
	if b.metrics != nil {
		b.metrics.CacheEntries(0)
	}
	b.log.Debug("cache cleared")
}

// CacheStatistics reports entry count and hit/miss counters.
func (b *Bridge) CacheStatistics() CacheStatistics {
	return b.cache.statistics()
}

// EntryCreatedAt exposes a cache entry's creation time, primarily for
// diagnostics output.
func (b *Bridge) EntryCreatedAt(kind RequestKind, key string) (time.Time, bool) {
	return b.cache.createdAt(cacheKey{kind: kind, key: key})
}
