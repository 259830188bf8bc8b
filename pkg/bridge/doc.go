// Package bridge resolves named logical configuration requests (by
// category, theme, or profile type) by layering module-provided baseline
// definitions under user overrides discovered from a prioritized search
// path. Resolved payloads are cached by request; the cache supports
// concurrent reads, wholesale clearing, and hit/miss statistics.
package bridge
