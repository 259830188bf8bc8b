// Package execute converges a configuration: it walks enabled items in
// declared order, skips the already-satisfied ones, applies the rest while
// capturing before/after state, and aggregates per-item and overall results.
// A dry-run mode reports intent without mutating anything.
package execute
