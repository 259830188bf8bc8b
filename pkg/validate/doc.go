// Package validate runs read-only validation over a configuration: structural
// checks, an optional policy gate, bounded-timeout per-item testing (sequential
// or parallel with sequential fallback), system-compatibility checks, conflict
// detection and a weighted performance estimate.
package validate
