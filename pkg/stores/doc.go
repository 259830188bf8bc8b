// Package stores persists execution run history in SQLite. The schema is
// managed with embedded migrations; snapshots travel as JSON columns. The
// store is optional: the executor works without one and merely skips
// persistence.
package stores
