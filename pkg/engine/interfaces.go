package engine

import (
	"context"
	"time"
)

// Handler is the contract every resource variant must satisfy. Handler
// implementations are the engine's boundary with OS facilities; how they
// talk to package managers or settings stores is their own concern.
type Handler interface {
	// Type returns the resource type this handler manages.
	Type() string

	// Test reports whether current system state already matches the desired
	// state. It must be read-only and safe to call repeatedly, and returns
	// false conservatively on ambiguous or unreachable state.
	Test(ctx context.Context, r *Resource) (bool, error)

	// Apply converges the resource to its desired state. Apply is
	// idempotent: a second call without intervening drift yields the same
	// end state and no error. Restart-required travels in the outcome.
	Apply(ctx context.Context, r *Resource) (ApplyOutcome, error)

	// CurrentState returns a read-only snapshot of observable current
	// configuration. "Not configured" is a snapshot indicating absence,
	// never an error.
	CurrentState(ctx context.Context, r *Resource) (StateSnapshot, error)
}

// HandlerRegistry resolves handlers by resource type.
type HandlerRegistry interface {
	// Handler returns the handler for the given resource type.
	Handler(resourceType string) (Handler, error)

	// Register adds a handler, rejecting duplicate types.
	Register(h Handler) error

	// Types lists the registered resource types.
	Types() []string
}

// RunRecord is the stored summary of a past execution run.
type RunRecord struct {
	RunID             string        `json:"run_id"`
	ConfigurationName string        `json:"configuration_name"`
	DryRun            bool          `json:"dry_run"`
	Succeeded         int           `json:"succeeded"`
	Failed            int           `json:"failed"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}

// RunStore persists execution runs and their per-item results.
type RunStore interface {
	// SaveRun persists a completed run with its item results.
	SaveRun(ctx context.Context, result *ExecutionResult) error

	// GetRun retrieves a run by ID, including item results.
	GetRun(ctx context.Context, runID string) (*ExecutionResult, error)

	// ListRuns returns the most recent run summaries, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
