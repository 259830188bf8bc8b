package engine

import (
	"strings"
	"time"
)

// Well-known resource types. Handlers may register additional types;
// these are the ones the engine's compatibility and cost tables know about.
const (
	TypePackage         = "package"
	TypeFeatureToggle   = "feature"
	TypeSetting         = "setting"
	TypeTerminalSetting = "terminal"
	TypeProfileSetting  = "profile"
)

// Resource is a single declarative configuration item.
// Identity (Name, Type) is immutable after creation; Properties carry the
// type-specific payload and are inspected, never mutated, by the validator
// and executor.
type Resource struct {
	// Name is the unique identifier within the owning Configuration.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type discriminates the resource variant (package, feature, setting, ...).
	Type string `json:"type" yaml:"type" validate:"required"`

	// Enabled controls whether the executor processes this item.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Properties is the open, type-specific payload (e.g. package_id,
	// path/name/value for setting-like resources).
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Validate checks the resource's identity invariants.
func (r *Resource) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewParseError("resource name is empty", nil)
	}
	if strings.TrimSpace(r.Type) == "" {
		return NewParseError("resource type is empty", nil).WithResource(r.Name)
	}
	return nil
}

// Configuration is a named, ordered set of resources plus metadata.
// It is built once by the parser or bridge and consumed read-only by the
// validator and executor.
type Configuration struct {
	// Name identifies the configuration.
	Name string `json:"name" yaml:"name"`

	// Version is the declared configuration version.
	Version string `json:"version" yaml:"version"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Metadata carries free-form key-value annotations.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Items are the resources in declaration order.
	Items []*Resource `json:"items" yaml:"items"`

	index map[string]int
}

// NewConfiguration creates an empty configuration.
func NewConfiguration(name, version string) *Configuration {
	return &Configuration{
		Name:    name,
		Version: version,
		index:   make(map[string]int),
	}
}

// AddItem appends a resource, rejecting duplicate names. The rejected add
// leaves the configuration untouched.
func (c *Configuration) AddItem(r *Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if c.index == nil {
		c.rebuildIndex()
	}
	if _, exists := c.index[r.Name]; exists {
		return NewDuplicateNameError(r.Name)
	}
	c.index[r.Name] = len(c.Items)
	c.Items = append(c.Items, r)
	return nil
}

// Item returns the resource with the given name, if present.
func (c *Configuration) Item(name string) (*Resource, bool) {
	if c.index == nil {
		c.rebuildIndex()
	}
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.Items[i], true
}

// EnabledItems returns the enabled resources in declaration order.
func (c *Configuration) EnabledItems() []*Resource {
	enabled := make([]*Resource, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Enabled {
			enabled = append(enabled, item)
		}
	}
	return enabled
}

// rebuildIndex recomputes the name index. Needed when a Configuration was
// decoded directly (e.g. from JSON) rather than assembled via AddItem.
func (c *Configuration) rebuildIndex() {
	c.index = make(map[string]int, len(c.Items))
	for i, item := range c.Items {
		if _, exists := c.index[item.Name]; !exists {
			c.index[item.Name] = i
		}
	}
}

// ValidationStatus is the overall outcome of a validation run.
type ValidationStatus string

const (
	// StatusValid means every check passed.
	StatusValid ValidationStatus = "valid"

	// StatusValidWithWarnings means no item is invalid but warnings exist.
	StatusValidWithWarnings ValidationStatus = "valid_with_warnings"

	// StatusInvalid means at least one item or check failed.
	StatusInvalid ValidationStatus = "invalid"

	// StatusError means the validator itself failed before producing a
	// normally-computed result.
	StatusError ValidationStatus = "error"
)

// ItemStatus is the validation outcome for a single item.
type ItemStatus string

const (
	ItemValid   ItemStatus = "valid"
	ItemInvalid ItemStatus = "invalid"
	ItemWarning ItemStatus = "warning"
)

// ItemValidation is the per-item validation record.
type ItemValidation struct {
	// ItemName identifies the item; parallel validation does not guarantee
	// result ordering, so identity always travels with the record.
	ItemName string `json:"item_name"`

	// ItemType is the item's resource type.
	ItemType string `json:"item_type"`

	// Status is the item outcome.
	Status ItemStatus `json:"status"`

	// Issues lists the problems found, if any.
	Issues []string `json:"issues,omitempty"`

	// Satisfied reports whether Test found the item already converged.
	Satisfied bool `json:"satisfied"`

	// Elapsed is the time spent validating this item.
	Elapsed time.Duration `json:"elapsed"`
}

// CompatibilityResult reports the system-compatibility check.
type CompatibilityResult struct {
	// Compatible is false when any requirement is unmet.
	Compatible bool `json:"compatible"`

	// Reasons explains each unmet requirement.
	Reasons []string `json:"reasons,omitempty"`

	// ElevationRequired is true when the configuration contains types from
	// the elevation-requiring set.
	ElevationRequired bool `json:"elevation_required"`
}

// Conflict describes two resources that are functionally equivalent under
// different sources. Conflicts are reported, not thrown.
type Conflict struct {
	// First and Second are the names of the conflicting items.
	First  string `json:"first"`
	Second string `json:"second"`

	// Reason explains the detected equivalence.
	Reason string `json:"reason"`
}

// ValidationResult is the immutable outcome of one validation run.
type ValidationResult struct {
	// ConfigurationName names the validated configuration.
	ConfigurationName string `json:"configuration_name"`

	// OverallStatus is derived from the item results and optional checks.
	OverallStatus ValidationStatus `json:"overall_status"`

	// ItemResults holds one record per item.
	ItemResults []ItemValidation `json:"item_results"`

	// ValidCount, InvalidCount and WarningCount aggregate the item results.
	ValidCount   int `json:"valid_count"`
	InvalidCount int `json:"invalid_count"`
	WarningCount int `json:"warning_count"`

	// SystemCompatible is set when the compatibility stage ran.
	SystemCompatible *CompatibilityResult `json:"system_compatible,omitempty"`

	// DependenciesValid is set when conflict detection ran; false when any
	// conflict was found.
	DependenciesValid *bool `json:"dependencies_valid,omitempty"`

	// Conflicts lists detected cross-resource conflicts.
	Conflicts []Conflict `json:"conflicts,omitempty"`

	// PerformanceImpact is set when impact analysis ran.
	PerformanceImpact *PerformanceImpact `json:"performance_impact,omitempty"`

	// Issues are configuration-level problems (structural, policy).
	Issues []string `json:"issues,omitempty"`

	// Recommendations are deterministic follow-ups derived from the result.
	Recommendations []string `json:"recommendations,omitempty"`

	// StartedAt and Duration time the validation run.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// ImpactLevel classifies a resource's estimated convergence cost.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ItemImpact is the estimated cost of converging one item.
type ItemImpact struct {
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`

	// EstimatedTime comes from the type-keyed weight table.
	EstimatedTime time.Duration `json:"estimated_time"`

	// Level classifies EstimatedTime: >60s high, >15s medium, else low.
	Level ImpactLevel `json:"level"`

	// RequiresNetwork and RequiresReboot come from type-set membership.
	RequiresNetwork bool `json:"requires_network"`
	RequiresReboot  bool `json:"requires_reboot"`
}

// PerformanceImpact aggregates the per-item cost estimates.
type PerformanceImpact struct {
	Items []ItemImpact `json:"items"`

	// EstimatedDuration is the sum of all item estimates.
	EstimatedDuration time.Duration `json:"estimated_duration"`

	// LowCount, MediumCount and HighCount count items per level.
	LowCount    int `json:"low_count"`
	MediumCount int `json:"medium_count"`
	HighCount   int `json:"high_count"`

	// RequiresNetwork and RequiresReboot are true when any item needs them.
	RequiresNetwork bool `json:"requires_network"`
	RequiresReboot  bool `json:"requires_reboot"`
}

// StateSnapshot is an opaque, comparable description of observable current
// configuration, used for before/after diffing and logging. A snapshot for
// an unconfigured resource indicates absence rather than erroring.
type StateSnapshot map[string]interface{}

// AbsentSnapshot returns the canonical snapshot for "not configured".
func AbsentSnapshot() StateSnapshot {
	return StateSnapshot{"present": false}
}

// ApplyOutcome is the result of a handler's Apply. Restart-required is
// expected, recoverable information and travels here, not as an error.
type ApplyOutcome struct {
	// Changed is false when Apply verified convergence without acting.
	Changed bool `json:"changed"`

	// RestartRequired signals that the change takes effect after a restart.
	RestartRequired bool `json:"restart_required"`

	// Message is an optional handler-provided summary.
	Message string `json:"message,omitempty"`
}

// ChangeSet pairs the state snapshots captured around an Apply.
type ChangeSet struct {
	Before StateSnapshot `json:"before"`
	After  StateSnapshot `json:"after"`
}

// ItemResult records the execution outcome for one item.
type ItemResult struct {
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`

	// Success is false only when Apply failed.
	Success bool `json:"success"`

	// Message summarizes the outcome ("already satisfied", "applied",
	// "would apply", or the failure text).
	Message string `json:"message"`

	// Changes holds the before/after snapshots for live applies.
	Changes *ChangeSet `json:"changes,omitempty"`

	// RestartRequired propagates the handler's outcome flag.
	RestartRequired bool `json:"restart_required"`

	// Duration is the time spent processing this item.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult is the aggregate outcome of one execution run. A run
// always yields a complete result list; summary counters are computed from
// that list, never assumed.
type ExecutionResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// ConfigurationName names the executed configuration.
	ConfigurationName string `json:"configuration_name"`

	// DryRun is true when no mutation was performed.
	DryRun bool `json:"dry_run"`

	// Items holds one record per processed item, in processing order.
	Items []ItemResult `json:"items"`

	// Succeeded and Failed count the item results.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// RestartRequired is true when any item requested a restart.
	RestartRequired bool `json:"restart_required"`

	// StartedAt and Duration time the run.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Throughput is items processed per second, 0 for an instant run.
	Throughput float64 `json:"throughput"`
}

// Finalize computes the summary counters from the actual item list.
func (r *ExecutionResult) Finalize(completedAt time.Time) {
	r.Succeeded, r.Failed = 0, 0
	r.RestartRequired = false
	for _, item := range r.Items {
		if item.Success {
			r.Succeeded++
		} else {
			r.Failed++
		}
		if item.RestartRequired {
			r.RestartRequired = true
		}
	}
	r.Duration = completedAt.Sub(r.StartedAt)
	if secs := r.Duration.Seconds(); secs > 0 {
		r.Throughput = float64(len(r.Items)) / secs
	}
}
