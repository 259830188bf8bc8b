package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// Timeout and concurrency bounds for per-item testing.
const (
	DefaultItemTimeout = 30 * time.Second
	MinItemTimeout     = 5 * time.Second
	MaxItemTimeout     = 300 * time.Second

	DefaultWorkers = 4
)

// PolicyGate is an optional admission hook evaluated after the structural
// check and before item testing. Denials fail validation; warnings are
// reported but do not.
type PolicyGate interface {
	Evaluate(ctx context.Context, cfg *engine.Configuration) (denials, warnings []string, err error)
}

// Options configures a Validator. Zero-value fields fall back to defaults.
type Options struct {
	// ItemTimeout bounds each item's Test call. Defaults to
	// DefaultItemTimeout and is clamped to [MinItemTimeout, MaxItemTimeout].
	ItemTimeout time.Duration

	// Parallel enables concurrent item testing.
	Parallel bool

	// Workers bounds the parallel pool. Defaults to DefaultWorkers.
	Workers int

	// SkipCompatibility, SkipConflicts and SkipImpact disable the optional
	// pipeline stages.
	SkipCompatibility bool
	SkipConflicts     bool
	SkipImpact        bool

	// Policy is the optional admission gate.
	Policy PolicyGate

	// Platform overrides the detected host platform, mainly for tests.
	Platform *Platform

	// Logger, Metrics and Tracer are optional observability hooks.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Validator runs the validation pipeline. It is read-only with respect to
// the configuration and the host.
type Validator struct {
	registry engine.HandlerRegistry

	itemTimeout time.Duration
	parallel    bool
	workers     int

	skipCompatibility bool
	skipConflicts     bool
	skipImpact        bool

	policy   PolicyGate
	platform Platform

	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	// parallelBatch is swappable so the sequential fallback path stays
	// testable without a real pool failure.
	parallelBatch func(ctx context.Context, items []*engine.Resource) ([]engine.ItemValidation, error)
}

// New creates a Validator over the given handler registry.
func New(registry engine.HandlerRegistry, opts Options) *Validator {
	timeout := opts.ItemTimeout
	if timeout == 0 {
		timeout = DefaultItemTimeout
	}
	if timeout < MinItemTimeout {
		timeout = MinItemTimeout
	}
	if timeout > MaxItemTimeout {
		timeout = MaxItemTimeout
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	log := opts.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	platform := DetectPlatform()
	if opts.Platform != nil {
		platform = *opts.Platform
	}

	v := &Validator{
		registry:          registry,
		itemTimeout:       timeout,
		parallel:          opts.Parallel,
		workers:           workers,
		skipCompatibility: opts.SkipCompatibility,
		skipConflicts:     opts.SkipConflicts,
		skipImpact:        opts.SkipImpact,
		policy:            opts.Policy,
		platform:          platform,
		log:               log.NewComponentLogger("validator"),
		metrics:           opts.Metrics,
		tracer:            opts.Tracer,
	}
	v.parallelBatch = v.runParallel
	return v
}

// Validate runs the full pipeline and always returns a result; pipeline
// failures surface as StatusError, never as a nil result.
func (v *Validator) Validate(ctx context.Context, cfg *engine.Configuration) *engine.ValidationResult {
	started := time.Now()
	if cfg == nil {
		return &engine.ValidationResult{
			OverallStatus: engine.StatusError,
			Issues:        []string{"no configuration provided"},
			StartedAt:     started,
		}
	}
	result := &engine.ValidationResult{
		ConfigurationName: cfg.Name,
		StartedAt:         started,
	}

	if v.tracer != nil {
		spanCtx, span := v.tracer.StartValidationSpan(ctx, cfg.Name)
		ctx = spanCtx
		defer span.End()
	}
	defer func() {
		result.Duration = time.Since(started)
		if v.metrics != nil {
			v.metrics.ValidationCompleted(string(result.OverallStatus), result.Duration)
		}
	}()

	// Stage 1: structural. Failure short-circuits the pipeline.
	if issues := structuralIssues(cfg); len(issues) > 0 {
		result.OverallStatus = engine.StatusInvalid
		result.Issues = issues
		v.log.WithField("config", cfg.Name).Warnf("structurally invalid: %d issue(s)", len(issues))
		return result
	}

	// Policy gate. A gate failure is a validator failure, not an invalid
	// configuration.
	var policyWarnings []string
	if v.policy != nil {
		denials, warnings, err := v.policy.Evaluate(ctx, cfg)
		if err != nil {
			result.OverallStatus = engine.StatusError
			result.Issues = append(result.Issues, fmt.Sprintf("policy evaluation failed: %v", err))
			return result
		}
		if len(denials) > 0 {
			result.OverallStatus = engine.StatusInvalid
			result.Issues = append(result.Issues, denials...)
			return result
		}
		policyWarnings = warnings
		result.Issues = append(result.Issues, warnings...)
	}

	// Stage 2: per-item testing.
	result.ItemResults = v.testItems(ctx, cfg.Items)
	for _, item := range result.ItemResults {
		switch item.Status {
		case engine.ItemValid:
			result.ValidCount++
		case engine.ItemInvalid:
			result.InvalidCount++
		case engine.ItemWarning:
			result.WarningCount++
		}
	}

	// Stage 3: system compatibility.
	if !v.skipCompatibility {
		compat := checkCompatibility(cfg, v.platform)
		result.SystemCompatible = &compat
	}

	// Stage 4: conflict detection. Conflicts are reported, not thrown.
	if !v.skipConflicts {
		result.Conflicts = detectConflicts(cfg)
		ok := len(result.Conflicts) == 0
		result.DependenciesValid = &ok
	}

	// Stage 5: performance impact.
	if !v.skipImpact {
		impact := estimateImpact(cfg.Items)
		result.PerformanceImpact = &impact
	}

	result.OverallStatus = deriveStatus(result, len(policyWarnings) > 0)
	result.Recommendations = recommendations(result)

	v.log.WithField("config", cfg.Name).
		WithField("status", string(result.OverallStatus)).
		Infof("validated %d item(s): %d valid, %d invalid, %d warning(s)",
			len(result.ItemResults), result.ValidCount, result.InvalidCount, result.WarningCount)
	return result
}

// structuralIssues checks the invariants every later stage assumes.
func structuralIssues(cfg *engine.Configuration) []string {
	var issues []string
	if strings.TrimSpace(cfg.Name) == "" {
		issues = append(issues, "configuration name is required")
	}
	if strings.TrimSpace(cfg.Version) == "" {
		issues = append(issues, "configuration version is required")
	}
	if len(cfg.Items) == 0 {
		issues = append(issues, "configuration must contain at least one item")
	}

	seen := make(map[string]bool, len(cfg.Items))
	for i, item := range cfg.Items {
		if strings.TrimSpace(item.Name) == "" {
			issues = append(issues, fmt.Sprintf("item %d has an empty name", i))
			continue
		}
		if strings.TrimSpace(item.Type) == "" {
			issues = append(issues, fmt.Sprintf("item %q has an empty type", item.Name))
		}
		if seen[item.Name] {
			issues = append(issues, fmt.Sprintf("duplicate item name %q", item.Name))
		}
		seen[item.Name] = true
	}
	return issues
}

// testItems runs the per-item stage, falling back to sequential execution
// when the parallel mechanism itself fails. The fallback re-tests the whole
// batch so the caller never sees partial results.
func (v *Validator) testItems(ctx context.Context, items []*engine.Resource) []engine.ItemValidation {
	if !v.parallel || len(items) < 2 {
		return v.runSequential(ctx, items)
	}
	results, err := v.parallelBatch(ctx, items)
	if err != nil {
		v.log.WithError(err).Warn("parallel validation failed, retrying sequentially")
		return v.runSequential(ctx, items)
	}
	return results
}

func (v *Validator) runSequential(ctx context.Context, items []*engine.Resource) []engine.ItemValidation {
	results := make([]engine.ItemValidation, len(items))
	for i, item := range items {
		results[i] = v.testItem(ctx, item)
	}
	return results
}

// runParallel tests items concurrently under a bounded pool. A worker panic
// is a systemic failure of the pool, not an item result.
func (v *Validator) runParallel(ctx context.Context, items []*engine.Resource) ([]engine.ItemValidation, error) {
	results := make([]engine.ItemValidation, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = engine.NewInternalError(fmt.Sprintf("validation worker panicked: %v", r), nil)
				}
			}()
			results[i] = v.testItem(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// testItem produces the validation record for one item. All failure modes
// land in the record; testItem itself never fails.
func (v *Validator) testItem(ctx context.Context, item *engine.Resource) engine.ItemValidation {
	started := time.Now()
	record := engine.ItemValidation{
		ItemName: item.Name,
		ItemType: item.Type,
		Status:   engine.ItemValid,
	}
	defer func() { record.Elapsed = time.Since(started) }()

	handler, err := v.registry.Handler(item.Type)
	if err != nil {
		record.Status = engine.ItemInvalid
		record.Issues = append(record.Issues, fmt.Sprintf("no handler registered for type %q", item.Type))
		return record
	}

	satisfied, err := v.boundedTest(ctx, handler, item)
	switch {
	case engine.IsTimeout(err):
		record.Status = engine.ItemInvalid
		record.Issues = append(record.Issues,
			fmt.Sprintf("validation timeout after %s", v.itemTimeout))
	case err != nil:
		// Ambiguous state is a warning, not a hard failure; Test already
		// answered false conservatively.
		record.Status = engine.ItemWarning
		record.Issues = append(record.Issues, fmt.Sprintf("state test failed: %v", err))
	default:
		record.Satisfied = satisfied
	}
	return record
}

type testOutcome struct {
	satisfied bool
	err       error
}

// boundedTest isolates one Test call behind a deadline. A handler that
// ignores context cancellation is abandoned at the deadline; its goroutine
// finishes in the background and its late result is discarded.
func (v *Validator) boundedTest(ctx context.Context, h engine.Handler, item *engine.Resource) (bool, error) {
	testCtx, cancel := context.WithTimeout(ctx, v.itemTimeout)
	defer cancel()

	done := make(chan testOutcome, 1)
	go func() {
		satisfied, err := h.Test(testCtx, item)
		done <- testOutcome{satisfied: satisfied, err: err}
	}()

	select {
	case out := <-done:
		return out.satisfied, out.err
	case <-testCtx.Done():
		return false, engine.NewTimeoutError(item.Name)
	}
}

// deriveStatus folds the stage outcomes into the overall status. An invalid
// item, an incompatible system or a failed dependency check invalidates the
// run; item and policy warnings only degrade it.
func deriveStatus(result *engine.ValidationResult, policyWarned bool) engine.ValidationStatus {
	if result.InvalidCount > 0 {
		return engine.StatusInvalid
	}
	if result.SystemCompatible != nil && !result.SystemCompatible.Compatible {
		return engine.StatusInvalid
	}
	if result.DependenciesValid != nil && !*result.DependenciesValid {
		return engine.StatusInvalid
	}
	if result.WarningCount > 0 || policyWarned {
		return engine.StatusValidWithWarnings
	}
	return engine.StatusValid
}
