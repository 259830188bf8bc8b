package execute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// DefaultBatchWorkers bounds the concurrent package-install path.
const DefaultBatchWorkers = 4

// Options configures an Executor.
type Options struct {
	// DryRun reports what would change without mutating anything.
	DryRun bool

	// Force applies every selected item even when its state test reports it
	// already satisfied.
	Force bool

	// IncludeTypes restricts the run to the listed resource types. Empty
	// means all types.
	IncludeTypes []string

	// ExcludeTypes drops the listed resource types from the run.
	ExcludeTypes []string

	// BatchPackages applies package-type items concurrently under a bounded
	// pool instead of in declared order. All other types keep declared-order
	// processing.
	BatchPackages bool

	// BatchWorkers bounds the package pool. Defaults to DefaultBatchWorkers.
	BatchWorkers int

	// Store optionally persists the finished run. Persistence failures are
	// logged, never fatal to the run itself.
	Store engine.RunStore

	// Logger, Metrics and Tracer are optional observability hooks.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Executor applies configurations through the handler registry.
type Executor struct {
	registry engine.HandlerRegistry

	dryRun        bool
	force         bool
	includeTypes  map[string]bool
	excludeTypes  map[string]bool
	batchPackages bool
	batchWorkers  int

	store   engine.RunStore
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewExecutor creates an Executor over the given handler registry.
func NewExecutor(registry engine.HandlerRegistry, opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}
	workers := opts.BatchWorkers
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	return &Executor{
		registry:      registry,
		dryRun:        opts.DryRun,
		force:         opts.Force,
		includeTypes:  toSet(opts.IncludeTypes),
		excludeTypes:  toSet(opts.ExcludeTypes),
		batchPackages: opts.BatchPackages,
		batchWorkers:  workers,
		store:         opts.Store,
		log:           log.NewComponentLogger("executor"),
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
	}
}

func toSet(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// Execute converges every selected item and always returns a complete
// result list; per-item failures are captured in the records and the batch
// continues. The returned error is non-nil only for a critical failure, and
// even then the result covers everything processed up to and including the
// critical item.
func (e *Executor) Execute(ctx context.Context, cfg *engine.Configuration) (*engine.ExecutionResult, error) {
	runID := uuid.New().String()
	result := &engine.ExecutionResult{
		RunID:             runID,
		ConfigurationName: cfg.Name,
		DryRun:            e.dryRun,
		StartedAt:         time.Now(),
	}

	if e.tracer != nil {
		spanCtx, span := e.tracer.StartRunSpan(ctx, runID, cfg.Name, e.dryRun)
		ctx = spanCtx
		defer span.End()
	}
	if e.metrics != nil {
		e.metrics.RunStarted(e.dryRun)
	}

	log := e.log.WithRunID(runID).WithField("config", cfg.Name)
	items := e.selectItems(cfg)
	log.Infof("starting run over %d item(s), dry_run=%v", len(items), e.dryRun)

	criticalErr := e.processItems(ctx, items, result)

	// A critical abort leaves unreached slots empty; the result reports only
	// what was actually processed.
	processed := result.Items[:0]
	for _, record := range result.Items {
		if record.ItemName != "" {
			processed = append(processed, record)
		}
	}
	result.Items = processed

	result.Finalize(time.Now())

	outcome := "success"
	if result.Failed > 0 {
		outcome = "failure"
	}
	if e.metrics != nil {
		e.metrics.RunCompleted(outcome, result.Duration)
	}
	log.WithField("outcome", outcome).
		Infof("run finished: %d succeeded, %d failed in %s", result.Succeeded, result.Failed, result.Duration)

	if e.store != nil {
		if err := e.store.SaveRun(ctx, result); err != nil {
			log.WithError(err).Warn("failed to persist run")
		}
	}
	return result, criticalErr
}

// selectItems returns the enabled items passing the type filters, in
// declared order.
func (e *Executor) selectItems(cfg *engine.Configuration) []*engine.Resource {
	var items []*engine.Resource
	for _, item := range cfg.EnabledItems() {
		if e.includeTypes != nil && !e.includeTypes[item.Type] {
			continue
		}
		if e.excludeTypes[item.Type] {
			continue
		}
		items = append(items, item)
	}
	return items
}

// processItems fills result.Items with one record per selected item. The
// records stay in declared order even when the package batch path runs
// concurrently.
func (e *Executor) processItems(ctx context.Context, items []*engine.Resource, result *engine.ExecutionResult) error {
	result.Items = make([]engine.ItemResult, len(items))

	if e.batchPackages && !e.dryRun {
		return e.processWithPackageBatch(ctx, items, result)
	}

	for i, item := range items {
		record, err := e.processItem(ctx, item)
		result.Items[i] = record
		if err != nil {
			result.Items = result.Items[:i+1]
			return err
		}
	}
	return nil
}

// processWithPackageBatch dispatches package installs as independent
// background workers and joins them, then processes the remaining items in
// declared order. A critical package failure aborts before the ordered pass.
func (e *Executor) processWithPackageBatch(ctx context.Context, items []*engine.Resource, result *engine.ExecutionResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchWorkers)

	// Critical errors surface after the join; sibling installs already in
	// flight are allowed to finish. Each worker owns its own slot.
	criticalErrs := make([]error, len(items))
	for i, item := range items {
		if item.Type != engine.TypePackage {
			continue
		}
		g.Go(func() error {
			record, err := e.processItem(gctx, item)
			result.Items[i] = record
			criticalErrs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return engine.NewInternalError("package batch failed", err)
	}
	for _, err := range criticalErrs {
		if err != nil {
			return err
		}
	}

	for i, item := range items {
		if item.Type == engine.TypePackage {
			continue
		}
		record, err := e.processItem(ctx, item)
		result.Items[i] = record
		if err != nil {
			return err
		}
	}
	return nil
}

// processItem converges one item. The returned error is non-nil only when
// the failure is critical; every other failure mode lands in the record.
func (e *Executor) processItem(ctx context.Context, item *engine.Resource) (engine.ItemResult, error) {
	started := time.Now()
	record := engine.ItemResult{
		ItemName: item.Name,
		ItemType: item.Type,
	}
	defer func() {
		record.Duration = time.Since(started)
		if e.metrics != nil {
			outcome := "success"
			if !record.Success {
				outcome = "failure"
			}
			e.metrics.ItemApplied(item.Type, outcome, record.Duration)
		}
	}()

	log := e.log.WithItem(item.Name, item.Type)

	handler, err := e.registry.Handler(item.Type)
	if err != nil {
		record.Message = fmt.Sprintf("no handler registered for type %q", item.Type)
		log.Warn(record.Message)
		return record, nil
	}

	// Forced mode skips the satisfied check entirely; Apply is idempotent.
	if !e.force {
		satisfied, err := handler.Test(ctx, item)
		if err != nil {
			// Conservative: an unanswerable test means unsatisfied, so the
			// apply path decides.
			log.WithError(err).Debug("state test failed, proceeding to apply")
			satisfied = false
		}
		if satisfied {
			record.Success = true
			record.Message = "already satisfied"
			log.Debug("already satisfied, skipping")
			return record, nil
		}
	}

	if e.dryRun {
		record.Success = true
		record.Message = "would apply"
		log.Info("dry run: would apply")
		return record, nil
	}

	before, err := handler.CurrentState(ctx, item)
	if err != nil {
		log.WithError(err).Debug("before-state capture failed")
		before = engine.AbsentSnapshot()
	}

	outcome, applyErr := handler.Apply(ctx, item)
	if applyErr != nil {
		record.Message = fmt.Sprintf("apply failed: %v", applyErr)
		log.WithError(applyErr).Error("apply failed")
		if engine.IsCritical(applyErr) {
			return record, applyErr
		}
		return record, nil
	}

	after, err := handler.CurrentState(ctx, item)
	if err != nil {
		log.WithError(err).Debug("after-state capture failed")
		after = engine.AbsentSnapshot()
	}

	record.Success = true
	record.RestartRequired = outcome.RestartRequired
	record.Changes = &engine.ChangeSet{Before: before, After: after}
	record.Message = outcome.Message
	if record.Message == "" {
		if outcome.Changed {
			record.Message = "applied"
		} else {
			record.Message = "verified"
		}
	}
	log.Info(record.Message)
	return record, nil
}
