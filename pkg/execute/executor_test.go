package execute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/setforge/setforge/pkg/engine"
)

// scriptedHandler records calls and answers from per-item scripts.
type scriptedHandler struct {
	resourceType string

	mu      sync.Mutex
	applied []string

	satisfied map[string]bool
	applyErr  map[string]error
	restart   map[string]bool
}

func newScriptedHandler(resourceType string) *scriptedHandler {
	return &scriptedHandler{
		resourceType: resourceType,
		satisfied:    make(map[string]bool),
		applyErr:     make(map[string]error),
		restart:      make(map[string]bool),
	}
}

func (h *scriptedHandler) Type() string { return h.resourceType }

func (h *scriptedHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.satisfied[r.Name], nil
}

func (h *scriptedHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.applyErr[r.Name]; err != nil {
		return engine.ApplyOutcome{}, err
	}
	h.applied = append(h.applied, r.Name)
	h.satisfied[r.Name] = true
	return engine.ApplyOutcome{Changed: true, RestartRequired: h.restart[r.Name]}, nil
}

func (h *scriptedHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.satisfied[r.Name] {
		return engine.StateSnapshot{"present": true, "name": r.Name}, nil
	}
	return engine.AbsentSnapshot(), nil
}

func (h *scriptedHandler) appliedNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.applied...)
}

type mapRegistry struct {
	handlers map[string]engine.Handler
}

func newMapRegistry(handlers ...engine.Handler) *mapRegistry {
	reg := &mapRegistry{handlers: make(map[string]engine.Handler)}
	for _, h := range handlers {
		reg.handlers[h.Type()] = h
	}
	return reg
}

func (r *mapRegistry) Handler(resourceType string) (engine.Handler, error) {
	h, ok := r.handlers[resourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}
	return h, nil
}

func (r *mapRegistry) Register(h engine.Handler) error {
	r.handlers[h.Type()] = h
	return nil
}

func (r *mapRegistry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func buildConfig(t *testing.T, items ...*engine.Resource) *engine.Configuration {
	t.Helper()
	cfg := engine.NewConfiguration("test-config", "1.0")
	for _, item := range items {
		if err := cfg.AddItem(item); err != nil {
			t.Fatalf("AddItem(%s): %v", item.Name, err)
		}
	}
	return cfg
}

func pkg(name string) *engine.Resource {
	return &engine.Resource{Name: name, Type: engine.TypePackage, Enabled: true}
}

func TestExecuteDeclaredOrder(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	exec := NewExecutor(newMapRegistry(handler), Options{})

	cfg := buildConfig(t, pkg("first"), pkg("second"), pkg("third"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	applied := handler.appliedNames()
	want := []string{"first", "second", "third"}
	if len(applied) != len(want) {
		t.Fatalf("applied = %v, want %v", applied, want)
	}
	for i := range want {
		if applied[i] != want[i] {
			t.Errorf("applied[%d] = %s, want %s", i, applied[i], want[i])
		}
	}
	if result.Succeeded != 3 || result.Failed != 0 {
		t.Errorf("summary = %d/%d, want 3/0", result.Succeeded, result.Failed)
	}
	if result.RunID == "" {
		t.Error("run has no ID")
	}
}

func TestExecuteSkipsSatisfied(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	handler.satisfied["git"] = true
	exec := NewExecutor(newMapRegistry(handler), Options{})

	cfg := buildConfig(t, pkg("git"), pkg("curl"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := handler.appliedNames(); len(got) != 1 || got[0] != "curl" {
		t.Errorf("applied = %v, want [curl]", got)
	}
	if result.Items[0].Message != "already satisfied" {
		t.Errorf("Items[0].Message = %q, want already satisfied", result.Items[0].Message)
	}
	if !result.Items[0].Success {
		t.Error("skipped item must count as success")
	}
	if result.Items[0].Changes != nil {
		t.Error("skipped item must not carry a change set")
	}
}

func TestExecuteDryRun(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	exec := NewExecutor(newMapRegistry(handler), Options{DryRun: true})

	cfg := buildConfig(t, pkg("git"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(handler.appliedNames()) != 0 {
		t.Error("dry run must not apply anything")
	}
	if !result.DryRun {
		t.Error("result must record dry-run mode")
	}
	if result.Items[0].Message != "would apply" {
		t.Errorf("Items[0].Message = %q, want would apply", result.Items[0].Message)
	}
}

func TestExecuteMiddleFailureContinues(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	handler.applyErr["second"] = errors.New("download checksum mismatch")
	exec := NewExecutor(newMapRegistry(handler), Options{})

	cfg := buildConfig(t, pkg("first"), pkg("second"), pkg("third"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v, non-critical failures must not raise", err)
	}

	if len(result.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(result.Items))
	}
	if !result.Items[0].Success || !result.Items[2].Success {
		t.Error("siblings of a failed item must still succeed")
	}
	if result.Items[1].Success {
		t.Error("failed item reported as success")
	}
	if !strings.Contains(result.Items[1].Message, "download checksum mismatch") {
		t.Errorf("failure message %q does not carry the cause", result.Items[1].Message)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("summary = %d/%d, want 2/1", result.Succeeded, result.Failed)
	}
}

func TestExecuteCriticalAborts(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	handler.applyErr["second"] = engine.NewCriticalError("disk full", nil)
	exec := NewExecutor(newMapRegistry(handler), Options{})

	cfg := buildConfig(t, pkg("first"), pkg("second"), pkg("third"))
	result, err := exec.Execute(context.Background(), cfg)
	if err == nil {
		t.Fatal("Execute() error = nil, want critical")
	}
	if !engine.IsCritical(err) {
		t.Errorf("IsCritical(%v) = false", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2 (third never reached)", len(result.Items))
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("summary = %d/%d, want 1/1", result.Succeeded, result.Failed)
	}
}

func TestExecuteCapturesChangeSet(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	exec := NewExecutor(newMapRegistry(handler), Options{})

	cfg := buildConfig(t, pkg("git"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	changes := result.Items[0].Changes
	if changes == nil {
		t.Fatal("applied item carries no change set")
	}
	if changes.Before["present"] != false {
		t.Errorf("Before = %v, want absent snapshot", changes.Before)
	}
	if changes.After["present"] != true {
		t.Errorf("After = %v, want present snapshot", changes.After)
	}
}

func TestExecuteRestartRequired(t *testing.T) {
	handler := newScriptedHandler(engine.TypeFeatureToggle)
	handler.restart["hyperv"] = true
	exec := NewExecutor(newMapRegistry(handler), Options{})

	cfg := buildConfig(t, &engine.Resource{Name: "hyperv", Type: engine.TypeFeatureToggle, Enabled: true})
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.RestartRequired {
		t.Error("aggregate restart flag not propagated")
	}
}

func TestExecuteTypeFilters(t *testing.T) {
	pkgHandler := newScriptedHandler(engine.TypePackage)
	setHandler := newScriptedHandler(engine.TypeSetting)
	registry := newMapRegistry(pkgHandler, setHandler)

	cfg := buildConfig(t,
		pkg("git"),
		&engine.Resource{Name: "theme", Type: engine.TypeSetting, Enabled: true},
		&engine.Resource{Name: "disabled", Type: engine.TypePackage, Enabled: false},
	)

	t.Run("include", func(t *testing.T) {
		exec := NewExecutor(registry, Options{IncludeTypes: []string{engine.TypeSetting}})
		result, err := exec.Execute(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(result.Items) != 1 || result.Items[0].ItemName != "theme" {
			t.Errorf("Items = %v, want only theme", result.Items)
		}
	})

	t.Run("exclude", func(t *testing.T) {
		exec := NewExecutor(registry, Options{ExcludeTypes: []string{engine.TypeSetting}})
		result, err := exec.Execute(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(result.Items) != 1 || result.Items[0].ItemName != "git" {
			t.Errorf("Items = %v, want only git", result.Items)
		}
	})
}

func TestExecuteMissingHandlerIsItemFailure(t *testing.T) {
	exec := NewExecutor(newMapRegistry(), Options{})

	cfg := buildConfig(t, pkg("git"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v, missing handler must not raise", err)
	}
	if result.Items[0].Success {
		t.Error("item with no handler reported as success")
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
}

func TestExecutePackageBatch(t *testing.T) {
	pkgHandler := newScriptedHandler(engine.TypePackage)
	setHandler := newScriptedHandler(engine.TypeSetting)
	exec := NewExecutor(newMapRegistry(pkgHandler, setHandler), Options{
		BatchPackages: true,
		BatchWorkers:  2,
	})

	cfg := buildConfig(t,
		pkg("git"), pkg("curl"), pkg("jq"),
		&engine.Resource{Name: "theme", Type: engine.TypeSetting, Enabled: true},
	)
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Succeeded != 4 {
		t.Errorf("Succeeded = %d, want 4", result.Succeeded)
	}
	// Records keep declared order even though installs ran concurrently.
	wantOrder := []string{"git", "curl", "jq", "theme"}
	for i, want := range wantOrder {
		if result.Items[i].ItemName != want {
			t.Errorf("Items[%d] = %s, want %s", i, result.Items[i].ItemName, want)
		}
	}
	if got := setHandler.appliedNames(); len(got) != 1 {
		t.Errorf("setting handler applied %v, want exactly theme", got)
	}
}

type memoryStore struct {
	mu    sync.Mutex
	saved []*engine.ExecutionResult
}

func (s *memoryStore) SaveRun(ctx context.Context, result *engine.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, result)
	return nil
}

func (s *memoryStore) GetRun(ctx context.Context, runID string) (*engine.ExecutionResult, error) {
	return nil, errors.New("not implemented")
}

func (s *memoryStore) ListRuns(ctx context.Context, limit int) ([]engine.RunRecord, error) {
	return nil, nil
}

func TestExecutePersistsRun(t *testing.T) {
	store := &memoryStore{}
	handler := newScriptedHandler(engine.TypePackage)
	exec := NewExecutor(newMapRegistry(handler), Options{Store: store})

	cfg := buildConfig(t, pkg("git"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 {
		t.Fatalf("saved %d runs, want 1", len(store.saved))
	}
	if store.saved[0].RunID != result.RunID {
		t.Errorf("saved run %s, want %s", store.saved[0].RunID, result.RunID)
	}
}

func TestExecuteForceReappliesSatisfied(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	handler.satisfied["git"] = true
	exec := NewExecutor(newMapRegistry(handler), Options{Force: true})

	cfg := buildConfig(t, pkg("git"), pkg("curl"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	applied := handler.appliedNames()
	if len(applied) != 2 {
		t.Fatalf("applied = %v, want both items applied despite satisfied state", applied)
	}
	for _, record := range result.Items {
		if record.Message == "already satisfied" {
			t.Errorf("%s skipped in forced mode", record.ItemName)
		}
		if record.Changes == nil {
			t.Errorf("%s has no change set; forced apply must capture state", record.ItemName)
		}
	}
	if result.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", result.Succeeded)
	}
}

func TestExecuteForceRespectsDryRun(t *testing.T) {
	handler := newScriptedHandler(engine.TypePackage)
	handler.satisfied["git"] = true
	exec := NewExecutor(newMapRegistry(handler), Options{Force: true, DryRun: true})

	cfg := buildConfig(t, pkg("git"))
	result, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if applied := handler.appliedNames(); len(applied) != 0 {
		t.Errorf("dry run mutated state: %v", applied)
	}
	if result.Items[0].Message != "would apply" {
		t.Errorf("Message = %q, want %q", result.Items[0].Message, "would apply")
	}
}
