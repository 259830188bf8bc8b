package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/setforge/setforge/pkg/engine"
)

// fakeHandler is a scriptable handler for one resource type.
type fakeHandler struct {
	resourceType string
	testFn       func(ctx context.Context, r *engine.Resource) (bool, error)
}

func (h *fakeHandler) Type() string { return h.resourceType }

func (h *fakeHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	if h.testFn != nil {
		return h.testFn(ctx, r)
	}
	return true, nil
}

func (h *fakeHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	return engine.ApplyOutcome{}, nil
}

func (h *fakeHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	return engine.AbsentSnapshot(), nil
}

// fakeRegistry is a map-backed handler registry.
type fakeRegistry struct {
	handlers map[string]engine.Handler
}

func newFakeRegistry(handlers ...engine.Handler) *fakeRegistry {
	reg := &fakeRegistry{handlers: make(map[string]engine.Handler)}
	for _, h := range handlers {
		reg.handlers[h.Type()] = h
	}
	return reg
}

func (r *fakeRegistry) Handler(resourceType string) (engine.Handler, error) {
	h, ok := r.handlers[resourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}
	return h, nil
}

func (r *fakeRegistry) Register(h engine.Handler) error {
	r.handlers[h.Type()] = h
	return nil
}

func (r *fakeRegistry) Types() []string {
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

func pkg(name string, props engine.Properties) *engine.Resource {
	return &engine.Resource{Name: name, Type: engine.TypePackage, Enabled: true, Properties: props}
}

func TestValidateStructuralFailure(t *testing.T) {
	tests := []struct {
		name string
		cfg  *engine.Configuration
	}{
		{"no items", engine.NewConfiguration("empty", "1.0")},
		{"missing name", &engine.Configuration{
			Version: "1.0",
			Items:   []*engine.Resource{pkg("git", nil)},
		}},
		{"missing version", &engine.Configuration{
			Name:  "x",
			Items: []*engine.Resource{pkg("git", nil)},
		}},
		{"duplicate names", &engine.Configuration{
			Name:    "x",
			Version: "1.0",
			Items:   []*engine.Resource{pkg("git", nil), pkg("git", nil)},
		}},
		{"empty item type", &engine.Configuration{
			Name:    "x",
			Version: "1.0",
			Items:   []*engine.Resource{{Name: "git", Enabled: true}},
		}},
	}

	v := New(newFakeRegistry(), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(context.Background(), tt.cfg)
			if result.OverallStatus != engine.StatusInvalid {
				t.Errorf("OverallStatus = %s, want invalid", result.OverallStatus)
			}
			if len(result.Issues) == 0 {
				t.Error("expected structural issues")
			}
			if len(result.ItemResults) != 0 {
				t.Error("structural failure must short-circuit item testing")
			}
		})
	}
}

func TestValidateAllValid(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{resourceType: engine.TypePackage})
	v := New(registry, Options{Platform: &Platform{OS: "linux", Elevated: true}})

	cfg := buildConfig(t, pkg("git", nil), pkg("curl", nil))
	result := v.Validate(context.Background(), cfg)

	if result.OverallStatus != engine.StatusValid {
		t.Fatalf("OverallStatus = %s, want valid (issues: %v)", result.OverallStatus, result.Issues)
	}
	if result.ValidCount != 2 || result.InvalidCount != 0 {
		t.Errorf("counts = %d/%d, want 2/0", result.ValidCount, result.InvalidCount)
	}
	for _, item := range result.ItemResults {
		if !item.Satisfied {
			t.Errorf("item %s not marked satisfied", item.ItemName)
		}
	}
}

func TestValidateUnknownType(t *testing.T) {
	v := New(newFakeRegistry(), Options{Platform: &Platform{OS: "linux", Elevated: true}})

	cfg := buildConfig(t, &engine.Resource{Name: "mystery", Type: "exotic", Enabled: true})
	result := v.Validate(context.Background(), cfg)

	if result.OverallStatus != engine.StatusInvalid {
		t.Errorf("OverallStatus = %s, want invalid", result.OverallStatus)
	}
	if result.InvalidCount != 1 {
		t.Errorf("InvalidCount = %d, want 1", result.InvalidCount)
	}
}

func TestValidateTestErrorIsWarning(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{
		resourceType: engine.TypePackage,
		testFn: func(ctx context.Context, r *engine.Resource) (bool, error) {
			return false, errors.New("package manager unreachable")
		},
	})
	v := New(registry, Options{Platform: &Platform{OS: "linux", Elevated: true}})

	cfg := buildConfig(t, pkg("git", nil))
	result := v.Validate(context.Background(), cfg)

	if result.OverallStatus != engine.StatusValidWithWarnings {
		t.Errorf("OverallStatus = %s, want valid_with_warnings", result.OverallStatus)
	}
	if result.WarningCount != 1 {
		t.Errorf("WarningCount = %d, want 1", result.WarningCount)
	}
}

func TestValidateItemTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	registry := newFakeRegistry(&fakeHandler{
		resourceType: engine.TypePackage,
		testFn: func(ctx context.Context, r *engine.Resource) (bool, error) {
			if r.Name == "hanging" {
				<-block
			}
			return true, nil
		},
	})
	v := New(registry, Options{Platform: &Platform{OS: "linux", Elevated: true}})
	v.itemTimeout = 50 * time.Millisecond

	cfg := buildConfig(t, pkg("hanging", nil), pkg("quick", nil))
	result := v.Validate(context.Background(), cfg)

	if result.InvalidCount != 1 {
		t.Fatalf("InvalidCount = %d, want 1 (timeout marks invalid)", result.InvalidCount)
	}
	if result.ValidCount != 1 {
		t.Errorf("ValidCount = %d, want 1 (timeout is per-item, batch continues)", result.ValidCount)
	}
	for _, item := range result.ItemResults {
		if item.ItemName == "hanging" && len(item.Issues) == 0 {
			t.Error("timed-out item carries no issue")
		}
	}
}

func TestTimeoutClamping(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultItemTimeout},
		{time.Second, MinItemTimeout},
		{time.Hour, MaxItemTimeout},
		{45 * time.Second, 45 * time.Second},
	}
	for _, tt := range tests {
		v := New(newFakeRegistry(), Options{ItemTimeout: tt.in})
		if v.itemTimeout != tt.want {
			t.Errorf("New(ItemTimeout=%s).itemTimeout = %s, want %s", tt.in, v.itemTimeout, tt.want)
		}
	}
}

// statusMultiset reduces results to a comparable order-free form.
func statusMultiset(results []engine.ItemValidation) map[string]engine.ItemStatus {
	m := make(map[string]engine.ItemStatus, len(results))
	for _, r := range results {
		m[r.ItemName] = r.Status
	}
	return m
}

func TestParallelMatchesSequential(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{
		resourceType: engine.TypePackage,
		testFn: func(ctx context.Context, r *engine.Resource) (bool, error) {
			switch r.Name {
			case "broken":
				return false, errors.New("probe failed")
			case "unsatisfied":
				return false, nil
			default:
				return true, nil
			}
		},
	})
	platform := &Platform{OS: "linux", Elevated: true}

	cfg := buildConfig(t,
		pkg("git", nil), pkg("broken", nil), pkg("unsatisfied", nil),
		pkg("curl", nil), pkg("jq", nil), pkg("make", nil),
	)

	sequential := New(registry, Options{Platform: platform}).Validate(context.Background(), cfg)
	parallel := New(registry, Options{Platform: platform, Parallel: true, Workers: 4}).Validate(context.Background(), cfg)

	seqStatuses := statusMultiset(sequential.ItemResults)
	parStatuses := statusMultiset(parallel.ItemResults)
	if len(seqStatuses) != len(parStatuses) {
		t.Fatalf("result counts differ: %d vs %d", len(seqStatuses), len(parStatuses))
	}
	for name, status := range seqStatuses {
		if parStatuses[name] != status {
			t.Errorf("item %s: sequential %s, parallel %s", name, status, parStatuses[name])
		}
	}
	if sequential.OverallStatus != parallel.OverallStatus {
		t.Errorf("overall: sequential %s, parallel %s", sequential.OverallStatus, parallel.OverallStatus)
	}
}

func TestParallelFallsBackToSequential(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{resourceType: engine.TypePackage})
	platform := &Platform{OS: "linux", Elevated: true}
	cfg := buildConfig(t, pkg("git", nil), pkg("curl", nil), pkg("jq", nil))

	want := New(registry, Options{Platform: platform}).Validate(context.Background(), cfg)

	v := New(registry, Options{Platform: platform, Parallel: true})
	v.parallelBatch = func(ctx context.Context, items []*engine.Resource) ([]engine.ItemValidation, error) {
		return nil, engine.NewInternalError("simulated pool failure", nil)
	}
	got := v.Validate(context.Background(), cfg)

	if got.OverallStatus != want.OverallStatus {
		t.Errorf("OverallStatus = %s, want %s", got.OverallStatus, want.OverallStatus)
	}
	if len(got.ItemResults) != len(want.ItemResults) {
		t.Fatalf("len(ItemResults) = %d, want %d", len(got.ItemResults), len(want.ItemResults))
	}
	gotStatuses := statusMultiset(got.ItemResults)
	for name, status := range statusMultiset(want.ItemResults) {
		if gotStatuses[name] != status {
			t.Errorf("item %s: fallback %s, sequential %s", name, gotStatuses[name], status)
		}
	}
}

func TestValidateCompatibility(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{resourceType: engine.TypePackage})

	t.Run("unsupported os", func(t *testing.T) {
		v := New(registry, Options{Platform: &Platform{OS: "plan9", Elevated: true}})
		result := v.Validate(context.Background(), buildConfig(t, pkg("git", nil)))
		if result.OverallStatus != engine.StatusInvalid {
			t.Errorf("OverallStatus = %s, want invalid", result.OverallStatus)
		}
		if result.SystemCompatible == nil || result.SystemCompatible.Compatible {
			t.Error("expected incompatible result")
		}
	})

	t.Run("elevation required but missing", func(t *testing.T) {
		v := New(registry, Options{Platform: &Platform{OS: "linux", Elevated: false}})
		result := v.Validate(context.Background(), buildConfig(t, pkg("git", nil)))
		if result.SystemCompatible == nil || !result.SystemCompatible.ElevationRequired {
			t.Fatal("package items must require elevation")
		}
		if result.SystemCompatible.Compatible {
			t.Error("unelevated process must be incompatible with package items")
		}
	})

	t.Run("skip stage", func(t *testing.T) {
		v := New(registry, Options{Platform: &Platform{OS: "plan9"}, SkipCompatibility: true})
		result := v.Validate(context.Background(), buildConfig(t, pkg("git", nil)))
		if result.SystemCompatible != nil {
			t.Error("skipped stage still produced a result")
		}
	})
}

type fakeGate struct {
	denials  []string
	warnings []string
	err      error
}

func (g *fakeGate) Evaluate(ctx context.Context, cfg *engine.Configuration) ([]string, []string, error) {
	return g.denials, g.warnings, g.err
}

func TestValidatePolicyGate(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{resourceType: engine.TypePackage})
	platform := &Platform{OS: "linux", Elevated: true}
	cfg := buildConfig(t, pkg("git", nil))

	t.Run("denial", func(t *testing.T) {
		v := New(registry, Options{Platform: platform, Policy: &fakeGate{denials: []string{"every item is disabled"}}})
		result := v.Validate(context.Background(), cfg)
		if result.OverallStatus != engine.StatusInvalid {
			t.Errorf("OverallStatus = %s, want invalid", result.OverallStatus)
		}
		if len(result.ItemResults) != 0 {
			t.Error("denied configuration must not reach item testing")
		}
	})

	t.Run("warning", func(t *testing.T) {
		v := New(registry, Options{Platform: platform, Policy: &fakeGate{warnings: []string{"missing descriptions"}}})
		result := v.Validate(context.Background(), cfg)
		if result.OverallStatus != engine.StatusValidWithWarnings {
			t.Errorf("OverallStatus = %s, want valid_with_warnings", result.OverallStatus)
		}
	})

	t.Run("gate failure", func(t *testing.T) {
		v := New(registry, Options{Platform: platform, Policy: &fakeGate{err: errors.New("rego compile error")}})
		result := v.Validate(context.Background(), cfg)
		if result.OverallStatus != engine.StatusError {
			t.Errorf("OverallStatus = %s, want error", result.OverallStatus)
		}
	})
}

func TestValidateConflictFailsDependencyCheck(t *testing.T) {
	registry := newFakeRegistry(&fakeHandler{resourceType: engine.TypePackage})
	platform := &Platform{OS: "linux", Elevated: true}
	cfg := buildConfig(t,
		pkg("git-apt", engine.Properties{"package_id": "git", "source": "apt"}),
		pkg("git-brew", engine.Properties{"package_id": "git", "source": "brew"}),
	)

	t.Run("conflict invalidates", func(t *testing.T) {
		v := New(registry, Options{Platform: platform})
		result := v.Validate(context.Background(), cfg)

		if result.DependenciesValid == nil || *result.DependenciesValid {
			t.Fatal("DependenciesValid should be false when a conflict exists")
		}
		if len(result.Conflicts) != 1 {
			t.Fatalf("Conflicts = %v, want exactly one", result.Conflicts)
		}
		if result.OverallStatus != engine.StatusInvalid {
			t.Errorf("OverallStatus = %s, want invalid (dependency check failed)", result.OverallStatus)
		}
		// Reported, not thrown: item testing still completes.
		if len(result.ItemResults) != 2 {
			t.Errorf("ItemResults = %d, want 2", len(result.ItemResults))
		}
	})

	t.Run("skip stage", func(t *testing.T) {
		v := New(registry, Options{Platform: platform, SkipConflicts: true})
		result := v.Validate(context.Background(), cfg)
		if result.DependenciesValid != nil {
			t.Error("skipped stage still produced a dependency result")
		}
		if result.OverallStatus != engine.StatusValid {
			t.Errorf("OverallStatus = %s, want valid", result.OverallStatus)
		}
	})
}
