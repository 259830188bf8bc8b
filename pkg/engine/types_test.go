package engine

import (
	"errors"
	"testing"
	"time"
)

func TestConfigurationAddItem(t *testing.T) {
	cfg := NewConfiguration("workstation", "1.0")

	if err := cfg.AddItem(&Resource{Name: "git", Type: TypePackage, Enabled: true}); err != nil {
		t.Fatalf("unexpected error adding first item: %v", err)
	}
	if err := cfg.AddItem(&Resource{Name: "curl", Type: TypePackage, Enabled: true}); err != nil {
		t.Fatalf("unexpected error adding second item: %v", err)
	}

	err := cfg.AddItem(&Resource{Name: "git", Type: TypeFeatureToggle, Enabled: true})
	if err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if !IsDuplicateName(err) {
		t.Errorf("expected duplicate_name kind, got %v", err)
	}
	if len(cfg.Items) != 2 {
		t.Errorf("rejected add changed item count: got %d, want 2", len(cfg.Items))
	}
}

func TestConfigurationAddItemInvalidIdentity(t *testing.T) {
	tests := []struct {
		name     string
		resource *Resource
	}{
		{"empty name", &Resource{Name: "", Type: TypePackage}},
		{"whitespace name", &Resource{Name: "   ", Type: TypePackage}},
		{"empty type", &Resource{Name: "git", Type: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfiguration("c", "1.0")
			if err := cfg.AddItem(tt.resource); err == nil {
				t.Error("expected identity validation to fail")
			}
		})
	}
}

func TestConfigurationItemLookupAfterDecode(t *testing.T) {
	// A decoded configuration has no index until first lookup.
	cfg := &Configuration{
		Name:    "decoded",
		Version: "1.0",
		Items: []*Resource{
			{Name: "a", Type: TypeSetting},
			{Name: "b", Type: TypeSetting},
		},
	}

	item, ok := cfg.Item("b")
	if !ok {
		t.Fatal("expected to find item b")
	}
	if item.Type != TypeSetting {
		t.Errorf("unexpected type %q", item.Type)
	}
	if _, ok := cfg.Item("missing"); ok {
		t.Error("did not expect to find missing item")
	}
}

func TestEnabledItemsPreservesOrder(t *testing.T) {
	cfg := NewConfiguration("c", "1.0")
	names := []string{"one", "two", "three", "four"}
	for i, n := range names {
		if err := cfg.AddItem(&Resource{Name: n, Type: TypeSetting, Enabled: i != 1}); err != nil {
			t.Fatal(err)
		}
	}

	enabled := cfg.EnabledItems()
	want := []string{"one", "three", "four"}
	if len(enabled) != len(want) {
		t.Fatalf("got %d enabled items, want %d", len(enabled), len(want))
	}
	for i, n := range want {
		if enabled[i].Name != n {
			t.Errorf("enabled[%d] = %q, want %q", i, enabled[i].Name, n)
		}
	}
}

func TestExecutionResultFinalize(t *testing.T) {
	started := time.Now()
	result := &ExecutionResult{
		RunID:     "run-1",
		StartedAt: started,
		Items: []ItemResult{
			{ItemName: "a", Success: true},
			{ItemName: "b", Success: false},
			{ItemName: "c", Success: true, RestartRequired: true},
		},
	}

	result.Finalize(started.Add(2 * time.Second))

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("counts = (%d, %d), want (2, 1)", result.Succeeded, result.Failed)
	}
	if !result.RestartRequired {
		t.Error("expected restart required to propagate")
	}
	if result.Duration != 2*time.Second {
		t.Errorf("duration = %v, want 2s", result.Duration)
	}
	if result.Throughput != 1.5 {
		t.Errorf("throughput = %v, want 1.5", result.Throughput)
	}
}

func TestPropertiesCoercion(t *testing.T) {
	// Decoded YAML/JSON yields loosely typed values.
	p := Properties{
		"package_id": "vim",
		"port":       "8080",
		"verbose":    "true",
		"tags":       []interface{}{"a", "b"},
	}

	if got := p.String("package_id"); got != "vim" {
		t.Errorf("String = %q", got)
	}
	if got := p.Int("port"); got != 8080 {
		t.Errorf("Int = %d", got)
	}
	if !p.Bool("verbose") {
		t.Error("Bool = false, want true")
	}
	if got := p.StringSlice("tags"); len(got) != 2 || got[0] != "a" {
		t.Errorf("StringSlice = %v", got)
	}
	if got := p.StringOr("missing", "fallback"); got != "fallback" {
		t.Errorf("StringOr = %q", got)
	}
	if p.Has("missing") {
		t.Error("Has reported a missing key")
	}
}

func TestErrorKinds(t *testing.T) {
	applyErr := NewApplyError("install failed", errors.New("exit status 1")).
		WithResource("git").
		WithOperation("apply")

	if !IsKind(applyErr, KindApply) {
		t.Error("expected apply kind")
	}
	if IsCritical(applyErr) {
		t.Error("apply error must not classify as critical")
	}
	if applyErr.Resource != "git" {
		t.Errorf("resource = %q", applyErr.Resource)
	}

	critical := NewCriticalError("state store corrupted", applyErr)
	if !IsCritical(critical) {
		t.Error("expected critical kind")
	}
	// The chain still exposes the wrapped apply error.
	if !IsKind(critical, KindCritical) {
		t.Error("errors.As should find the outermost engine error")
	}
	var e *Error
	if !errors.As(critical, &e) || e.Kind != KindCritical {
		t.Error("expected outermost kind critical")
	}

	if !IsTimeout(NewTimeoutError("slow")) {
		t.Error("expected timeout kind")
	}
	if !IsUnresolved(NewUnresolvedError("theme", "Dark")) {
		t.Error("expected unresolved kind")
	}
}
