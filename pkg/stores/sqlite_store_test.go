package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/setforge/setforge/pkg/engine"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "runs.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(runID string, startedAt time.Time) *engine.ExecutionResult {
	result := &engine.ExecutionResult{
		RunID:             runID,
		ConfigurationName: "workstation",
		StartedAt:         startedAt,
		Items: []engine.ItemResult{
			{
				ItemName: "git",
				ItemType: engine.TypePackage,
				Success:  true,
				Message:  "applied",
				Changes: &engine.ChangeSet{
					Before: engine.AbsentSnapshot(),
					After:  engine.StateSnapshot{"present": true},
				},
				Duration: 1200 * time.Millisecond,
			},
			{
				ItemName: "broken",
				ItemType: engine.TypePackage,
				Success:  false,
				Message:  "apply failed: no such package",
				Duration: 300 * time.Millisecond,
			},
		},
	}
	result.Finalize(startedAt.Add(2 * time.Second))
	return result
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved := sampleResult("run-1", time.Now().Add(-time.Minute))
	if err := store.SaveRun(ctx, saved); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}

	if got.ConfigurationName != "workstation" {
		t.Errorf("ConfigurationName = %s, want workstation", got.ConfigurationName)
	}
	if got.Succeeded != 1 || got.Failed != 1 {
		t.Errorf("summary = %d/%d, want 1/1", got.Succeeded, got.Failed)
	}
	if len(got.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(got.Items))
	}
	if got.Items[0].ItemName != "git" || got.Items[1].ItemName != "broken" {
		t.Errorf("item order not preserved: %s, %s", got.Items[0].ItemName, got.Items[1].ItemName)
	}
	if got.Items[0].Changes == nil {
		t.Fatal("change set not persisted")
	}
	if got.Items[0].Changes.After["present"] != true {
		t.Errorf("After snapshot = %v, want present", got.Items[0].Changes.After)
	}
	if got.Items[1].Changes != nil {
		t.Error("failed item gained a change set through the store")
	}
	if got.Items[0].Duration != 1200*time.Millisecond {
		t.Errorf("item duration = %s, want 1.2s", got.Items[0].Duration)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetRun(context.Background(), "no-such-run"); err == nil {
		t.Error("GetRun() on missing run did not fail")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		result := sampleResult(id, base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(ctx, result); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}

	records, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].RunID != "run-c" || records[1].RunID != "run-b" {
		t.Errorf("order = %s, %s; want run-c, run-b", records[0].RunID, records[1].RunID)
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := sampleResult("run-1", time.Now())
	if err := store.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := store.SaveRun(ctx, result); err == nil {
		t.Error("saving the same run twice did not fail")
	}
}

func TestRunStoreInterface(t *testing.T) {
	var _ engine.RunStore = (*SQLiteStore)(nil)
}

func TestConnectionPoolSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "runs.db")})
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		if store.cfg.MaxOpenConns != 25 || store.cfg.MaxIdleConns != 5 {
			t.Errorf("pool defaults = %d/%d, want 25/5", store.cfg.MaxOpenConns, store.cfg.MaxIdleConns)
		}
		if store.cfg.ConnMaxLifetime != 5*time.Minute {
			t.Errorf("ConnMaxLifetime default = %s, want 5m", store.cfg.ConnMaxLifetime)
		}
	})

	t.Run("configured values applied", func(t *testing.T) {
		store, err := NewSQLiteStore(Config{
			Path:            filepath.Join(t.TempDir(), "runs.db"),
			MaxOpenConns:    3,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Minute,
		})
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })

		if got := store.db.Stats().MaxOpenConnections; got != 3 {
			t.Errorf("MaxOpenConnections = %d, want 3", got)
		}
	})
}
