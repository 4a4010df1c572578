package stores

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate store: %v", err)
	}
	return store
}

func testRun(id string) *Run {
	now := time.Now()
	return &Run{
		ID:        id,
		Operation: "deploy",
		Sources:   `["configs/tasks.yaml"]`,
		Status:    RunStatusRunning,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestCreateAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Operation != "deploy" {
		t.Errorf("Expected operation deploy, got %s", run.Operation)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("Expected status running, got %s", run.Status)
	}
	if run.CompletedAt != nil {
		t.Errorf("Expected nil completed_at, got %v", run.CompletedAt)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestCompleteRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	runErr := "2 entity(ies) failed"
	if err := store.CompleteRun(ctx, "run-1", RunStatusFailed, &runErr); err != nil {
		t.Fatalf("Failed to complete run: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Status != RunStatusFailed {
		t.Errorf("Expected status failed, got %s", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("Expected completed_at set")
	}
	if run.Error == nil || *run.Error != runErr {
		t.Errorf("Expected error %q, got %v", runErr, run.Error)
	}
}

func TestCompleteRunNotFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.CompleteRun(context.Background(), "missing", RunStatusCompleted, nil); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testRun("run-old")
	older.StartedAt = time.Now().Add(-time.Hour)
	if err := store.CreateRun(ctx, older); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if err := store.CreateRun(ctx, testRun("run-new")); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-new" || runs[1].ID != "run-old" {
		t.Errorf("Expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}

	limited, err := store.ListRuns(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-new" {
		t.Errorf("Expected limit applied, got %v", limited)
	}
}

func TestAppendAndListRunItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	entityID := "5"
	items := []*RunItem{
		{RunID: "run-1", Source: "tasks.yaml", Kind: "optionType", Name: "region", Outcome: "created", EntityID: &entityID, Timestamp: time.Now()},
		{RunID: "run-1", Source: "tasks.yaml", Kind: "task", Name: "build", Outcome: "failed", Timestamp: time.Now()},
	}
	for _, item := range items {
		if err := store.AppendRunItem(ctx, item); err != nil {
			t.Fatalf("Failed to append run item: %v", err)
		}
		if item.ID == 0 {
			t.Error("Expected item id assigned on insert")
		}
	}

	listed, err := store.ListRunItems(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to list run items: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(listed))
	}
	if listed[0].Name != "region" || listed[1].Name != "build" {
		t.Errorf("Expected recorded order, got %s then %s", listed[0].Name, listed[1].Name)
	}
	if listed[0].EntityID == nil || *listed[0].EntityID != "5" {
		t.Errorf("Expected entity id 5, got %v", listed[0].EntityID)
	}
	if listed[1].EntityID != nil {
		t.Errorf("Expected nil entity id, got %v", listed[1].EntityID)
	}
}

func TestAppendRunItemRequiresRun(t *testing.T) {
	store := newTestStore(t)

	item := &RunItem{RunID: "missing", Source: "x.yaml", Kind: "task", Name: "a", Outcome: "created", Timestamp: time.Now()}
	if err := store.AppendRunItem(context.Background(), item); err == nil {
		t.Error("Expected foreign key violation for unknown run")
	}
}

func TestDeleteRunCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	item := &RunItem{RunID: "run-1", Source: "x.yaml", Kind: "task", Name: "a", Outcome: "created", Timestamp: time.Now()}
	if err := store.AppendRunItem(ctx, item); err != nil {
		t.Fatalf("Failed to append run item: %v", err)
	}

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-1"); err == nil {
		t.Error("Expected run gone")
	}
	listed, err := store.ListRunItems(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to list run items: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("Expected items cascaded, got %d", len(listed))
	}
}

func TestHealthCheck(t *testing.T) {
	store := newTestStore(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("Failed health check: %v", err)
	}

	uninitialized, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := uninitialized.HealthCheck(context.Background()); err == nil {
		t.Error("Expected error before Init")
	}
}
