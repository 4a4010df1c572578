package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/openmorph/morphctl/pkg/engine"
)

func TestReportSummaryOrder(t *testing.T) {
	report := engine.NewReport(false)
	report.Add(engine.Record{Name: "a", Outcome: engine.OutcomeUnchanged})
	report.Add(engine.Record{Name: "b", Outcome: engine.OutcomeCreated})
	report.Add(engine.Record{Name: "c", Outcome: engine.OutcomeCreated})
	report.Add(engine.Record{Name: "d", Outcome: engine.OutcomeFailed})

	want := "2 created, 1 unchanged, 1 failed"
	if got := report.Summary(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestReportSummaryEmpty(t *testing.T) {
	if got := engine.NewReport(false).Summary(); got != "no changes" {
		t.Errorf("Expected no changes, got %q", got)
	}
}

func TestReportSuccess(t *testing.T) {
	report := engine.NewReport(false)
	report.Add(engine.Record{Name: "a", Outcome: engine.OutcomeCreated})
	if !report.Success() {
		t.Error("Expected success with no failures")
	}
	report.Add(engine.Record{Name: "b", Outcome: engine.OutcomeFailed})
	if report.Success() {
		t.Error("Expected failure after a failed record")
	}
	if len(report.Failures()) != 1 {
		t.Errorf("Expected 1 failure, got %d", len(report.Failures()))
	}
}

func TestReportRunID(t *testing.T) {
	a := engine.NewReport(false)
	b := engine.NewReport(false)
	if a.RunID == "" || a.RunID == b.RunID {
		t.Errorf("Expected distinct run ids, got %q and %q", a.RunID, b.RunID)
	}
}

func TestOutcomeValidate(t *testing.T) {
	if err := engine.OutcomeCreated.Validate(); err != nil {
		t.Errorf("Expected valid outcome, got %v", err)
	}
	if err := engine.Outcome("bogus").Validate(); err == nil {
		t.Error("Expected error for unknown outcome")
	}
}

func TestRegistryPutGet(t *testing.T) {
	registry := engine.NewRegistry()
	registry.Put("optionTypes", "region", json.Number("1"))

	// Lookups normalize the collection path, so any alias of the same
	// collection hits the entry.
	id, ok := registry.Get("/api/library/option-types", "region")
	if !ok {
		t.Fatal("Expected entry for normalized path")
	}
	if id.(json.Number).String() != "1" {
		t.Errorf("Expected id 1, got %v", id)
	}
	if _, ok := registry.Get("optionTypes", "other"); ok {
		t.Error("Expected miss for unknown name")
	}
}

func TestRegistryOverwrite(t *testing.T) {
	registry := engine.NewRegistry()
	registry.Put("tasks", "build", 1)
	registry.Put("tasks", "build", 2)

	if registry.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", registry.Len())
	}
	id, _ := registry.Get("tasks", "build")
	if id != 2 {
		t.Errorf("Expected overwritten id 2, got %v", id)
	}
}

func TestRegistryKeysOrder(t *testing.T) {
	registry := engine.NewRegistry()
	registry.Put("tasks", "build", 1)
	registry.Put("optionTypes", "region", 2)

	keys := registry.Keys()
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(keys))
	}
	if keys[0] != "/api/tasks:build" || keys[1] != "/api/library/option-types:region" {
		t.Errorf("Expected insertion order, got %v", keys)
	}
}
