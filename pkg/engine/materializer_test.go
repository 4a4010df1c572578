package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/engine"
)

func mustParse(t *testing.T, src string) *document.Node {
	t.Helper()
	n, err := document.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	return n
}

func materialize(t *testing.T, baseDir, src string) *document.Node {
	t.Helper()
	n := mustParse(t, src)
	if err := engine.NewMaterializer(baseDir).Apply(n); err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	return n
}

func TestJSONDirective(t *testing.T) {
	n := materialize(t, "", `
$json:
  config:
    haGroup:
      name: default
  enabled: true
`)
	want := `{"config":{"haGroup":{"name":"default"}},"enabled":true}`
	if n.Value != want {
		t.Errorf("Expected %s, got %v", want, n.Value)
	}
}

func TestDatasetDirective(t *testing.T) {
	n := materialize(t, "", `
$dataset:
  - bar
  - baz
`)
	want := `[{"name":"bar","value":"bar"},{"name":"baz","value":"baz"}]`
	if n.Value != want {
		t.Errorf("Expected %s, got %v", want, n.Value)
	}
}

func TestDatasetRequiresSequenceOfScalars(t *testing.T) {
	n := mustParse(t, `{$dataset: bar}`)
	if err := engine.NewMaterializer("").Apply(n); !engine.IsMaterialization(err) {
		t.Errorf("Expected materialization error for scalar operand, got %v", err)
	}

	n = mustParse(t, `{$dataset: [{name: bar}]}`)
	if err := engine.NewMaterializer("").Apply(n); !engine.IsMaterialization(err) {
		t.Errorf("Expected materialization error for mapping item, got %v", err)
	}
}

func TestDatasetCSVDirective(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "regions.csv")
	if err := os.WriteFile(csvPath, []byte("name,code\nus-east,ue\nus-west,uw\n"), 0o600); err != nil {
		t.Fatalf("Failed to write csv: %v", err)
	}

	n := materialize(t, dir, `{$datasetCsv: regions.csv}`)
	want := `[{"name":"us-east","code":"ue"},{"name":"us-west","code":"uw"}]`
	if n.Value != want {
		t.Errorf("Expected %s, got %v", want, n.Value)
	}
}

func TestDatasetCSVHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "empty.csv"), []byte("name,code\n"), 0o600); err != nil {
		t.Fatalf("Failed to write csv: %v", err)
	}

	n := materialize(t, dir, `{$datasetCsv: empty.csv}`)
	if n.Value != "[]" {
		t.Errorf("Expected [], got %v", n.Value)
	}
}

func TestDatasetCSVRejectsNonCSVPath(t *testing.T) {
	n := mustParse(t, `{$datasetCsv: data.txt}`)
	if err := engine.NewMaterializer("").Apply(n); !engine.IsMaterialization(err) {
		t.Errorf("Expected materialization error for non-csv path, got %v", err)
	}
}

func TestDatasetCSVMissingFile(t *testing.T) {
	n := mustParse(t, `{$datasetCsv: missing.csv}`)
	if err := engine.NewMaterializer(t.TempDir()).Apply(n); !engine.IsMaterialization(err) {
		t.Errorf("Expected materialization error for missing file, got %v", err)
	}
}

func TestFileContentDirective(t *testing.T) {
	dir := t.TempDir()
	content := "#!/bin/sh\necho hello\n"
	if err := os.WriteFile(filepath.Join(dir, "init.sh"), []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	n := materialize(t, dir, `{$fileContent: init.sh}`)
	if n.Value != content {
		t.Errorf("Expected verbatim file content, got %v", n.Value)
	}
}

func TestFileContentPrefixKeys(t *testing.T) {
	// Disambiguated keys like $fileContentScript behave like $fileContent.
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "run.py"), []byte("print(1)\n"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	n := materialize(t, dir, `{$fileContentScript: run.py}`)
	if n.Value != "print(1)\n" {
		t.Errorf("Expected file content, got %v", n.Value)
	}
}

func TestFileContentMissingFile(t *testing.T) {
	n := mustParse(t, `{$fileContent: missing.sh}`)
	if err := engine.NewMaterializer(t.TempDir()).Apply(n); !engine.IsMaterialization(err) {
		t.Errorf("Expected materialization error, got %v", err)
	}
}

func TestIDDirectiveNormalizes(t *testing.T) {
	n := materialize(t, "", `{$id: "optionTypes:region"}`)
	if n.Value != "${id:/api/library/option-types:region}" {
		t.Errorf("Expected normalized reference, got %v", n.Value)
	}
}

func TestIDDirectiveRejectsBadOperand(t *testing.T) {
	n := mustParse(t, `{$id: region}`)
	if err := engine.NewMaterializer("").Apply(n); !engine.IsMaterialization(err) {
		t.Errorf("Expected materialization error, got %v", err)
	}
}

func TestApplyEvaluatesNestedDirectives(t *testing.T) {
	n := materialize(t, "", `
optionList:
  name: sizes
  initialDataset:
    $dataset:
      - small
      - large
`)
	list, _ := n.Get("optionList")
	dataset, ok := list.Get("initialDataset")
	if !ok || !dataset.IsScalar() {
		t.Fatalf("Expected materialized scalar, got %v", dataset)
	}
	if dataset.Value != `[{"name":"small","value":"small"},{"name":"large","value":"large"}]` {
		t.Errorf("Unexpected dataset value: %v", dataset.Value)
	}
}

func TestApplyLeavesEntityDirectivesAlone(t *testing.T) {
	n := materialize(t, "", `
task:
  $task:
    name: build
`)
	entity, _ := n.Get("task")
	if !entity.IsMapping() {
		t.Fatalf("Expected entity directive untouched, got %v", entity.Kind)
	}
	if _, ok := entity.Get("$task"); !ok {
		t.Error("Expected $task key preserved")
	}
}
