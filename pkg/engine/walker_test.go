package engine_test

import (
	"strings"
	"testing"

	"github.com/openmorph/morphctl/pkg/engine"
)

func buildPlan(t *testing.T, src string) *engine.Plan {
	t.Helper()
	plan, err := engine.NewPlanner("").BuildPlan(mustParse(t, src), "test.yaml")
	if err != nil {
		t.Fatalf("Failed to build plan: %v", err)
	}
	return plan
}

func TestBuildPlanRejectsNonMappingRoot(t *testing.T) {
	if _, err := engine.NewPlanner("").BuildPlan(mustParse(t, `[1, 2]`), "test.yaml"); !engine.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestBuildPlanSingleEntity(t *testing.T) {
	plan := buildPlan(t, `
region:
  $optionType:
    name: region
    type: text
    fieldName: region
    fieldLabel: Region
`)
	if len(plan.Items) != 1 {
		t.Fatalf("Expected 1 plan item, got %d", len(plan.Items))
	}
	item := plan.Items[0]
	if item.Kind != "optionType" {
		t.Errorf("Expected kind optionType, got %s", item.Kind)
	}
	if item.Path != "/api/library/option-types" {
		t.Errorf("Expected /api/library/option-types, got %s", item.Path)
	}
	if item.Name != "region" {
		t.Errorf("Expected name region, got %s", item.Name)
	}
	if !item.SetName || !item.Validate {
		t.Error("Expected SetName and Validate defaults to be true")
	}
}

func TestBuildPlanRootLevelEntityDirective(t *testing.T) {
	plan := buildPlan(t, `
$optionType:
  name: region
  type: text
  fieldName: region
  fieldLabel: Region
`)
	if len(plan.Items) != 1 {
		t.Fatalf("Expected 1 plan item, got %d", len(plan.Items))
	}
	item := plan.Items[0]
	if item.Kind != "optionType" {
		t.Errorf("Expected kind optionType, got %s", item.Kind)
	}
	if item.Path != "/api/library/option-types" {
		t.Errorf("Expected /api/library/option-types, got %s", item.Path)
	}
	if item.Name != "region" {
		t.Errorf("Expected name region, got %s", item.Name)
	}
}

func TestBuildPlanRootLevelEntityWithNestedChild(t *testing.T) {
	plan := buildPlan(t, `
$task:
  name: build
  taskType: script
  optionTypeId:
    $optionType:
      name: region
      type: text
      fieldName: region
      fieldLabel: Region
`)
	if len(plan.Items) != 2 {
		t.Fatalf("Expected 2 plan items, got %d", len(plan.Items))
	}
	if plan.Items[0].Kind != "optionType" || plan.Items[1].Kind != "task" {
		t.Errorf("Expected child before parent, got %s then %s",
			plan.Items[0].Kind, plan.Items[1].Kind)
	}
}

func TestBuildPlanChildrenBeforeParents(t *testing.T) {
	plan := buildPlan(t, `
build:
  $task:
    name: build
    taskType: script
    optionTypeId:
      $optionType:
        name: region
        type: text
        fieldName: region
        fieldLabel: Region
`)
	if len(plan.Items) != 2 {
		t.Fatalf("Expected 2 plan items, got %d", len(plan.Items))
	}
	if plan.Items[0].Kind != "optionType" || plan.Items[1].Kind != "task" {
		t.Errorf("Expected child before parent, got %s then %s",
			plan.Items[0].Kind, plan.Items[1].Kind)
	}
	if plan.Items[0].Parent != plan.Items[1] {
		t.Error("Expected child item linked to its parent")
	}
	if len(plan.Items[1].Children) != 1 || plan.Items[1].Children[0] != plan.Items[0] {
		t.Error("Expected parent item linked to its child")
	}
}

func TestBuildPlanRewritesChildSlotToReference(t *testing.T) {
	plan := buildPlan(t, `
build:
  $task:
    name: build
    taskType: script
    optionTypeId:
      $optionType:
        name: region
        type: text
        fieldName: region
        fieldLabel: Region
`)
	parent := plan.Items[1]
	slot, ok := parent.Body.Get("optionTypeId")
	if !ok || !slot.IsScalar() {
		t.Fatalf("Expected scalar reference in parent body, got %v", slot)
	}
	if slot.Value != "${id:/api/library/option-types:region}" {
		t.Errorf("Expected symbolic reference, got %v", slot.Value)
	}
}

func TestBuildPlanControlKeys(t *testing.T) {
	plan := buildPlan(t, `
schedule:
  $executeSchedule:
    name: nightly
    $entity: schedule
    $createPath: execute-schedules
    $updatePath: execute-schedules
    $deletePath: execute-schedules
    $setName: false
    $validate: false
`)
	item := plan.Items[0]
	if item.EntityOverride != "schedule" {
		t.Errorf("Expected entity override schedule, got %s", item.EntityOverride)
	}
	if item.CreatePath != "execute-schedules" || item.UpdatePath != "execute-schedules" || item.DeletePath != "execute-schedules" {
		t.Errorf("Expected path overrides, got %q/%q/%q", item.CreatePath, item.UpdatePath, item.DeletePath)
	}
	if item.SetName {
		t.Error("Expected SetName false")
	}
	if item.Validate {
		t.Error("Expected Validate false")
	}
	for _, key := range item.Body.Keys() {
		if strings.HasPrefix(key, "$") {
			t.Errorf("Expected control key %s stripped from body", key)
		}
	}
}

func TestBuildPlanEntityID(t *testing.T) {
	plan := buildPlan(t, `
appliance:
  $appliance:
    $entityId: 1
    applianceUrl: https://morpheus.example.com
`)
	if plan.Items[0].EntityID != 1 {
		t.Errorf("Expected entity id 1, got %v", plan.Items[0].EntityID)
	}

	plan = buildPlan(t, `
task:
  $task:
    id: 7
    taskType: script
`)
	if plan.Items[0].EntityID != 7 {
		t.Errorf("Expected id 7 from body, got %v", plan.Items[0].EntityID)
	}
}

func TestBuildPlanSetNameRequiresBool(t *testing.T) {
	plan := buildPlan(t, `
task:
  $task:
    name: build
    $setName: "nope"
`)
	if len(plan.Items) != 1 || plan.Items[0].PlanErr == nil {
		t.Fatalf("Expected one failed placeholder item, got %v", plan.Items)
	}
	if !engine.IsValidation(plan.Items[0].PlanErr) {
		t.Errorf("Expected validation error, got %v", plan.Items[0].PlanErr)
	}
}

func TestBuildPlanRejectsEntityWithSiblingKeys(t *testing.T) {
	plan := buildPlan(t, `
bad:
  $task:
    name: build
  extra: field
`)
	if len(plan.Items) != 1 || plan.Items[0].PlanErr == nil {
		t.Fatalf("Expected one failed placeholder item, got %v", plan.Items)
	}
	if !strings.Contains(plan.Items[0].PlanErr.Error(), "only key") {
		t.Errorf("Expected sole-key error, got %v", plan.Items[0].PlanErr)
	}
}

func TestBuildPlanTopLevelFailureIsolation(t *testing.T) {
	plan := buildPlan(t, `
broken:
  $task:
    name: build
    script:
      $fileContent: /nonexistent/script.sh
ok:
  $task:
    name: deploy
    taskType: script
`)
	if len(plan.Items) != 2 {
		t.Fatalf("Expected 2 plan items, got %d", len(plan.Items))
	}
	if plan.Items[0].PlanErr == nil || !engine.IsMaterialization(plan.Items[0].PlanErr) {
		t.Errorf("Expected failed placeholder for broken subtree, got %v", plan.Items[0].PlanErr)
	}
	if plan.Items[0].Name != "broken" {
		t.Errorf("Expected placeholder named after its entry, got %s", plan.Items[0].Name)
	}
	if plan.Items[1].Kind != "task" || plan.Items[1].Name != "deploy" {
		t.Errorf("Expected sibling entity still planned, got %+v", plan.Items[1])
	}
}

func TestBuildPlanTopLevelSweeps(t *testing.T) {
	plan := buildPlan(t, `
$deleteIds:
  - tasks:old-*
  - optionTypes:legacy
`)
	if len(plan.Items) != 2 {
		t.Fatalf("Expected 2 sweep items, got %d", len(plan.Items))
	}
	first := plan.Items[0]
	if !first.Sweep {
		t.Error("Expected sweep item")
	}
	if first.Path != "/api/tasks" || first.Name != "old-*" {
		t.Errorf("Expected tasks old-* sweep, got %s %s", first.Path, first.Name)
	}
	if !first.Target.IsWildcard() {
		t.Error("Expected wildcard target")
	}
	if plan.Items[1].Path != "/api/library/option-types" || plan.Items[1].Target.IsWildcard() {
		t.Errorf("Expected exact option-types sweep, got %+v", plan.Items[1])
	}
}

func TestBuildPlanNestedSweepsRemovedFromPayload(t *testing.T) {
	root := mustParse(t, `
cleanup:
  note: removes retired tasks
  $deleteIds: tasks:retired
`)
	plan, err := engine.NewPlanner("").BuildPlan(root, "test.yaml")
	if err != nil {
		t.Fatalf("Failed to build plan: %v", err)
	}
	if len(plan.Items) != 1 || !plan.Items[0].Sweep {
		t.Fatalf("Expected 1 sweep item, got %v", plan.Items)
	}
	section, _ := root.Get("cleanup")
	if _, ok := section.Get("$deleteIds"); ok {
		t.Error("Expected $deleteIds removed from its mapping")
	}
	if _, ok := section.Get("note"); !ok {
		t.Error("Expected sibling keys preserved")
	}
}

func TestBuildPlanSweepRejectsBadExpr(t *testing.T) {
	plan := buildPlan(t, `
$deleteIds:
  - justaname
`)
	if len(plan.Items) != 1 || plan.Items[0].PlanErr == nil {
		t.Fatalf("Expected failed placeholder, got %v", plan.Items)
	}
	if !engine.IsValidation(plan.Items[0].PlanErr) {
		t.Errorf("Expected validation error, got %v", plan.Items[0].PlanErr)
	}
}

func TestBuildPlanSequencesOfEntities(t *testing.T) {
	plan := buildPlan(t, `
tasks:
  - $task:
      name: build
      taskType: script
  - $task:
      name: deploy
      taskType: script
`)
	if len(plan.Items) != 2 {
		t.Fatalf("Expected 2 plan items, got %d", len(plan.Items))
	}
	if plan.Items[0].Name != "build" || plan.Items[1].Name != "deploy" {
		t.Errorf("Expected document order preserved, got %s, %s",
			plan.Items[0].Name, plan.Items[1].Name)
	}
}
