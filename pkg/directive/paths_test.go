package directive

import (
	"testing"
)

func TestAPIPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"optionTypes", "/api/library/option-types"},
		{"optionTypeLists", "/api/library/option-type-lists"},
		{"instanceTypes", "/api/library/instance-types"},
		{"containerTemplates", "/api/library/container-templates"},
		{"specTemplates", "/api/library/spec-templates"},
		{"clusterLayouts", "/api/library/cluster-layouts"},
		{"tasks", "/api/tasks"},
		{"taskSets", "/api/task-sets"},
		{"library/option-types", "/api/library/option-types"},
		{"option-types", "/api/library/option-types"},
		{"/api/custom/thing", "/api/custom/thing"},
		{"instanceTypes/1/layouts", "/api/library/instance-types/1/layouts"},
	}

	for _, tt := range tests {
		if got := APIPath(tt.in); got != tt.want {
			t.Errorf("APIPath(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestEntityFromPath(t *testing.T) {
	tests := []struct {
		path   string
		entity string
		single bool
		want   string
	}{
		{"/api/library/option-types", "", false, "optionTypes"},
		{"/api/library/option-types", "", true, "optionType"},
		{"/api/tasks", "", true, "task"},
		{"/api/execute-schedules", "", false, "schedules"},
		{"/api/library/option-types?max=200", "", true, "optionType"},
		{"/api/library/option-types", "widgets", true, "widget"},
	}

	for _, tt := range tests {
		if got := EntityFromPath(tt.path, tt.entity, tt.single); got != tt.want {
			t.Errorf("EntityFromPath(%q, %q, %v): expected %q, got %q",
				tt.path, tt.entity, tt.single, tt.want, got)
		}
	}
}

func TestCollectionAlias(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"optionType", "optionTypes"},
		{"tasks", "tasks"},
		{"/api/custom/thing", "/api/custom/thing"},
	}

	for _, tt := range tests {
		if got := CollectionAlias(tt.in); got != tt.want {
			t.Errorf("CollectionAlias(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
