package directive

import (
	"testing"

	"github.com/openmorph/morphctl/pkg/document"
)

func soleKeyMapping(key string, value *document.Node) *document.Node {
	m := document.Mapping()
	m.Set(key, value)
	return m
}

func TestClassifyEntityDirective(t *testing.T) {
	body := document.Mapping()
	body.Set("name", document.Scalar("foo"))
	c := Classify(soleKeyMapping("$optionType", body))

	if c.Class != ClassEntity {
		t.Fatalf("Expected ClassEntity, got %v", c.Class)
	}
	if c.Kind != "optionType" {
		t.Errorf("Expected kind optionType, got %q", c.Kind)
	}
	if c.Body != body {
		t.Error("Expected classification to carry the directive body")
	}
}

func TestClassifyValueDirectives(t *testing.T) {
	for _, key := range []string{"$json", "$dataset", "$datasetCsv", "$fileContent", "$fileContentScript", "$id"} {
		c := Classify(soleKeyMapping(key, document.Scalar("x")))
		if c.Class != ClassValue {
			t.Errorf("Classify(%s): expected ClassValue, got %v", key, c.Class)
		}
	}
}

func TestClassifyPlain(t *testing.T) {
	m := document.Mapping()
	m.Set("name", document.Scalar("foo"))
	m.Set("type", document.Scalar("text"))
	if c := Classify(m); c.Class != ClassPlain {
		t.Errorf("Expected ClassPlain for plain mapping, got %v", c.Class)
	}

	// Control keys and $deleteIds are not directives at sole key position.
	for _, key := range []string{"$deleteIds", "$entity", "$setName", "$validate", "$createPath"} {
		if c := Classify(soleKeyMapping(key, document.Scalar("x"))); c.Class != ClassPlain {
			t.Errorf("Classify(%s): expected ClassPlain, got %v", key, c.Class)
		}
	}

	// Multi-key mappings are never directives.
	m2 := document.Mapping()
	m2.Set("$optionType", document.Mapping())
	m2.Set("other", document.Scalar(1))
	if c := Classify(m2); c.Class != ClassPlain {
		t.Errorf("Expected ClassPlain for multi-key mapping, got %v", c.Class)
	}
}

func TestEntityKeyAmong(t *testing.T) {
	if key, ok := EntityKeyAmong([]string{"name", "$task", "type"}); !ok || key != "$task" {
		t.Errorf("Expected $task, got %q ok=%v", key, ok)
	}
	if _, ok := EntityKeyAmong([]string{"name", "$json", "$setName", "$deleteIds"}); ok {
		t.Error("Expected no entity key among value and control keys")
	}
}
