package directive

import (
	"testing"
)

func TestParseReference(t *testing.T) {
	ref, ok := ParseReference("${id:/api/library/option-types:foo}")
	if !ok {
		t.Fatal("Expected reference to parse")
	}
	if ref.CollectionPath != "/api/library/option-types" {
		t.Errorf("Expected path /api/library/option-types, got %q", ref.CollectionPath)
	}
	if ref.NamePattern != "foo" {
		t.Errorf("Expected name foo, got %q", ref.NamePattern)
	}

	// Embedded references are not whole-string parses.
	if _, ok := ParseReference("prefix ${id:/api/tasks:foo}"); ok {
		t.Error("Expected embedded reference not to parse as whole string")
	}
	if _, ok := ParseReference("plain text"); ok {
		t.Error("Expected plain text not to parse")
	}
}

func TestFindReferences(t *testing.T) {
	s := "a=${id:/api/tasks:one} b=${id:/api/jobs:two} again ${id:/api/tasks:one}"
	refs := FindReferences(s)
	if len(refs) != 2 {
		t.Fatalf("Expected 2 distinct references, got %d", len(refs))
	}
	if refs[0].NamePattern != "one" || refs[1].NamePattern != "two" {
		t.Errorf("Expected order one, two; got %q, %q", refs[0].NamePattern, refs[1].NamePattern)
	}
}

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"op.*", "op.one", true},
		{"op.*", "op.", true},
		{"op.*", "other", false},
		{"*.suffix", "any.suffix", true},
		{"a*z", "abcz", true},
		{"a*z", "abc", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}

	for _, tt := range tests {
		ref := Reference{NamePattern: tt.pattern}
		if got := ref.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q, %q): expected %v, got %v", tt.pattern, tt.name, tt.want, got)
		}
	}
}

func TestNormalizeIDExpr(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"optionTypes:foo", "${id:/api/library/option-types:foo}", true},
		{"${id:optionTypes:foo}", "${id:/api/library/option-types:foo}", true},
		{"${id:/api/tasks:bar}", "${id:/api/tasks:bar}", true},
		{"tasks:name:with:colons", "${id:/api/tasks:name:with:colons}", true},
		{"nocolon", "", false},
		{":", "", false},
	}

	for _, tt := range tests {
		ref, ok := NormalizeIDExpr(tt.in)
		if ok != tt.wantOK {
			t.Errorf("NormalizeIDExpr(%q): expected ok=%v, got %v", tt.in, tt.wantOK, ok)
			continue
		}
		if ok && ref.String() != tt.want {
			t.Errorf("NormalizeIDExpr(%q): expected %q, got %q", tt.in, tt.want, ref.String())
		}
	}
}
