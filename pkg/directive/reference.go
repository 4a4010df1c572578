package directive

import (
	"fmt"
	"regexp"
	"strings"
)

// Reference is a parsed ${id:<collectionPath>:<namePattern>} expression.
type Reference struct {
	// CollectionPath is the full API path of the referenced collection.
	CollectionPath string

	// NamePattern is the entity name, optionally containing one '*'
	// wildcard (wildcards are only meaningful for deletion sweeps).
	NamePattern string
}

var refPattern = regexp.MustCompile(`\$\{id:([^:}]+):([^}]+)\}`)

// String renders the reference back to its wire syntax.
func (r Reference) String() string {
	return fmt.Sprintf("${id:%s:%s}", r.CollectionPath, r.NamePattern)
}

// IsWildcard reports whether the name pattern contains a '*' wildcard.
func (r Reference) IsWildcard() bool {
	return strings.Contains(r.NamePattern, "*")
}

// Match reports whether name matches the pattern. Without a wildcard this
// is an exact comparison; with one, the '*' matches any run of characters.
func (r Reference) Match(name string) bool {
	i := strings.IndexByte(r.NamePattern, '*')
	if i < 0 {
		return name == r.NamePattern
	}
	prefix, suffix := r.NamePattern[:i], r.NamePattern[i+1:]
	return len(name) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(name, prefix) &&
		strings.HasSuffix(name, suffix)
}

// Prefix returns the literal prefix before the wildcard, used as the
// listing phrase filter.
func (r Reference) Prefix() string {
	if i := strings.IndexByte(r.NamePattern, '*'); i >= 0 {
		return r.NamePattern[:i]
	}
	return r.NamePattern
}

// ParseReference parses s when it is exactly one reference expression.
func ParseReference(s string) (Reference, bool) {
	m := refPattern.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return Reference{}, false
	}
	return Reference{CollectionPath: m[1], NamePattern: m[2]}, true
}

// ContainsReference reports whether s embeds at least one reference
// expression.
func ContainsReference(s string) bool {
	return refPattern.MatchString(s)
}

// FindReferences returns each distinct reference embedded in s, in order
// of first appearance.
func FindReferences(s string) []Reference {
	var refs []Reference
	seen := make(map[string]bool)
	for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
		if seen[m[0]] {
			continue
		}
		seen[m[0]] = true
		refs = append(refs, Reference{CollectionPath: m[1], NamePattern: m[2]})
	}
	return refs
}

// ReplaceReference substitutes every occurrence of ref in s with value.
func ReplaceReference(s string, ref Reference, value string) string {
	return strings.ReplaceAll(s, ref.String(), value)
}

// NormalizeIDExpr canonicalizes a loose "path:name" or "${id:path:name}"
// value into full reference syntax with the collection path expanded.
// Returns false when the value is not a usable id expression.
func NormalizeIDExpr(s string) (Reference, bool) {
	if strings.HasPrefix(s, "${id:") && strings.HasSuffix(s, "}") {
		s = s[5 : len(s)-1]
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Reference{}, false
	}
	path := strings.TrimSpace(parts[0])
	name := strings.TrimSpace(parts[1])
	if path == "" || name == "" {
		return Reference{}, false
	}
	return Reference{CollectionPath: APIPath(path), NamePattern: name}, true
}
