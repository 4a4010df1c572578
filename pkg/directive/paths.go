package directive

import (
	"strings"
	"unicode"
)

// prefixPaths lists the API sections whose collections live below a path
// prefix rather than directly under /api/.
var prefixPaths = map[string][]string{
	"library/": {
		"instance-types",
		"layouts",
		"container-types",
		"container-templates",
		"container-scripts",
		"cluster-layouts",
		"option-types",
		"option-type-lists",
		"spec-templates",
	},
}

// entityOverrides maps collection-derived entity names to the entity key
// the API actually uses in its payloads.
var entityOverrides = map[string]string{
	"executeSchedules": "schedules",
}

var pathPrefixes = func() map[string]string {
	m := make(map[string]string)
	for prefix, paths := range prefixPaths {
		for _, p := range paths {
			m[p] = prefix
		}
	}
	return m
}()

// APIPath expands a collection alias to a full API path. Aliases may use
// mixedCase ("optionTypes") or kebab-case ("option-types"); collections
// from prefixed sections gain their prefix ("library/"). Paths that
// already start with "/" pass through unchanged.
//
//	optionTypes            -> /api/library/option-types
//	tasks                  -> /api/tasks
//	library/option-types   -> /api/library/option-types
//	/api/custom/thing      -> /api/custom/thing
func APIPath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	parts := strings.Split(path, "/")
	head := parts[0]
	if !strings.Contains(head, "-") && head != strings.ToLower(head) && head != strings.ToUpper(head) {
		head = kebabCase(head)
	}
	if prefix, ok := pathPrefixes[head]; ok {
		head = prefix + head
	}
	parts[0] = head
	return "/api/" + strings.Join(parts, "/")
}

// EntityFromPath derives the entity payload key from an API path:
// /api/library/option-types yields optionTypes. A non-empty entity
// argument overrides the derivation; single trims a trailing "s".
func EntityFromPath(path, entity string, single bool) string {
	if entity == "" {
		last := path
		if i := strings.IndexByte(last, '?'); i >= 0 {
			last = last[:i]
		}
		if i := strings.LastIndexByte(last, '/'); i >= 0 {
			last = last[i+1:]
		}
		segs := strings.Split(last, "-")
		entity = segs[0]
		for _, s := range segs[1:] {
			entity += titleCase(s)
		}
	}
	if override, ok := entityOverrides[entity]; ok {
		entity = override
	}
	if single && strings.HasSuffix(entity, "s") {
		entity = entity[:len(entity)-1]
	}
	return entity
}

// CollectionAlias turns an entity kind from a `$<kind>` directive into the
// collection alias passed to APIPath: kinds are pluralized unless they
// already end in "s" or name an absolute path.
func CollectionAlias(kind string) string {
	if strings.HasPrefix(kind, "/") {
		return kind
	}
	if !strings.HasSuffix(kind, "s") {
		return kind + "s"
	}
	return kind
}

// kebabCase converts mixedCase to kebab-case: optionTypeLists becomes
// option-type-lists.
func kebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
