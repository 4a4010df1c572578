package directive

import (
	"strings"

	"github.com/openmorph/morphctl/pkg/document"
)

// Value directive keys. FileContentKey is matched as a prefix, so
// documents can disambiguate multiple file inclusions ($fileContent,
// $fileContentScript, ...), matching the original surface.
const (
	JSONKey        = "$json"
	DatasetKey     = "$dataset"
	DatasetCSVKey  = "$datasetCsv"
	FileContentKey = "$fileContent"
	IDKey          = "$id"
	DeleteIDsKey   = "$deleteIds"
)

// Control keys recognized inside entity directive bodies. They tune how
// the entity is persisted and are stripped from the payload sent to the
// API.
const (
	EntityKey     = "$entity"
	EntityIDKey   = "$entityId"
	CreatePathKey = "$createPath"
	UpdatePathKey = "$updatePath"
	DeletePathKey = "$deletePath"
	SetNameKey    = "$setName"
	ValidateKey   = "$validate"
)

var controlKeys = map[string]bool{
	EntityKey:     true,
	EntityIDKey:   true,
	CreatePathKey: true,
	UpdatePathKey: true,
	DeletePathKey: true,
	SetNameKey:    true,
	ValidateKey:   true,
}

// IsControlKey reports whether key is one of the entity body control keys.
func IsControlKey(key string) bool {
	return controlKeys[key]
}

// Class is the classification of a mapping node.
type Class int

const (
	// ClassPlain is an ordinary mapping with no directive at its sole
	// key position.
	ClassPlain Class = iota

	// ClassValue is a single-key value directive mapping that
	// materializes into a plain value.
	ClassValue

	// ClassEntity is a single-key `$<kind>` entity directive mapping.
	ClassEntity
)

// Classification is the result of classifying a mapping node once, so the
// tree walker can dispatch over a closed variant set instead of
// re-inspecting keys.
type Classification struct {
	Class Class

	// Key is the directive key for ClassValue and ClassEntity.
	Key string

	// Kind is the entity kind (key without '$') for ClassEntity.
	Kind string

	// Body is the directive operand for ClassValue and ClassEntity.
	Body *document.Node
}

// IsValueKey reports whether key names a value directive.
func IsValueKey(key string) bool {
	switch key {
	case JSONKey, DatasetKey, DatasetCSVKey, IDKey:
		return true
	}
	return strings.HasPrefix(key, FileContentKey)
}

// Classify inspects a node and returns its directive classification.
// Only mappings whose sole key starts with '$' are directives; an entity
// directive mixed with sibling fields is the caller's error to report.
func Classify(n *document.Node) Classification {
	key, body, ok := n.SoleKey()
	if !ok || !strings.HasPrefix(key, "$") {
		return Classification{Class: ClassPlain}
	}
	if IsValueKey(key) {
		return Classification{Class: ClassValue, Key: key, Body: body}
	}
	if key == DeleteIDsKey || IsControlKey(key) {
		return Classification{Class: ClassPlain}
	}
	return Classification{
		Class: ClassEntity,
		Key:   key,
		Kind:  strings.TrimPrefix(key, "$"),
		Body:  body,
	}
}

// EntityKeyAmong returns the `$<kind>` entity directive key found among
// keys, if any. Used to reject mappings that mix an entity directive with
// sibling plain fields.
func EntityKeyAmong(keys []string) (string, bool) {
	for _, key := range keys {
		if !strings.HasPrefix(key, "$") {
			continue
		}
		if IsValueKey(key) || IsControlKey(key) || key == DeleteIDsKey {
			continue
		}
		return key, true
	}
	return "", false
}
