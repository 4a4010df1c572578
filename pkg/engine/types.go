package engine

import (
	"context"
	"fmt"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/directive"
	"github.com/openmorph/morphctl/pkg/morpheus"
)

// Outcome is the result of executing one plan item.
type Outcome string

const (
	// OutcomeCreated indicates a new remote entity was created.
	OutcomeCreated Outcome = "created"

	// OutcomeUpdated indicates an existing entity was modified.
	OutcomeUpdated Outcome = "updated"

	// OutcomeUnchanged indicates no remote change was needed.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeDeleted indicates an entity was removed.
	OutcomeDeleted Outcome = "deleted"

	// OutcomeFailed indicates the item's operation failed.
	OutcomeFailed Outcome = "failed"
)

// Validate checks that the outcome is a known value.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeCreated, OutcomeUpdated, OutcomeUnchanged, OutcomeDeleted, OutcomeFailed:
		return nil
	default:
		return NewValidationError(fmt.Sprintf("unknown outcome %q", string(o)), nil)
	}
}

// EntityService is the fixed contract to the remote entity service. It
// is satisfied by *morpheus.Client; tests may substitute any
// implementation. Bodies passed in are fully resolved, with no directive
// syntax remaining.
type EntityService interface {
	// LookupByName returns the entity named name at path, or an error
	// satisfying morpheus.IsNotFound.
	LookupByName(ctx context.Context, path, name string) (map[string]interface{}, error)

	// List returns name/identifier pairs of the collection at path,
	// optionally narrowed by a name prefix.
	List(ctx context.Context, path, prefix string) ([]morpheus.Entity, error)

	// Create persists a new entity and returns its identifier.
	Create(ctx context.Context, path string, body interface{}) (interface{}, error)

	// Update replaces the entity identified by id.
	Update(ctx context.Context, path string, id interface{}, body interface{}) error

	// Delete removes the entity identified by id.
	Delete(ctx context.Context, path string, id interface{}, force bool) error
}

// PlanItem is one scheduled create-or-update / delete operation derived
// from an entity directive, or a $deleteIds sweep.
type PlanItem struct {
	// ID is the unique plan item id.
	ID string

	// Kind is the entity kind from the directive key (e.g. "optionType").
	Kind string

	// Path is the default collection API path for the kind.
	Path string

	// CreatePath, UpdatePath and DeletePath override the default path
	// for the respective operation. Overrides are scoped to this item
	// and never inherited by children.
	CreatePath string
	UpdatePath string
	DeletePath string

	// Name is the entity name from the body or override. Empty when
	// $setName: false suppressed it and the body carried none.
	Name string

	// EntityOverride overrides the payload entity key derived from the
	// path ($entity).
	EntityOverride string

	// EntityID is a pre-known identifier ($entityId or an id field).
	// When set, no lookup-by-name occurs.
	EntityID interface{}

	// SetName controls wrapping the body under the singular entity key
	// with the name injected. Defaults to true.
	SetName bool

	// Validate controls the kind-specific required-field check.
	// Defaults to true.
	Validate bool

	// Body is the materialized entity body. References may still be
	// symbolic until the orchestrator resolves them.
	Body *document.Node

	// Sweep marks a $deleteIds item; Target is its reference.
	Sweep  bool
	Target directive.Reference

	// Parent and Children record the nesting relation for error
	// reporting context only; the tree is acyclic by construction.
	Parent   *PlanItem
	Children []*PlanItem

	// PlanErr carries a planning-stage failure (grammar or
	// materialization). The orchestrator reports it without executing
	// the item.
	PlanErr error

	// Result is set after execution.
	Result *ItemResult
}

// DisplayName returns the best available name for logging.
func (item *PlanItem) DisplayName() string {
	if item.Name != "" {
		return item.Name
	}
	if item.EntityID != nil {
		return fmt.Sprintf("%v", item.EntityID)
	}
	if item.Sweep {
		return item.Target.NamePattern
	}
	return ""
}

// ItemResult is the recorded outcome of one plan item.
type ItemResult struct {
	// Outcome is the final disposition.
	Outcome Outcome

	// EntityID is the remote identifier involved, when known.
	EntityID interface{}

	// Err is the failure for OutcomeFailed items.
	Err error
}

// Plan is the ordered execution plan derived from one document.
type Plan struct {
	// Source identifies the document (file path or a caller label).
	Source string

	// Items are the plan items in deploy order: children strictly
	// before the parents whose bodies reference them.
	Items []*PlanItem
}

// Registry is the run-scoped cache of just-persisted
// (collectionPath, name) to identifier mappings. One registry spans all
// documents of a run, so identifiers created by an earlier document are
// visible to later ones.
type Registry struct {
	ids  map[string]interface{}
	keys []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]interface{})}
}

func registryKey(path, name string) string {
	return directive.APIPath(path) + ":" + name
}

// Put records the identifier for (path, name). A re-deploy of the same
// name overwrites the entry with the fresh identifier.
func (r *Registry) Put(path, name string, id interface{}) {
	key := registryKey(path, name)
	if _, ok := r.ids[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.ids[key] = id
}

// Get returns the recorded identifier for (path, name).
func (r *Registry) Get(path, name string) (interface{}, bool) {
	id, ok := r.ids[registryKey(path, name)]
	return id, ok
}

// Len returns the number of recorded entries.
func (r *Registry) Len() int { return len(r.ids) }

// Keys returns the recorded "path:name" keys in insertion order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}
