package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/directive"
	"github.com/openmorph/morphctl/pkg/morpheus"
)

// Resolver substitutes ${id:path:name} reference expressions with remote
// identifiers. Lookups consult the run registry first, so entities
// persisted earlier in the run resolve without a network call, then fall
// back to a live lookup-by-name. Live results are cached for the life of
// the resolver.
type Resolver struct {
	service  EntityService
	registry *Registry
	cache    map[string]interface{}
	logger   zerolog.Logger
}

// NewResolver returns a resolver backed by service and registry.
func NewResolver(service EntityService, registry *Registry, logger zerolog.Logger) *Resolver {
	return &Resolver{
		service:  service,
		registry: registry,
		cache:    make(map[string]interface{}),
		logger:   logger,
	}
}

// ResolveBody walks the tree rooted at n and substitutes every reference
// expression in place. A scalar that is exactly one reference keeps the
// identifier's native type; references embedded in longer strings are
// substituted textually.
func (r *Resolver) ResolveBody(ctx context.Context, n *document.Node) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case document.KindSequence:
		for _, item := range n.Items {
			if err := r.ResolveBody(ctx, item); err != nil {
				return err
			}
		}
		return nil
	case document.KindMapping:
		for _, e := range n.Entries {
			if err := r.ResolveBody(ctx, e.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return r.resolveScalar(ctx, n)
	}
}

func (r *Resolver) resolveScalar(ctx context.Context, n *document.Node) error {
	s, ok := n.StringValue()
	if !ok || !directive.ContainsReference(s) {
		return nil
	}
	if ref, ok := directive.ParseReference(s); ok {
		id, err := r.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		n.Value = id
		return nil
	}
	for _, ref := range directive.FindReferences(s) {
		id, err := r.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		s = directive.ReplaceReference(s, ref, fmt.Sprintf("%v", id))
	}
	n.Value = s
	return nil
}

// Resolve returns the identifier for an exact reference. A reference
// with no match in the registry or the remote service is fatal for the
// enclosing plan item.
func (r *Resolver) Resolve(ctx context.Context, ref directive.Reference) (interface{}, error) {
	if ref.IsWildcard() {
		return nil, NewUnresolvedReferenceError(fmt.Sprintf(
			"wildcard reference %s is only valid in %s", ref, directive.DeleteIDsKey), nil)
	}
	if id, ok := r.registry.Get(ref.CollectionPath, ref.NamePattern); ok {
		return id, nil
	}
	key := ref.String()
	if id, ok := r.cache[key]; ok {
		return id, nil
	}
	entity, err := r.service.LookupByName(ctx, ref.CollectionPath, ref.NamePattern)
	if err != nil {
		if morpheus.IsNotFound(err) {
			return nil, NewUnresolvedReferenceError(
				fmt.Sprintf("no entity named %s in %s", ref.NamePattern, ref.CollectionPath), err)
		}
		return nil, NewRemoteServiceError(
			fmt.Sprintf("lookup of %s failed", ref), err)
	}
	id, ok := entity["id"]
	if !ok || id == nil {
		return nil, NewUnresolvedReferenceError(
			fmt.Sprintf("entity %s in %s has no id", ref.NamePattern, ref.CollectionPath), nil)
	}
	r.cache[key] = id
	r.logger.Debug().
		Str("path", ref.CollectionPath).
		Str("name", ref.NamePattern).
		Interface("id", id).
		Msg("Resolved reference")
	return id, nil
}

// ResolveString substitutes references embedded in a plain string, such
// as an operation path override.
func (r *Resolver) ResolveString(ctx context.Context, s string) (string, error) {
	if !directive.ContainsReference(s) {
		return s, nil
	}
	for _, ref := range directive.FindReferences(s) {
		id, err := r.Resolve(ctx, ref)
		if err != nil {
			return "", err
		}
		s = directive.ReplaceReference(s, ref, fmt.Sprintf("%v", id))
	}
	return s, nil
}

// ResolveWildcard lists the entities matching a wildcard pattern. Zero
// matches is not an error; the sweep is simply a no-op.
func (r *Resolver) ResolveWildcard(ctx context.Context, ref directive.Reference) ([]morpheus.Entity, error) {
	entities, err := r.service.List(ctx, ref.CollectionPath, ref.Prefix())
	if err != nil {
		return nil, NewRemoteServiceError(
			fmt.Sprintf("listing %s failed", ref.CollectionPath), err)
	}
	var matched []morpheus.Entity
	for _, e := range entities {
		if ref.Match(e.Name) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
