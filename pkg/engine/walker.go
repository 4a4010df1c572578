package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/directive"
)

// Planner turns a materialized configuration tree into an ordered
// execution plan. Entity directives are visited depth-first so that
// every child's plan item precedes the parent item whose body references
// its identifier. In the parent body, each nested entity directive is
// replaced by a symbolic `${id:path:name}` reference for the resolver.
type Planner struct {
	materializer *Materializer
}

// NewPlanner returns a planner whose materializer resolves relative file
// paths against baseDir.
func NewPlanner(baseDir string) *Planner {
	return &Planner{materializer: NewMaterializer(baseDir)}
}

// BuildPlan plans the document rooted at root. Each top-level entry is
// planned independently, so a bad subtree becomes a single failed item
// and does not prevent its siblings from deploying.
func (p *Planner) BuildPlan(root *document.Node, source string) (*Plan, error) {
	if !root.IsMapping() {
		return nil, NewValidationError(
			fmt.Sprintf("document root must be a mapping, not %s", root.Kind), nil)
	}
	plan := &Plan{Source: source}
	for _, e := range root.Entries {
		if e.Key == directive.DeleteIDsKey {
			items, err := p.sweepItems(e.Value)
			if err != nil {
				plan.Items = append(plan.Items, failedItem(e.Key, err))
				continue
			}
			plan.Items = append(plan.Items, items...)
			continue
		}
		// A root key may itself be an entity directive, so each entry
		// is rewrapped as a single-key mapping before classification.
		entry := document.Mapping()
		entry.Set(e.Key, e.Value)
		if err := p.materializer.Apply(entry); err != nil {
			plan.Items = append(plan.Items, failedItem(e.Key, err))
			continue
		}
		items, err := p.walk(entry, nil, e.Key)
		if err != nil {
			plan.Items = append(plan.Items, failedItem(e.Key, err))
			continue
		}
		plan.Items = append(plan.Items, items...)
	}
	return plan, nil
}

// failedItem is a placeholder for a subtree that could not be planned.
// The orchestrator reports it without executing anything.
func failedItem(label string, err error) *PlanItem {
	return &PlanItem{
		ID:      uuid.NewString(),
		Name:    label,
		PlanErr: err,
	}
}

// walk visits n depth-first and returns plan items in execution order.
// slotLabel names the position for error messages.
func (p *Planner) walk(n *document.Node, parent *PlanItem, slotLabel string) ([]*PlanItem, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case document.KindSequence:
		var items []*PlanItem
		for i, elem := range n.Items {
			sub, err := p.walk(elem, parent, fmt.Sprintf("%s[%d]", slotLabel, i))
			if err != nil {
				return nil, err
			}
			items = append(items, sub...)
		}
		return items, nil
	case document.KindMapping:
		if c := directive.Classify(n); c.Class == directive.ClassEntity {
			return p.entityItems(n, c, parent)
		}
		if len(n.Entries) > 1 {
			if key, ok := directive.EntityKeyAmong(n.Keys()); ok {
				return nil, NewValidationError(fmt.Sprintf(
					"%s: %s must be the only key of its mapping", slotLabel, key), nil)
			}
		}
		var items []*PlanItem
		var sweepKeys []string
		for _, e := range n.Entries {
			if e.Key == directive.DeleteIDsKey {
				sub, err := p.sweepItems(e.Value)
				if err != nil {
					return nil, err
				}
				items = append(items, sub...)
				sweepKeys = append(sweepKeys, e.Key)
				continue
			}
			sub, err := p.walk(e.Value, parent, e.Key)
			if err != nil {
				return nil, err
			}
			items = append(items, sub...)
		}
		for _, key := range sweepKeys {
			n.Delete(key)
		}
		return items, nil
	default:
		return nil, nil
	}
}

// entityItems plans one entity directive: its nested children first,
// then the entity itself. When the body names the entity, the directive
// node is rewritten in place to the symbolic identifier reference so the
// enclosing body resolves to the child's identifier.
func (p *Planner) entityItems(n *document.Node, c directive.Classification, parent *PlanItem) ([]*PlanItem, error) {
	if !c.Body.IsMapping() {
		return nil, NewValidationError(
			fmt.Sprintf("%s must be a mapping, not %s", c.Key, c.Body.Kind), nil)
	}
	item := &PlanItem{
		ID:       uuid.NewString(),
		Kind:     c.Kind,
		Path:     directive.APIPath(directive.CollectionAlias(c.Kind)),
		SetName:  true,
		Validate: true,
		Body:     c.Body,
		Parent:   parent,
	}
	if err := p.extractControls(item); err != nil {
		return nil, err
	}
	if name, ok := item.Body.Get("name"); ok {
		if s, ok := name.StringValue(); ok {
			item.Name = s
		}
	}
	if item.EntityID == nil {
		if id, ok := item.Body.Get("id"); ok && id.IsScalar() {
			item.EntityID = id.Value
		}
	}

	children, err := p.walk(item.Body, item, c.Key)
	if err != nil {
		return nil, err
	}
	item.Children = childList(children, item)

	if item.Name != "" {
		ref := directive.Reference{CollectionPath: item.Path, NamePattern: item.Name}
		*n = document.Node{Kind: document.KindScalar, Value: ref.String()}
	}
	if parent != nil {
		parent.Children = append(parent.Children, item)
	}
	return append(children, item), nil
}

// childList filters items down to the direct children of parent.
func childList(items []*PlanItem, parent *PlanItem) []*PlanItem {
	var direct []*PlanItem
	for _, item := range items {
		if item.Parent == parent {
			direct = append(direct, item)
		}
	}
	return direct
}

// extractControls strips the $-prefixed control keys from the item body
// and applies them to the item.
func (p *Planner) extractControls(item *PlanItem) error {
	if v, ok := item.Body.Delete(directive.CreatePathKey); ok {
		item.CreatePath, _ = v.StringValue()
	}
	if v, ok := item.Body.Delete(directive.UpdatePathKey); ok {
		item.UpdatePath, _ = v.StringValue()
	}
	if v, ok := item.Body.Delete(directive.DeletePathKey); ok {
		item.DeletePath, _ = v.StringValue()
	}
	if v, ok := item.Body.Delete(directive.EntityKey); ok {
		item.EntityOverride, _ = v.StringValue()
	}
	if v, ok := item.Body.Delete(directive.EntityIDKey); ok && v.IsScalar() {
		item.EntityID = v.Value
	}
	if v, ok := item.Body.Delete(directive.SetNameKey); ok {
		b, isBool := v.Value.(bool)
		if !isBool {
			return NewValidationError(fmt.Sprintf("%s must be a bool", directive.SetNameKey), nil)
		}
		item.SetName = b
	}
	if v, ok := item.Body.Delete(directive.ValidateKey); ok {
		b, isBool := v.Value.(bool)
		if !isBool {
			return NewValidationError(fmt.Sprintf("%s must be a bool", directive.ValidateKey), nil)
		}
		item.Validate = b
	}
	return nil
}

// sweepItems plans the $deleteIds orphan sweep entries. Each entry is an
// id expression naming a collection and a name or wildcard pattern.
func (p *Planner) sweepItems(n *document.Node) ([]*PlanItem, error) {
	exprs := n.Items
	if n.IsScalar() {
		exprs = []*document.Node{n}
	} else if !n.IsSequence() {
		return nil, NewValidationError(
			fmt.Sprintf("%s must be a string or list of strings", directive.DeleteIDsKey), nil)
	}
	if len(exprs) == 0 {
		return nil, NewValidationError(
			fmt.Sprintf("%s must name at least one ${id:path:name}", directive.DeleteIDsKey), nil)
	}
	var items []*PlanItem
	for _, expr := range exprs {
		s, ok := expr.StringValue()
		if !ok {
			return nil, NewValidationError(fmt.Sprintf(
				"%s entries must be strings in format ${id:path:name}", directive.DeleteIDsKey), nil)
		}
		ref, ok := directive.NormalizeIDExpr(s)
		if !ok {
			return nil, NewValidationError(fmt.Sprintf(
				"%s entry %q is not in format ${id:path:name}", directive.DeleteIDsKey, s), nil)
		}
		items = append(items, &PlanItem{
			ID:     uuid.NewString(),
			Path:   ref.CollectionPath,
			Name:   ref.NamePattern,
			Sweep:  true,
			Target: ref,
		})
	}
	return items, nil
}
