package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/directive"
	"github.com/openmorph/morphctl/pkg/morpheus"
	"github.com/openmorph/morphctl/pkg/telemetry"
)

// requiredAttributes lists per-collection payload fields checked before
// a create or update. A leading '|' marks an any-of group; plain entries
// must all be present. Name or id presence is checked separately for
// every collection.
var requiredAttributes = map[string][]string{
	"/api/library/option-types":      {"type", "fieldName", "fieldLabel"},
	"/api/library/option-type-lists": {"type"},
}

// OrchestratorOptions tune plan execution.
type OrchestratorOptions struct {
	// SkipSweeps disables $deleteIds orphan sweeps during deploy.
	// Sweeps always run during undeploy.
	SkipSweeps bool
}

// Orchestrator executes plans against the remote entity service:
// idempotent create-or-update on deploy, dependency-reversed delete on
// undeploy. Item failures are contained; remaining items still run so a
// bad subtree does not abort the whole document.
type Orchestrator struct {
	service  EntityService
	registry *Registry
	resolver *Resolver
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	logger   zerolog.Logger
	opts     OrchestratorOptions
}

// NewOrchestrator returns an orchestrator sharing the given run registry.
func NewOrchestrator(service EntityService, registry *Registry, logger zerolog.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer, opts OrchestratorOptions) *Orchestrator {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	if tracer == nil {
		tracer = telemetry.NopTracer()
	}
	return &Orchestrator{
		service:  service,
		registry: registry,
		resolver: NewResolver(service, registry, logger),
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
		opts:     opts,
	}
}

// Deploy executes the plan in order, creating or updating each entity.
func (o *Orchestrator) Deploy(ctx context.Context, plan *Plan, report *Report) {
	for _, item := range plan.Items {
		if item.Sweep && o.opts.SkipSweeps {
			continue
		}
		o.execute(ctx, plan, item, report, false)
	}
}

// Undeploy executes the plan in exact reverse order, deleting each
// entity. Entities already absent are reported unchanged.
func (o *Orchestrator) Undeploy(ctx context.Context, plan *Plan, report *Report) {
	for i := len(plan.Items) - 1; i >= 0; i-- {
		o.execute(ctx, plan, plan.Items[i], report, true)
	}
}

func (o *Orchestrator) execute(ctx context.Context, plan *Plan, item *PlanItem, report *Report, undeploy bool) {
	started := time.Now()
	operation := "upsert"
	switch {
	case item.Sweep:
		operation = "sweep"
	case undeploy:
		operation = "delete"
	}
	ctx, span := o.tracer.StartEntitySpan(ctx, item.Kind, item.DisplayName(), operation)
	defer span.End()

	var err error
	switch {
	case item.PlanErr != nil:
		err = item.PlanErr
	case item.Sweep:
		err = o.sweep(ctx, plan, item, report)
	case undeploy:
		err = o.deleteEntity(ctx, plan, item, report)
	default:
		err = o.upsertEntity(ctx, plan, item, report)
	}
	if err != nil {
		o.fail(plan, item, report, err)
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	outcome := OutcomeFailed
	if item.Result != nil {
		outcome = item.Result.Outcome
	}
	o.metrics.RecordEntityOperation(item.Kind, string(outcome), time.Since(started))
}

// fail records a failed outcome for item and logs the error with its
// plan context.
func (o *Orchestrator) fail(plan *Plan, item *PlanItem, report *Report, err error) {
	var deployErr *DeployError
	if !errors.As(err, &deployErr) {
		deployErr = NewRemoteServiceError(err.Error(), err)
	}
	deployErr = deployErr.WithEntity(item.Kind, item.DisplayName())
	if deployErr.Path == "" {
		deployErr = deployErr.WithPath(item.Path)
	}
	item.Result = &ItemResult{Outcome: OutcomeFailed, Err: deployErr}
	report.Add(Record{
		Source:  plan.Source,
		Kind:    item.Kind,
		Name:    item.DisplayName(),
		Outcome: OutcomeFailed,
		Err:     deployErr,
	})
	o.metrics.RecordError(string(deployErr.Class))
	evt := o.logger.Error().Err(deployErr).Str("class", string(deployErr.Class))
	if item.Parent != nil {
		evt = evt.Str("parent", item.Parent.DisplayName())
	}
	evt.Msgf("failed %s %s", item.Kind, item.DisplayName())
}

// upsertEntity resolves the item body and performs the idempotent
// create-or-update. An entity whose remote fields already match the
// payload is left untouched and reported unchanged.
func (o *Orchestrator) upsertEntity(ctx context.Context, plan *Plan, item *PlanItem, report *Report) error {
	if err := o.resolver.ResolveBody(ctx, item.Body); err != nil {
		return err
	}
	if err := o.resolvePaths(ctx, item); err != nil {
		return err
	}
	if item.Validate {
		if err := o.validate(item); err != nil {
			return err
		}
	}

	singular := directive.EntityFromPath(item.Path, item.EntityOverride, true)
	payload := o.wrapBody(item, singular)

	id := item.EntityID
	var remote map[string]interface{}
	if id == nil && item.Name != "" {
		found, err := o.service.LookupByName(ctx, item.Path, item.Name)
		if err != nil && !morpheus.IsNotFound(err) {
			return NewRemoteServiceError(
				fmt.Sprintf("lookup of %s %s failed", singular, item.Name), err)
		}
		if err == nil {
			remote = found
			id = found["id"]
		}
	}

	var outcome Outcome
	switch {
	case id == nil:
		created, err := o.service.Create(ctx, pathOr(item.CreatePath, item.Path), payload)
		if err != nil {
			return NewRemoteServiceError(
				fmt.Sprintf("create of %s %s failed", singular, item.DisplayName()), err)
		}
		id = created
		outcome = OutcomeCreated
	case remote != nil && o.matchesRemote(payload, singular, remote):
		outcome = OutcomeUnchanged
	default:
		if err := o.service.Update(ctx, pathOr(item.UpdatePath, item.Path), id, payload); err != nil {
			return NewRemoteServiceError(
				fmt.Sprintf("update of %s %s failed", singular, item.DisplayName()), err)
		}
		outcome = OutcomeUpdated
	}

	name := item.Name
	if name == "" {
		name = fmt.Sprintf("%v", id)
	}
	o.registry.Put(item.Path, name, id)
	item.Result = &ItemResult{Outcome: outcome, EntityID: id}
	report.Add(Record{
		Source:   plan.Source,
		Kind:     item.Kind,
		Name:     name,
		Outcome:  outcome,
		EntityID: id,
	})
	o.logger.Info().Msgf("%s %s %s [%v]", outcome, singular, name, id)
	return nil
}

// deleteEntity removes the item's remote entity, looking its identifier
// up by name when not pre-known.
func (o *Orchestrator) deleteEntity(ctx context.Context, plan *Plan, item *PlanItem, report *Report) error {
	if err := o.resolvePaths(ctx, item); err != nil {
		return err
	}
	singular := directive.EntityFromPath(item.Path, item.EntityOverride, true)
	id := item.EntityID
	if id == nil {
		if item.Name == "" {
			return NewValidationError(
				fmt.Sprintf("%s has neither name nor id to delete by", item.Kind), nil)
		}
		found, err := o.service.LookupByName(ctx, item.Path, item.Name)
		if err != nil {
			if morpheus.IsNotFound(err) {
				item.Result = &ItemResult{Outcome: OutcomeUnchanged}
				report.Add(Record{
					Source:  plan.Source,
					Kind:    item.Kind,
					Name:    item.Name,
					Outcome: OutcomeUnchanged,
				})
				return nil
			}
			return NewRemoteServiceError(
				fmt.Sprintf("lookup of %s %s failed", singular, item.Name), err)
		}
		id = found["id"]
	}
	if err := o.service.Delete(ctx, pathOr(item.DeletePath, item.Path), id, true); err != nil {
		return NewRemoteServiceError(
			fmt.Sprintf("delete of %s %s failed", singular, item.DisplayName()), err)
	}
	item.Result = &ItemResult{Outcome: OutcomeDeleted, EntityID: id}
	report.Add(Record{
		Source:   plan.Source,
		Kind:     item.Kind,
		Name:     item.DisplayName(),
		Outcome:  OutcomeDeleted,
		EntityID: id,
	})
	o.logger.Info().Msgf("deleted %s %s [%v]", singular, item.DisplayName(), id)
	return nil
}

// sweep deletes the entities matched by a $deleteIds target. Wildcard
// patterns delete every current match; exact names that do not exist are
// a no-op.
func (o *Orchestrator) sweep(ctx context.Context, plan *Plan, item *PlanItem, report *Report) error {
	ref := item.Target
	singular := directive.EntityFromPath(ref.CollectionPath, "", true)
	var targets []morpheus.Entity
	if ref.IsWildcard() {
		matched, err := o.resolver.ResolveWildcard(ctx, ref)
		if err != nil {
			return err
		}
		targets = matched
	} else {
		found, err := o.service.LookupByName(ctx, ref.CollectionPath, ref.NamePattern)
		if err != nil && !morpheus.IsNotFound(err) {
			return NewRemoteServiceError(
				fmt.Sprintf("lookup of %s %s failed", singular, ref.NamePattern), err)
		}
		if err == nil {
			targets = []morpheus.Entity{{ID: found["id"], Name: ref.NamePattern}}
		}
	}
	if len(targets) == 0 {
		item.Result = &ItemResult{Outcome: OutcomeUnchanged}
		report.Add(Record{
			Source:  plan.Source,
			Kind:    singular,
			Name:    ref.NamePattern,
			Outcome: OutcomeUnchanged,
		})
		return nil
	}
	for _, target := range targets {
		if err := o.service.Delete(ctx, ref.CollectionPath, target.ID, true); err != nil {
			return NewRemoteServiceError(
				fmt.Sprintf("delete of %s %s failed", singular, target.Name), err)
		}
		report.Add(Record{
			Source:   plan.Source,
			Kind:     singular,
			Name:     target.Name,
			Outcome:  OutcomeDeleted,
			EntityID: target.ID,
		})
		o.logger.Info().Msgf("deleted %s %s [%v]", singular, target.Name, target.ID)
	}
	item.Result = &ItemResult{Outcome: OutcomeDeleted}
	return nil
}

// resolvePaths expands references embedded in the item's operation path
// overrides.
func (o *Orchestrator) resolvePaths(ctx context.Context, item *PlanItem) error {
	for _, p := range []*string{&item.Path, &item.CreatePath, &item.UpdatePath, &item.DeletePath} {
		if *p == "" {
			continue
		}
		resolved, err := o.resolver.ResolveString(ctx, *p)
		if err != nil {
			return err
		}
		*p = resolved
	}
	return nil
}

// validate enforces the name-or-id rule and the per-collection required
// field table.
func (o *Orchestrator) validate(item *PlanItem) error {
	if item.Name == "" && item.EntityID == nil {
		return NewValidationError(
			fmt.Sprintf("%s missing any of keys name, id", item.Kind), nil)
	}
	attrs, ok := requiredAttributes[item.Path]
	if !ok {
		return nil
	}
	var missing []string
	var anyOf []string
	anySatisfied := false
	for _, attr := range attrs {
		if attr[0] == '|' {
			anyOf = append(anyOf, attr[1:])
			if v, ok := item.Body.Get(attr[1:]); ok && v.Value != nil {
				anySatisfied = true
			}
			continue
		}
		if v, ok := item.Body.Get(attr); !ok || v == nil || v.Value == nil {
			missing = append(missing, attr)
		}
	}
	var msgs []string
	if len(missing) > 0 {
		msgs = append(msgs, fmt.Sprintf("required keys %s", strings.Join(missing, ", ")))
	}
	if len(anyOf) > 0 && !anySatisfied {
		msgs = append(msgs, fmt.Sprintf("any of keys %s", strings.Join(anyOf, ", ")))
	}
	if len(msgs) > 0 {
		return NewValidationError(
			fmt.Sprintf("%s %s missing %s", item.Kind, item.DisplayName(), strings.Join(msgs, " and ")), nil)
	}
	return nil
}

// wrapBody nests the item body under the singular entity key with the
// name injected, unless $setName disabled it or the body already carries
// the key.
func (o *Orchestrator) wrapBody(item *PlanItem, singular string) *document.Node {
	if !item.SetName {
		return item.Body
	}
	wrapped := item.Body
	if _, ok := item.Body.Get(singular); !ok {
		wrapped = document.Mapping()
		wrapped.Set(singular, item.Body)
	}
	if item.Name != "" {
		if inner, ok := wrapped.Get(singular); ok && inner.IsMapping() {
			inner.Set("name", document.Scalar(item.Name))
		}
	}
	return wrapped
}

// matchesRemote reports whether every field of the wrapped payload is
// already present with an equivalent value on the remote entity.
func (o *Orchestrator) matchesRemote(payload *document.Node, singular string, remote map[string]interface{}) bool {
	inner, ok := payload.Get(singular)
	if !ok || !inner.IsMapping() {
		return false
	}
	for _, e := range inner.Entries {
		if !document.JSONEquivalent(e.Value, remote[e.Key]) {
			return false
		}
	}
	return true
}

func pathOr(override, path string) string {
	if override != "" {
		return override
	}
	return path
}
