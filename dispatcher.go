package restkit

import (
	"context"
	"fmt"
	"net/http"
)

// Dispatch executes one action against one entity: resolve the descriptor,
// reject excluded actions, authorize, load, validate, persist, filter
// output. The first error encountered surfaces and nothing is persisted
// after it.
func (e *Engine) Dispatch(ctx context.Context, actor Actor, req Request) (*Response, error) {
	d, err := e.registry.Lookup(req.Entity)
	if err != nil {
		return nil, err
	}

	if !req.Action.Valid() || !d.Allows(req.Action) {
		return nil, NewError(ErrActionExcluded, fmt.Sprintf("action %q not available on %q", req.Action, req.Entity)).
			WithEntity(req.Entity).WithAction(req.Action)
	}

	plan := e.composer.Build(d, req.Params)
	if len(plan.Dropped) > 0 {
		e.logger.Debug().
			Str("entity", req.Entity).
			Strs("tokens", plan.Dropped).
			Msg("ignored unknown query tokens")
	}

	// Primary capability first, then every include path, all before any
	// relation data is loaded.
	if err := e.gate.CheckPrimary(ctx, actor, d, req.Action.Capability(), nil); err != nil {
		return nil, err
	}
	if err := e.gate.CheckIncludes(ctx, actor, d, plan); err != nil {
		return nil, err
	}

	vis := newVisibility(e.gate, actor)

	switch req.Action {
	case ActionList:
		return e.list(ctx, d, plan, vis, RowsLive)
	case ActionTrashed:
		return e.list(ctx, d, plan, vis, RowsTrashed)
	case ActionShow:
		return e.show(ctx, actor, d, req.ID, plan, vis)
	case ActionStore:
		return e.create(ctx, actor, d, req.Payload, vis)
	case ActionUpdate:
		return e.update(ctx, actor, d, req.ID, req.Payload, vis)
	case ActionDelete:
		return e.delete(ctx, actor, d, req.ID)
	case ActionRestore:
		return e.restore(ctx, actor, d, req.ID, vis)
	case ActionPurge:
		return e.purge(ctx, actor, d, req.ID)
	}
	return nil, NewError(ErrActionExcluded, fmt.Sprintf("action %q not available", req.Action))
}

func (e *Engine) list(ctx context.Context, d *Descriptor, plan *QueryPlan, vis *visibility, state RowState) (*Response, error) {
	paging := DecidePaging(d, plan)

	rows, total, err := e.store.List(ctx, d, plan, paging, state)
	if err != nil {
		return nil, err
	}
	if err := e.store.Attach(ctx, d, rows, plan.Includes); err != nil {
		return nil, err
	}

	rows = projectRows(rows, plan)
	rows = vis.applyAll(ctx, d, rows)
	if rows == nil {
		rows = []Row{}
	}
	return &Response{
		Rows:   rows,
		Meta:   paging.Meta(total),
		Status: http.StatusOK,
	}, nil
}

func (e *Engine) show(ctx context.Context, actor Actor, d *Descriptor, id string, plan *QueryPlan, vis *visibility) (*Response, error) {
	row, err := e.loadChecked(ctx, actor, d, id, RowsLive, CapabilityRead)
	if err != nil {
		return nil, err
	}
	rows := []Row{row}
	if err := e.store.Attach(ctx, d, rows, plan.Includes); err != nil {
		return nil, err
	}
	row = projectRows(rows, plan)[0]
	return &Response{
		Row:    vis.apply(ctx, d, row),
		Status: http.StatusOK,
	}, nil
}

func (e *Engine) create(ctx context.Context, actor Actor, d *Descriptor, payload Row, vis *visibility) (*Response, error) {
	values, err := e.validate(ctx, actor, d, ActionStore, payload)
	if err != nil {
		return nil, err
	}
	row, err := e.store.Insert(ctx, d, values)
	if err != nil {
		return nil, err
	}
	return &Response{
		Row:    vis.apply(ctx, d, row),
		Status: http.StatusCreated,
	}, nil
}

func (e *Engine) update(ctx context.Context, actor Actor, d *Descriptor, id string, payload Row, vis *visibility) (*Response, error) {
	if _, err := e.loadChecked(ctx, actor, d, id, RowsLive, CapabilityUpdate); err != nil {
		return nil, err
	}
	values, err := e.validate(ctx, actor, d, ActionUpdate, payload)
	if err != nil {
		return nil, err
	}
	row, err := e.store.Update(ctx, d, id, values)
	if err != nil {
		return nil, err
	}
	return &Response{
		Row:    vis.apply(ctx, d, row),
		Status: http.StatusOK,
	}, nil
}

// delete marks soft-delete-capable rows deleted and physically removes the
// rest. Responds 204 either way.
func (e *Engine) delete(ctx context.Context, actor Actor, d *Descriptor, id string) (*Response, error) {
	if _, err := e.loadChecked(ctx, actor, d, id, RowsLive, CapabilityDelete); err != nil {
		return nil, err
	}
	if d.HasSoftDeletes() {
		if err := e.store.MarkDeleted(ctx, d, id); err != nil {
			return nil, err
		}
	} else {
		if err := e.store.Delete(ctx, d, id); err != nil {
			return nil, err
		}
	}
	return &Response{Status: http.StatusNoContent}, nil
}

func (e *Engine) restore(ctx context.Context, actor Actor, d *Descriptor, id string, vis *visibility) (*Response, error) {
	if _, err := e.loadChecked(ctx, actor, d, id, RowsTrashed, CapabilityRestore); err != nil {
		return nil, err
	}
	row, err := e.store.Restore(ctx, d, id)
	if err != nil {
		return nil, err
	}
	return &Response{
		Row:    vis.apply(ctx, d, row),
		Status: http.StatusOK,
	}, nil
}

func (e *Engine) purge(ctx context.Context, actor Actor, d *Descriptor, id string) (*Response, error) {
	if _, err := e.loadChecked(ctx, actor, d, id, RowsTrashed, CapabilityPurge); err != nil {
		return nil, err
	}
	if err := e.store.Delete(ctx, d, id); err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusNoContent}, nil
}

// loadChecked loads the target row in the required state and, when the
// descriptor carries an instance-sensitive policy, re-checks the capability
// against the loaded instance.
func (e *Engine) loadChecked(ctx context.Context, actor Actor, d *Descriptor, id string, state RowState, capability Capability) (Row, error) {
	if id == "" {
		return nil, NewError(ErrStructural, "missing id").WithEntity(d.Slug())
	}
	row, err := e.store.Find(ctx, d, id, state)
	if err != nil {
		return nil, err
	}
	if d.policy != nil {
		// Class-level check already passed; instance policies get a second
		// look at the loaded row.
		if !d.policy.Allows(ctx, actor, capability, row) {
			return nil, NewError(ErrForbidden, fmt.Sprintf("denied on %s %q", d.Slug(), id)).WithEntity(d.Slug())
		}
	}
	return row, nil
}

// validate resolves the role-sensitive rule set and returns the persistable
// values: validated bucket fields intersected with the fillable whitelist.
func (e *Engine) validate(ctx context.Context, actor Actor, d *Descriptor, action Action, payload Row) (Row, error) {
	role, _ := e.resolver.RoleSlug(ctx, actor)
	v := ResolveValidator(d, action, payload, role)
	if !v.Passes() {
		return nil, NewError(ErrValidation, fmt.Sprintf("%s payload invalid", d.Slug())).
			WithEntity(d.Slug()).WithAction(action).WithFields(v.Errors())
	}

	values := v.Validated()
	if len(d.fillable) > 0 {
		for field := range values {
			if !contains(d.fillable, field) {
				delete(values, field)
			}
		}
	}
	return values, nil
}

// projectRows applies the fields[...] column restriction. The id column and
// include attachments survive projection; hidden-column filtering still runs
// afterwards and is never bypassed by field selection.
func projectRows(rows []Row, plan *QueryPlan) []Row {
	if plan.Fields == nil {
		return rows
	}
	keep := make(map[string]bool, len(plan.Fields)+len(plan.Includes))
	for _, f := range plan.Fields {
		keep[f] = true
	}
	for _, inc := range plan.Includes {
		key := inc.Segments[0]
		if inc.Aggregate != "" && len(inc.Segments) == 1 {
			key = inc.Segments[0] + "_" + inc.Aggregate
		}
		keep[key] = true
	}

	out := make([]Row, len(rows))
	for i, row := range rows {
		projected := make(Row, len(keep))
		for k, v := range row {
			if keep[k] {
				projected[k] = v
			}
		}
		out[i] = projected
	}
	return out
}
