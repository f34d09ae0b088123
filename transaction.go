package restkit

import (
	"context"
	"fmt"
)

// ActionCreate is the wire alias batch operations may use for ActionStore.
const ActionCreate Action = "create"

// ExecuteBatch runs an ordered list of create/update operations across
// entity types atomically. Structure and authorization are fully evaluated
// for every operation before a transaction opens; once open, the first
// not-found, validation or persistence failure rolls back everything, so a
// batch either fully commits or leaves zero observable side effects.
//
// Operations cannot reference ids produced by earlier operations in the
// same batch; that is a documented limitation.
func (e *Engine) ExecuteBatch(ctx context.Context, actor Actor, ops []Operation) ([]OperationResult, error) {
	if len(ops) > e.batchLimit {
		return nil, NewError(ErrTooManyOperations,
			fmt.Sprintf("%d operations exceed the limit of %d", len(ops), e.batchLimit))
	}

	// Phase 1: structural validation, no side effects. Abort on the first
	// offending index.
	descriptors := make([]*Descriptor, len(ops))
	actions := make([]Action, len(ops))
	for i, op := range ops {
		action := op.Action
		if action == ActionCreate {
			action = ActionStore
		}
		if action != ActionStore && action != ActionUpdate {
			return nil, NewError(ErrStructural, fmt.Sprintf("operation %d: action %q not allowed in a batch", i, op.Action)).
				WithEntity(op.Entity).WithIndex(i)
		}
		if e.batchAllow != nil && !e.batchAllow[op.Entity] {
			return nil, NewError(ErrStructural, fmt.Sprintf("operation %d: entity %q not allowed in a batch", i, op.Entity)).
				WithEntity(op.Entity).WithIndex(i)
		}
		d, err := e.registry.Lookup(op.Entity)
		if err != nil {
			return nil, NewError(ErrStructural, fmt.Sprintf("operation %d: unknown entity %q", i, op.Entity)).
				WithEntity(op.Entity).WithIndex(i)
		}
		if !d.Allows(action) {
			return nil, NewError(ErrStructural, fmt.Sprintf("operation %d: action %q not available on %q", i, op.Action, op.Entity)).
				WithEntity(op.Entity).WithIndex(i)
		}
		if action == ActionUpdate && op.ID == "" {
			return nil, NewError(ErrStructural, fmt.Sprintf("operation %d: update requires an id", i)).
				WithEntity(op.Entity).WithIndex(i)
		}
		if len(op.Payload) == 0 {
			return nil, NewError(ErrStructural, fmt.Sprintf("operation %d: missing payload", i)).
				WithEntity(op.Entity).WithIndex(i)
		}
		descriptors[i] = d
		actions[i] = action
	}

	// Phase 2: authorization across every operation, still before any
	// transaction opens.
	for i, op := range ops {
		if err := e.gate.CheckPrimary(ctx, actor, descriptors[i], actions[i].Capability(), nil); err != nil {
			return nil, NewError(ErrForbidden, fmt.Sprintf("operation %d: %s denied on %q", i, actions[i].Capability(), op.Entity)).
				WithEntity(op.Entity).WithIndex(i)
		}
	}

	// Phase 3: one transaction scope, operations strictly in order.
	vis := newVisibility(e.gate, actor)
	results := make([]OperationResult, 0, len(ops))

	err := e.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		for i, op := range ops {
			d := descriptors[i]

			if actions[i] == ActionUpdate {
				row, err := tx.Find(ctx, d, op.ID, RowsLive)
				if err != nil {
					return NewError(ErrNotFound, fmt.Sprintf("operation %d: %s %q not found", i, op.Entity, op.ID)).
						WithEntity(op.Entity).WithIndex(i)
				}
				if d.policy != nil && !d.policy.Allows(ctx, actor, CapabilityUpdate, row) {
					return NewError(ErrForbidden, fmt.Sprintf("operation %d: update denied on %s %q", i, op.Entity, op.ID)).
						WithEntity(op.Entity).WithIndex(i)
				}
			}

			values, err := e.validate(ctx, actor, d, actions[i], op.Payload)
			if err != nil {
				var fields map[string][]string
				if ve, ok := err.(*Error); ok {
					fields = ve.Fields
				}
				return NewError(ErrValidation, fmt.Sprintf("operation %d: %s payload invalid", i, op.Entity)).
					WithEntity(op.Entity).WithIndex(i).WithFields(fields)
			}

			var row Row
			if actions[i] == ActionStore {
				row, err = tx.Insert(ctx, d, values)
			} else {
				row, err = tx.Update(ctx, d, op.ID, values)
			}
			if err != nil {
				return NewError(ErrPersistence, fmt.Sprintf("operation %d: %v", i, err)).
					WithEntity(op.Entity).WithIndex(i)
			}

			results = append(results, OperationResult{
				Entity: op.Entity,
				Action: op.Action,
				ID:     idOf(row),
				Result: vis.apply(ctx, d, row),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
