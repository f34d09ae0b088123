package restkit

import (
	"context"
)

// DeletedAtColumn marks soft-deleted rows. Live queries exclude rows where
// it is set; trashed queries require it.
const DeletedAtColumn = "deleted_at"

// RowState selects which rows an operation sees with respect to soft deletion.
// Entities without soft deletes always behave as RowsLive.
type RowState int

const (
	// RowsLive sees only rows that are not soft-deleted.
	RowsLive RowState = iota
	// RowsTrashed sees only rows that are currently soft-deleted.
	RowsTrashed
	// RowsAny sees both.
	RowsAny
)

// Store is the relational storage collaborator. Implementations supply
// equality/IN filtering, multi-key ordered sort, substring search,
// eager-loading of named relations and single-transaction batches;
// the engine composes behavior on top and owns no SQL of its own.
type Store interface {
	// List returns rows matching the plan, in plan order, plus the total
	// match count ignoring pagination. state selects live or trashed rows.
	List(ctx context.Context, d *Descriptor, plan *QueryPlan, paging Paging, state RowState) ([]Row, int64, error)

	// Find loads one row by id. Returns an ErrNotFound-wrapped error when
	// the row is absent or not in the requested state.
	Find(ctx context.Context, d *Descriptor, id string, state RowState) (Row, error)

	// Insert persists a new row and returns it with generated columns set.
	Insert(ctx context.Context, d *Descriptor, values Row) (Row, error)

	// Update persists changed columns on an existing row and returns the
	// updated row.
	Update(ctx context.Context, d *Descriptor, id string, values Row) (Row, error)

	// Delete removes a row physically.
	Delete(ctx context.Context, d *Descriptor, id string) error

	// MarkDeleted soft-deletes a live row.
	MarkDeleted(ctx context.Context, d *Descriptor, id string) error

	// Restore clears the soft-delete mark on a trashed row and returns it.
	Restore(ctx context.Context, d *Descriptor, id string) (Row, error)

	// Attach eager-loads authorized include paths onto the rows, in place.
	// Aggregate paths attach "{relation}_count" / "{relation}_exists" keys
	// instead of rows.
	Attach(ctx context.Context, d *Descriptor, rows []Row, includes []IncludePath) error

	// InTx runs fn inside one transaction. fn receives a Store bound to the
	// transaction; any error (or caller abort via ctx) rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
