package restkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunStore is the production Store on dbkit/bun. Rows travel as maps so one
// store serves arbitrarily many entity types; descriptors supply the table
// names and relation joins.
type BunStore struct {
	db       dbkit.IDB
	registry *Registry
}

// NewBunStore creates a BunStore over a dbkit connection.
//
// Example:
//
//	db, err := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	store := restkit.NewBunStore(db, registry)
func NewBunStore(db dbkit.IDB, registry *Registry) *BunStore {
	return &BunStore{
		db:       db,
		registry: registry,
	}
}

// List implements Store.
func (s *BunStore) List(ctx context.Context, d *Descriptor, plan *QueryPlan, paging Paging, state RowState) ([]Row, int64, error) {
	base := s.db.NewSelect().Table(d.TableName())
	base = s.applyState(base, d, state)
	base = s.applyFilters(base, plan.Filters)
	base = s.applySearch(base, d, plan.Search)

	total, err := base.Count(ctx)
	if err != nil {
		return nil, 0, s.wrap(err, d, "List")
	}

	q := base
	for _, key := range plan.Sort {
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("? "+dir, bun.Ident(key.Column))
	}
	if paging.Enabled {
		q = q.Limit(paging.PerPage).Offset(paging.Offset())
	}

	var rows []map[string]any
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, 0, s.wrap(err, d, "List")
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row(r)
	}
	return out, int64(total), nil
}

// Find implements Store.
func (s *BunStore) Find(ctx context.Context, d *Descriptor, id string, state RowState) (Row, error) {
	q := s.db.NewSelect().Table(d.TableName()).Where("id = ?", id).Limit(1)
	q = s.applyState(q, d, state)

	var row map[string]any
	if err := q.Scan(ctx, &row); err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, fmt.Sprintf("%s %q not found", d.Slug(), id)).WithEntity(d.Slug())
		}
		return nil, s.wrap(err, d, "Find")
	}
	return Row(row), nil
}

// Insert implements Store. Ids are generated store-side so the inserted row
// can be read back without relying on driver RETURNING support.
func (s *BunStore) Insert(ctx context.Context, d *Descriptor, values Row) (Row, error) {
	row := values.Clone()
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC()
	}

	m := map[string]any(row)
	if _, err := s.db.NewInsert().Model(&m).TableExpr(d.TableName()).Exec(ctx); err != nil {
		return nil, s.wrap(err, d, "Insert")
	}
	return s.Find(ctx, d, fmt.Sprintf("%v", row["id"]), RowsAny)
}

// Update implements Store.
func (s *BunStore) Update(ctx context.Context, d *Descriptor, id string, values Row) (Row, error) {
	q := s.db.NewUpdate().Table(d.TableName()).Where("id = ?", id)
	for column, value := range values {
		if column == "id" {
			continue
		}
		q = q.Set("? = ?", bun.Ident(column), value)
	}
	q = q.Set("? = ?", bun.Ident("updated_at"), time.Now().UTC())

	if _, err := q.Exec(ctx); err != nil {
		return nil, s.wrap(err, d, "Update")
	}
	return s.Find(ctx, d, id, RowsAny)
}

// Delete implements Store.
func (s *BunStore) Delete(ctx context.Context, d *Descriptor, id string) error {
	_, err := s.db.NewDelete().Table(d.TableName()).Where("id = ?", id).Exec(ctx)
	return s.wrap(err, d, "Delete")
}

// MarkDeleted implements Store.
func (s *BunStore) MarkDeleted(ctx context.Context, d *Descriptor, id string) error {
	_, err := s.db.NewUpdate().Table(d.TableName()).
		Set("? = ?", bun.Ident(DeletedAtColumn), time.Now().UTC()).
		Where("id = ?", id).
		Where("? IS NULL", bun.Ident(DeletedAtColumn)).
		Exec(ctx)
	return s.wrap(err, d, "MarkDeleted")
}

// Restore implements Store.
func (s *BunStore) Restore(ctx context.Context, d *Descriptor, id string) (Row, error) {
	_, err := s.db.NewUpdate().Table(d.TableName()).
		Set("? = NULL", bun.Ident(DeletedAtColumn)).
		Where("id = ?", id).
		Where("? IS NOT NULL", bun.Ident(DeletedAtColumn)).
		Exec(ctx)
	if err != nil {
		return nil, s.wrap(err, d, "Restore")
	}
	return s.Find(ctx, d, id, RowsLive)
}

// Attach implements Store. Each path level loads its related rows with one
// batched IN query keyed by the parent rows' join values.
func (s *BunStore) Attach(ctx context.Context, d *Descriptor, rows []Row, includes []IncludePath) error {
	for _, inc := range includes {
		if err := s.attachPath(ctx, d, rows, inc.Segments, inc.Aggregate); err != nil {
			return err
		}
	}
	return nil
}

// InTx implements Store. Exactly one transaction scope spans the callback;
// the transaction-bound store it passes reuses every query path above.
func (s *BunStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, &BunStore{db: tx, registry: s.registry})
		})
	}
	if tx, ok := s.db.(*dbkit.Tx); ok {
		return tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx, &BunStore{db: tx, registry: s.registry})
		})
	}
	return NewError(ErrPersistence, "transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

func (s *BunStore) attachPath(ctx context.Context, d *Descriptor, rows []Row, segments []string, aggregate string) error {
	if len(rows) == 0 || len(segments) == 0 {
		return nil
	}
	segment := segments[0]
	def, ok := d.RelationNamed(segment)
	if !ok {
		return NewError(ErrEntityUnknown, fmt.Sprintf("unknown relation %q on %q", segment, d.Slug()))
	}
	related, err := s.registry.Lookup(def.Entity)
	if err != nil {
		return err
	}

	keys := make([]any, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		v := row[def.LocalKey]
		if v == nil {
			continue
		}
		k := fmt.Sprintf("%v", v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	terminal := len(segments) == 1
	if terminal && aggregate != "" {
		return s.attachAggregate(ctx, related, def, rows, segment, aggregate, keys)
	}

	q := s.db.NewSelect().Table(related.TableName()).
		Where("? IN (?)", bun.Ident(def.ForeignKey), bun.In(keys))
	q = s.applyState(q, related, RowsLive)

	var loaded []map[string]any
	if err := q.Scan(ctx, &loaded); err != nil {
		return s.wrap(err, related, "Attach")
	}

	byKey := make(map[string][]Row)
	next := make([]Row, 0, len(loaded))
	for _, m := range loaded {
		row := Row(m)
		k := fmt.Sprintf("%v", row[def.ForeignKey])
		byKey[k] = append(byKey[k], row)
		next = append(next, row)
	}

	for _, row := range rows {
		matches := byKey[fmt.Sprintf("%v", row[def.LocalKey])]
		if def.Kind == RelationBelongsTo {
			if len(matches) > 0 {
				row[segment] = matches[0]
			} else {
				row[segment] = nil
			}
			continue
		}
		if matches == nil {
			matches = []Row{}
		}
		row[segment] = matches
	}

	if !terminal {
		return s.attachPath(ctx, related, next, segments[1:], aggregate)
	}
	return nil
}

// attachAggregate computes count/exists per parent with one grouped query
// instead of loading relation rows.
func (s *BunStore) attachAggregate(ctx context.Context, related *Descriptor, def RelationDef, rows []Row, segment, aggregate string, keys []any) error {
	q := s.db.NewSelect().Table(related.TableName()).
		ColumnExpr("? AS join_key", bun.Ident(def.ForeignKey)).
		ColumnExpr("count(*) AS total").
		Where("? IN (?)", bun.Ident(def.ForeignKey), bun.In(keys)).
		GroupExpr("?", bun.Ident(def.ForeignKey))
	q = s.applyState(q, related, RowsLive)

	var counts []map[string]any
	if err := q.Scan(ctx, &counts); err != nil {
		return s.wrap(err, related, "Attach")
	}

	totals := make(map[string]int64, len(counts))
	for _, c := range counts {
		f, _ := asFloat(c["total"])
		totals[fmt.Sprintf("%v", c["join_key"])] = int64(f)
	}

	for _, row := range rows {
		total := totals[fmt.Sprintf("%v", row[def.LocalKey])]
		switch aggregate {
		case AggregateCount:
			row[segment+"_count"] = total
		case AggregateExists:
			row[segment+"_exists"] = total > 0
		}
	}
	return nil
}

func (s *BunStore) applyState(q *bun.SelectQuery, d *Descriptor, state RowState) *bun.SelectQuery {
	if !d.HasSoftDeletes() {
		return q
	}
	switch state {
	case RowsLive:
		return q.Where("? IS NULL", bun.Ident(DeletedAtColumn))
	case RowsTrashed:
		return q.Where("? IS NOT NULL", bun.Ident(DeletedAtColumn))
	}
	return q
}

func (s *BunStore) applyFilters(q *bun.SelectQuery, filters []Filter) *bun.SelectQuery {
	for _, f := range filters {
		if len(f.Values) == 1 {
			q = q.Where("? = ?", bun.Ident(f.Column), f.Values[0])
			continue
		}
		values := make([]any, len(f.Values))
		for i, v := range f.Values {
			values[i] = v
		}
		q = q.Where("? IN (?)", bun.Ident(f.Column), bun.In(values))
	}
	return q
}

// applySearch ORs a case-insensitive substring match across every
// whitelisted search column. Relation-qualified columns match through the
// related table with an EXISTS subquery.
func (s *BunStore) applySearch(q *bun.SelectQuery, d *Descriptor, term string) *bun.SelectQuery {
	if term == "" || len(d.searchable) == 0 {
		return q
	}
	pattern := "%" + strings.ToLower(term) + "%"

	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, column := range d.searchable {
			relation, col, qualified := strings.Cut(column, ".")
			if !qualified {
				q = q.WhereOr("lower(?) LIKE ?", bun.Ident(column), pattern)
				continue
			}
			def, ok := d.RelationNamed(relation)
			if !ok {
				continue
			}
			related, err := s.registry.Lookup(def.Entity)
			if err != nil {
				continue
			}
			q = q.WhereOr("EXISTS (SELECT 1 FROM ? AS rel WHERE rel.? = ?.? AND lower(rel.?) LIKE ?)",
				bun.Ident(related.TableName()), bun.Ident(def.ForeignKey),
				bun.Ident(d.TableName()), bun.Ident(def.LocalKey),
				bun.Ident(col), pattern)
		}
		return q
	})
}

func (s *BunStore) wrap(err error, d *Descriptor, operation string) error {
	if err == nil {
		return nil
	}
	if dbkit.IsDuplicate(err) {
		return NewError(ErrValidation, fmt.Sprintf("%s: duplicate value", operation)).WithEntity(d.Slug())
	}
	err = dbkit.WithErr1(err, operation).Err()
	return NewError(ErrPersistence, err.Error()).WithEntity(d.Slug())
}
