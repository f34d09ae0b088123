package restkit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests, prototypes and the examples.
// It implements the full storage contract, including relation-qualified
// search, include attachment and transactional rollback, so the engine can
// be exercised hermetically.
type MemStore struct {
	mu       sync.Mutex
	registry *Registry
	tables   map[string][]Row
}

// NewMemStore creates an empty MemStore over a registry.
func NewMemStore(registry *Registry) *MemStore {
	return &MemStore{
		registry: registry,
		tables:   make(map[string][]Row),
	}
}

// Seed inserts rows directly into a table, bypassing validation. Test helper.
func (s *MemStore) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.tables[table] = append(s.tables[table], row.Clone())
	}
}

// List implements Store.
func (s *MemStore) List(ctx context.Context, d *Descriptor, plan *QueryPlan, paging Paging, state RowState) ([]Row, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Row
	for _, row := range s.tables[d.TableName()] {
		if !inState(d, row, state) {
			continue
		}
		if !s.matchesFilters(row, plan.Filters) {
			continue
		}
		if plan.Search != "" && !s.matchesSearch(d, row, plan.Search) {
			continue
		}
		matched = append(matched, row.Clone())
	}

	sortRows(matched, plan.Sort)
	total := int64(len(matched))

	if paging.Enabled {
		start := paging.Offset()
		if start > len(matched) {
			start = len(matched)
		}
		end := start + paging.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// Find implements Store.
func (s *MemStore) Find(ctx context.Context, d *Descriptor, id string, state RowState) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.find(d, id, state)
	if row == nil {
		return nil, NewError(ErrNotFound, fmt.Sprintf("%s %q not found", d.Slug(), id)).WithEntity(d.Slug())
	}
	return row.Clone(), nil
}

// Insert implements Store.
func (s *MemStore) Insert(ctx context.Context, d *Descriptor, values Row) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := values.Clone()
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC()
	}
	s.tables[d.TableName()] = append(s.tables[d.TableName()], row)
	return row.Clone(), nil
}

// Update implements Store.
func (s *MemStore) Update(ctx context.Context, d *Descriptor, id string, values Row) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.find(d, id, RowsLive)
	if row == nil {
		return nil, NewError(ErrNotFound, fmt.Sprintf("%s %q not found", d.Slug(), id)).WithEntity(d.Slug())
	}
	for k, v := range values {
		if k == "id" {
			continue
		}
		row[k] = v
	}
	row["updated_at"] = time.Now().UTC()
	return row.Clone(), nil
}

// Delete implements Store.
func (s *MemStore) Delete(ctx context.Context, d *Descriptor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.tables[d.TableName()]
	for i, row := range table {
		if idOf(row) == id {
			s.tables[d.TableName()] = append(table[:i:i], table[i+1:]...)
			return nil
		}
	}
	return NewError(ErrNotFound, fmt.Sprintf("%s %q not found", d.Slug(), id)).WithEntity(d.Slug())
}

// MarkDeleted implements Store.
func (s *MemStore) MarkDeleted(ctx context.Context, d *Descriptor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.find(d, id, RowsLive)
	if row == nil {
		return NewError(ErrNotFound, fmt.Sprintf("%s %q not found", d.Slug(), id)).WithEntity(d.Slug())
	}
	row[DeletedAtColumn] = time.Now().UTC()
	return nil
}

// Restore implements Store.
func (s *MemStore) Restore(ctx context.Context, d *Descriptor, id string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.find(d, id, RowsTrashed)
	if row == nil {
		return nil, NewError(ErrNotFound, fmt.Sprintf("%s %q not trashed", d.Slug(), id)).WithEntity(d.Slug())
	}
	delete(row, DeletedAtColumn)
	return row.Clone(), nil
}

// Attach implements Store.
func (s *MemStore) Attach(ctx context.Context, d *Descriptor, rows []Row, includes []IncludePath) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inc := range includes {
		if err := s.attachPath(d, rows, inc.Segments, inc.Aggregate); err != nil {
			return err
		}
	}
	return nil
}

// InTx implements Store. The whole table set is snapshotted before fn runs;
// any error or context cancellation restores the snapshot, so a failed batch
// leaves zero observable side effects.
func (s *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	s.mu.Lock()
	snapshot := make(map[string][]Row, len(s.tables))
	for table, rows := range s.tables {
		copied := make([]Row, len(rows))
		for i, row := range rows {
			copied[i] = row.Clone()
		}
		snapshot[table] = copied
	}
	s.mu.Unlock()

	err := fn(ctx, s)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		s.tables = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// find must be called with the lock held. Returns the live row pointer.
func (s *MemStore) find(d *Descriptor, id string, state RowState) Row {
	for _, row := range s.tables[d.TableName()] {
		if idOf(row) == id && inState(d, row, state) {
			return row
		}
	}
	return nil
}

func (s *MemStore) matchesFilters(row Row, filters []Filter) bool {
	for _, f := range filters {
		hit := false
		for _, want := range f.Values {
			if fmt.Sprintf("%v", row[f.Column]) == want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// matchesSearch checks the case-insensitive substring term against every
// whitelisted search column, including relation-qualified dot paths matched
// through the related table.
func (s *MemStore) matchesSearch(d *Descriptor, row Row, term string) bool {
	needle := strings.ToLower(term)
	for _, column := range d.searchable {
		relation, col, qualified := strings.Cut(column, ".")
		if !qualified {
			if containsFold(row[column], needle) {
				return true
			}
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
		for _, other := range s.tables[related.TableName()] {
			if !inState(related, other, RowsLive) {
				continue
			}
			if fmt.Sprintf("%v", other[def.ForeignKey]) != fmt.Sprintf("%v", row[def.LocalKey]) {
				continue
			}
			if containsFold(other[col], needle) {
				return true
			}
		}
	}
	return false
}

func (s *MemStore) attachPath(d *Descriptor, rows []Row, segments []string, aggregate string) error {
	if len(segments) == 0 {
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

	terminal := len(segments) == 1
	var next []Row
	for _, row := range rows {
		var matches []Row
		for _, other := range s.tables[related.TableName()] {
			if !inState(related, other, RowsLive) {
				continue
			}
			if fmt.Sprintf("%v", other[def.ForeignKey]) == fmt.Sprintf("%v", row[def.LocalKey]) {
				matches = append(matches, other.Clone())
			}
		}

		if terminal && aggregate != "" {
			switch aggregate {
			case AggregateCount:
				row[segment+"_count"] = len(matches)
			case AggregateExists:
				row[segment+"_exists"] = len(matches) > 0
			}
			continue
		}

		if def.Kind == RelationBelongsTo {
			if len(matches) > 0 {
				row[segment] = matches[0]
				next = append(next, matches[0])
			} else {
				row[segment] = nil
			}
		} else {
			if matches == nil {
				matches = []Row{}
			}
			row[segment] = matches
			next = append(next, matches...)
		}
	}

	if !terminal {
		return s.attachPath(related, next, segments[1:], aggregate)
	}
	return nil
}

func inState(d *Descriptor, row Row, state RowState) bool {
	if !d.HasSoftDeletes() {
		return true
	}
	trashed := row[DeletedAtColumn] != nil
	switch state {
	case RowsLive:
		return !trashed
	case RowsTrashed:
		return trashed
	}
	return true
}

func idOf(row Row) string {
	return fmt.Sprintf("%v", row["id"])
}

func containsFold(value any, needle string) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), needle)
}

func sortRows(rows []Row, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(rows[i][key.Column], rows[j][key.Column])
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}
