package restkit

import (
	"context"
)

// visibility strips policy-hidden columns from serialized rows. The hidden
// set is computed once per entity type per request and memoized, so list
// responses never trigger one policy call per row.
type visibility struct {
	gatekeeper *Gatekeeper
	actor      Actor
	hidden     map[string]map[string]bool // slug -> hidden column set
}

func newVisibility(gatekeeper *Gatekeeper, actor Actor) *visibility {
	return &visibility{
		gatekeeper: gatekeeper,
		actor:      actor,
		hidden:     make(map[string]map[string]bool),
	}
}

func (v *visibility) hiddenFor(ctx context.Context, d *Descriptor) map[string]bool {
	if set, ok := v.hidden[d.Slug()]; ok {
		return set
	}
	set := make(map[string]bool)
	for _, column := range v.gatekeeper.HiddenColumns(ctx, v.actor, d) {
		set[column] = true
	}
	v.hidden[d.Slug()] = set
	return set
}

// apply returns the row without hidden columns, descending into relation
// attachments so related rows are filtered against their own entity's hidden
// set. Applied after field selection, before emission; the input row is not
// mutated.
func (v *visibility) apply(ctx context.Context, d *Descriptor, row Row) Row {
	if row == nil {
		return nil
	}
	set := v.hiddenFor(ctx, d)
	out := make(Row, len(row))
	for k, val := range row {
		if set[k] {
			continue
		}
		out[k] = val
	}

	for name, def := range d.relations {
		val, ok := out[name]
		if !ok {
			continue
		}
		related, err := v.gatekeeper.registry.Lookup(def.Entity)
		if err != nil {
			continue
		}
		switch attached := val.(type) {
		case Row:
			out[name] = v.apply(ctx, related, attached)
		case []Row:
			out[name] = v.applyAll(ctx, related, attached)
		}
	}
	return out
}

// applyAll filters a row list in place order, returning a new slice.
func (v *visibility) applyAll(ctx context.Context, d *Descriptor, rows []Row) []Row {
	if len(rows) == 0 {
		return rows
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = v.apply(ctx, d, row)
	}
	return out
}
