package restkit

import (
	"strconv"
	"strings"
)

// Filter is one whitelisted filter key with its OR'd equality values.
type Filter struct {
	Column string
	Values []string
}

// SortKey is one ordered sort column.
type SortKey struct {
	Column string
	Desc   bool
}

// Aggregate markers an include path may carry instead of attaching rows.
const (
	AggregateCount  = "count"
	AggregateExists = "exists"
)

// IncludePath is a parsed relation chain requested for eager attachment.
// Path preserves the originally requested string for error reporting.
type IncludePath struct {
	Path      string
	Segments  []string
	Aggregate string // "", AggregateCount or AggregateExists
}

// QueryPlan is the validated query for one list/show request.
// Every token in it passed the descriptor's whitelists; everything else
// from the raw parameters was silently dropped.
type QueryPlan struct {
	Filters  []Filter
	Sort     []SortKey
	Fields   []string // nil means all columns
	Search   string
	Includes []IncludePath

	Page       int  // requested page, 0 when absent
	PerPage    int  // requested page size
	PerPageSet bool // distinguishes an explicit per_page=0 from an absent parameter

	Dropped []string // tokens ignored by whitelisting, for debug logging
}

// Composer builds query plans from raw request parameters, validated against
// a descriptor's whitelists. Unknown tokens never error; they are dropped.
type Composer struct {
	registry *Registry
}

// NewComposer creates a Composer over a registry. The registry is needed to
// walk relation chains when validating include paths and search columns.
func NewComposer(registry *Registry) *Composer {
	return &Composer{registry: registry}
}

// Build composes the query plan for one request.
func (c *Composer) Build(d *Descriptor, params map[string][]string) *QueryPlan {
	plan := &QueryPlan{}

	for key, values := range params {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch {
		case strings.HasPrefix(key, "filter[") && strings.HasSuffix(key, "]"):
			column := key[len("filter[") : len(key)-1]
			if !contains(d.filterable, column) {
				plan.Dropped = append(plan.Dropped, key)
				continue
			}
			plan.Filters = append(plan.Filters, Filter{
				Column: column,
				Values: splitList(value),
			})

		case key == "sort":
			plan.Sort = append(plan.Sort, c.parseSort(d, value, &plan.Dropped)...)

		case strings.HasPrefix(key, "fields[") && strings.HasSuffix(key, "]"):
			slug := key[len("fields[") : len(key)-1]
			if slug != d.slug || len(d.selectable) == 0 {
				plan.Dropped = append(plan.Dropped, key)
				continue
			}
			plan.Fields = c.intersectFields(d, splitList(value), &plan.Dropped)

		case key == "search":
			if value != "" && len(d.searchable) > 0 {
				plan.Search = value
			}

		case key == "include":
			for _, raw := range splitList(value) {
				inc, ok := c.parseInclude(d, raw)
				if !ok {
					plan.Dropped = append(plan.Dropped, raw)
					continue
				}
				plan.Includes = append(plan.Includes, inc)
			}

		case key == "page":
			if n, err := strconv.Atoi(value); err == nil {
				plan.Page = n
			}

		case key == "per_page":
			if n, err := strconv.Atoi(value); err == nil {
				plan.PerPage = n
				plan.PerPageSet = true
			}
		}
	}

	if len(plan.Sort) == 0 && d.defaultSort != "" {
		plan.Sort = parseSortList(d.defaultSort)
	}

	return plan
}

// parseSort validates request sort tokens against the sortable whitelist,
// preserving order so later keys act as tie-breaks.
func (c *Composer) parseSort(d *Descriptor, raw string, dropped *[]string) []SortKey {
	var keys []SortKey
	for _, key := range parseSortList(raw) {
		if !contains(d.sortable, key.Column) {
			*dropped = append(*dropped, "sort:"+key.Column)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// parseSortList parses "a,-b" into ordered sort keys without whitelisting.
// Used directly for descriptor defaults, which are trusted configuration.
func parseSortList(raw string) []SortKey {
	var keys []SortKey
	for _, token := range splitList(raw) {
		if token == "" {
			continue
		}
		key := SortKey{Column: token}
		if strings.HasPrefix(token, "-") {
			key = SortKey{Column: token[1:], Desc: true}
		}
		keys = append(keys, key)
	}
	return keys
}

// intersectFields keeps requested columns present in the selectable
// whitelist. The id column is always retained.
func (c *Composer) intersectFields(d *Descriptor, requested []string, dropped *[]string) []string {
	fields := []string{"id"}
	for _, f := range requested {
		if f == "id" {
			continue
		}
		if !contains(d.selectable, f) {
			*dropped = append(*dropped, "fields:"+f)
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// parseInclude parses one include token, stripping a trailing aggregate
// marker, and walks the relation chain to confirm every segment exists.
// The aggregate marker inherits the base relation's authorization target
// and never introduces its own.
func (c *Composer) parseInclude(d *Descriptor, raw string) (IncludePath, bool) {
	segments := strings.Split(raw, ".")
	inc := IncludePath{Path: raw}

	last := segments[len(segments)-1]
	if last == AggregateCount || last == AggregateExists {
		inc.Aggregate = last
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return inc, false
	}
	inc.Segments = segments

	current := d
	for _, segment := range segments {
		def, ok := current.RelationNamed(segment)
		if !ok {
			return inc, false
		}
		related, err := c.registry.Lookup(def.Entity)
		if err != nil {
			return inc, false
		}
		current = related
	}
	return inc, true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
