package restkit

import (
	"fmt"
	"net/http"
	"sync"
)

// Registry holds all entity descriptors for the application.
// It is created at startup and must be treated as immutable once an Engine
// starts serving requests; Freeze makes that explicit.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Descriptor
	frozen   bool
}

// Descriptor is the declarative per-entity configuration: whitelists,
// validation rules and capability flags consumed by the generic dispatcher.
type Descriptor struct {
	slug  string
	table string

	fillable    []string
	baseRules   Rules      // field -> base format rule
	storeRules  ruleConfig // presence rules for store
	updateRules ruleConfig // presence rules for update

	filterable []string
	sortable   []string
	selectable []string
	searchable []string
	relations  map[string]RelationDef

	defaultSort string
	perPage     int // 0 means unpaged unless the request asks

	softDeletes bool
	excluded    map[Action]bool

	policy     Policy
	middleware []func(http.Handler) http.Handler

	registry *Registry
}

// NewRegistry creates a new entity registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Descriptor),
	}
}

// DefineEntity starts defining a descriptor for a resource slug.
// Returns a Descriptor builder for fluent configuration.
//
// Example:
//
//	registry.DefineEntity("posts").
//	    Fillable("title", "content", "blog_id").
//	    Rules(restkit.Rules{"title": "string|max:255"}).
//	    StoreRules("title", "content").
//	    Filterable("title", "blog_id").
//	    Sortable("created_at", "title").
//	    Searchable("title", "content").
//	    Relation("comments", restkit.HasMany("comments", "post_id")).
//	    SoftDeletes()
func (r *Registry) DefineEntity(slug string) *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic(fmt.Sprintf("restkit: registry frozen, cannot define entity %q", slug))
	}

	d := &Descriptor{
		slug:      slug,
		table:     slug,
		relations: make(map[string]RelationDef),
		excluded:  make(map[Action]bool),
		registry:  r,
	}
	r.entities[slug] = d
	return d
}

// Lookup returns the descriptor for a slug.
func (r *Registry) Lookup(slug string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.entities[slug]
	if !ok {
		return nil, NewError(ErrEntityUnknown, fmt.Sprintf("entity %q not registered", slug)).WithEntity(slug)
	}
	return d, nil
}

// Slugs returns all registered entity slugs.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs := make([]string, 0, len(r.entities))
	for slug := range r.entities {
		slugs = append(slugs, slug)
	}
	return slugs
}

// Freeze marks the registry read-only. Engines freeze their registry on
// construction; later DefineEntity calls panic.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Table overrides the storage table name (defaults to the slug).
func (d *Descriptor) Table(name string) *Descriptor {
	d.table = name
	return d
}

// Fillable sets the columns writable through store/update payloads.
func (d *Descriptor) Fillable(fields ...string) *Descriptor {
	d.fillable = append(d.fillable, fields...)
	return d
}

// Rules sets the base format rules applied to a field whenever the field is
// present in the operation's presence bucket.
func (d *Descriptor) Rules(rules Rules) *Descriptor {
	d.baseRules = rules
	return d
}

// StoreRules sets the legacy flat store configuration: each named field is
// implicitly required on store.
func (d *Descriptor) StoreRules(fields ...string) *Descriptor {
	d.storeRules = ruleConfig{flat: fields}
	return d
}

// StoreRulesByRole sets the role-keyed store configuration. Bucket key "*"
// is the fallback for callers with no matching role.
func (d *Descriptor) StoreRulesByRole(buckets map[string]Rules) *Descriptor {
	d.storeRules = ruleConfig{byRole: buckets}
	return d
}

// UpdateRules sets the legacy flat update configuration.
func (d *Descriptor) UpdateRules(fields ...string) *Descriptor {
	d.updateRules = ruleConfig{flat: fields}
	return d
}

// UpdateRulesByRole sets the role-keyed update configuration.
func (d *Descriptor) UpdateRulesByRole(buckets map[string]Rules) *Descriptor {
	d.updateRules = ruleConfig{byRole: buckets}
	return d
}

// Filterable whitelists columns usable in filter[column] parameters.
func (d *Descriptor) Filterable(fields ...string) *Descriptor {
	d.filterable = append(d.filterable, fields...)
	return d
}

// Sortable whitelists columns usable in the sort parameter.
func (d *Descriptor) Sortable(fields ...string) *Descriptor {
	d.sortable = append(d.sortable, fields...)
	return d
}

// Selectable whitelists columns usable in fields[slug] parameters.
func (d *Descriptor) Selectable(fields ...string) *Descriptor {
	d.selectable = append(d.selectable, fields...)
	return d
}

// Searchable whitelists search columns. A dot path ("user.name") searches
// through the named relation's column.
func (d *Descriptor) Searchable(columns ...string) *Descriptor {
	d.searchable = append(d.searchable, columns...)
	return d
}

// Relation declares a named relation available for include paths and
// relation-qualified search columns.
func (d *Descriptor) Relation(name string, def RelationDef) *Descriptor {
	d.relations[name] = def
	return d
}

// DefaultSort sets the sort applied when the request carries none.
// Uses the same syntax as the sort parameter ("-created_at,title").
func (d *Descriptor) DefaultSort(sort string) *Descriptor {
	d.defaultSort = sort
	return d
}

// PerPage sets the default page size, making list responses paginated even
// without an explicit page parameter.
func (d *Descriptor) PerPage(n int) *Descriptor {
	d.perPage = n
	return d
}

// SoftDeletes enables mark-deleted semantics and the trashed/restore/purge actions.
func (d *Descriptor) SoftDeletes() *Descriptor {
	d.softDeletes = true
	return d
}

// Except excludes actions from this entity. Requests for an excluded action
// are answered 404.
func (d *Descriptor) Except(actions ...Action) *Descriptor {
	for _, a := range actions {
		d.excluded[a] = true
	}
	return d
}

// Policy overrides the default permission-string policy for this entity.
func (d *Descriptor) Policy(p Policy) *Descriptor {
	d.policy = p
	return d
}

// Middleware attaches HTTP middleware to this entity's routes.
func (d *Descriptor) Middleware(mw ...func(http.Handler) http.Handler) *Descriptor {
	d.middleware = append(d.middleware, mw...)
	return d
}

// DefineEntity continues defining entities on the registry (fluent API).
func (d *Descriptor) DefineEntity(slug string) *Descriptor {
	return d.registry.DefineEntity(slug)
}

// Slug returns the resource slug.
func (d *Descriptor) Slug() string {
	return d.slug
}

// TableName returns the storage table name.
func (d *Descriptor) TableName() string {
	return d.table
}

// HasSoftDeletes reports whether mark-deleted semantics are enabled.
func (d *Descriptor) HasSoftDeletes() bool {
	return d.softDeletes
}

// Allows reports whether the action is available on this entity. Soft-delete
// extended actions exist only when soft deletes are enabled.
func (d *Descriptor) Allows(a Action) bool {
	if d.excluded[a] {
		return false
	}
	switch a {
	case ActionTrashed, ActionRestore, ActionPurge:
		return d.softDeletes
	}
	return true
}

// RelationNamed returns the relation definition for a name.
func (d *Descriptor) RelationNamed(name string) (RelationDef, bool) {
	def, ok := d.relations[name]
	return def, ok
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
