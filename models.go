package restkit

// Row is a serialized entity row. Keys are column names; relation attachments
// use the relation name as key with a Row or []Row value, and aggregate
// includes use "{relation}_count" / "{relation}_exists" keys.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Action identifies one CRUD operation against one entity.
type Action string

// Actions the dispatcher understands. Trashed/Restore/Purge exist only on
// descriptors with soft deletes enabled.
const (
	ActionList    Action = "list"
	ActionShow    Action = "show"
	ActionStore   Action = "store"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionTrashed Action = "trashed"
	ActionRestore Action = "restore"
	ActionPurge   Action = "purge"
)

// Capability returns the named authorization check the action requires.
func (a Action) Capability() Capability {
	switch a {
	case ActionList:
		return CapabilityList
	case ActionShow:
		return CapabilityRead
	case ActionStore:
		return CapabilityCreate
	case ActionUpdate:
		return CapabilityUpdate
	case ActionDelete:
		return CapabilityDelete
	case ActionTrashed:
		return CapabilityListTrashed
	case ActionRestore:
		return CapabilityRestore
	case ActionPurge:
		return CapabilityPurge
	}
	return Capability(a)
}

// Valid reports whether the action is one the dispatcher understands.
func (a Action) Valid() bool {
	switch a {
	case ActionList, ActionShow, ActionStore, ActionUpdate,
		ActionDelete, ActionTrashed, ActionRestore, ActionPurge:
		return true
	}
	return false
}

// Capability is a named authorization check.
type Capability string

// Capabilities checked by the gatekeeper.
const (
	CapabilityList        Capability = "list"
	CapabilityRead        Capability = "read"
	CapabilityCreate      Capability = "create"
	CapabilityUpdate      Capability = "update"
	CapabilityDelete      Capability = "delete"
	CapabilityListTrashed Capability = "listTrashed"
	CapabilityRestore     Capability = "restore"
	CapabilityPurge       Capability = "purge"
)

// Request is one operation against one entity, as received from transport.
type Request struct {
	Action  Action
	Entity  string
	ID      string
	Payload Row
	Params  map[string][]string // raw query parameters, url.Values-shaped
}

// Response is the dispatcher's result for a single request.
type Response struct {
	Rows   []Row       // list/trashed results
	Row    Row         // single-row results (show/store/update/restore)
	Meta   *PageMeta   // set only when the response is paginated
	Status int         // HTTP status for the transport layer
}

// RelationKind distinguishes how a relation joins its owner.
type RelationKind int

const (
	// RelationBelongsTo joins via a foreign key on the owning entity's row.
	RelationBelongsTo RelationKind = iota
	// RelationHasMany joins via a foreign key on the related entity's rows.
	RelationHasMany
)

// RelationDef declares a named relation an entity exposes for includes and
// relation-qualified search columns.
type RelationDef struct {
	Kind       RelationKind
	Entity     string // slug of the related entity
	LocalKey   string // key on the owning row (pk for has-many, fk for belongs-to)
	ForeignKey string // key on the related row (fk for has-many, pk for belongs-to)
}

// BelongsTo declares a belongs-to relation: the owning row carries foreignKey
// pointing at the related entity's id.
func BelongsTo(entity, foreignKey string) RelationDef {
	return RelationDef{
		Kind:       RelationBelongsTo,
		Entity:     entity,
		LocalKey:   foreignKey,
		ForeignKey: "id",
	}
}

// HasMany declares a has-many relation: related rows carry foreignKey pointing
// back at the owning row's id.
func HasMany(entity, foreignKey string) RelationDef {
	return RelationDef{
		Kind:       RelationHasMany,
		Entity:     entity,
		LocalKey:   "id",
		ForeignKey: foreignKey,
	}
}

// Operation is one entry of a batch request. Only store and update are legal.
type Operation struct {
	Entity  string `json:"entity"`
	Action  Action `json:"action"`
	ID      string `json:"id,omitempty"`
	Payload Row    `json:"payload"`
}

// OperationResult is one entry of a successful batch response, in request order.
type OperationResult struct {
	Entity string `json:"entity"`
	Action Action `json:"action"`
	ID     string `json:"id"`
	Result Row    `json:"result"`
}
