// Package restkit provides a declaratively configured resource-serving engine.
//
// RestKit serves list/read/create/update/delete/restore/purge operations
// uniformly across arbitrarily many entity types: one generic dispatcher,
// parameterized by per-entity descriptors, replaces what would otherwise be
// N hand-written controllers.
//
// # Core Concepts
//
// Descriptor: declarative per-entity configuration: whitelists for
// filter/sort/fields/search/includes, validation rules, soft-delete
// capability, excluded actions.
//
// Capability: a named authorization check (list, read, create, update,
// delete, listTrashed, restore, purge). By default capabilities resolve to
// permission strings "{slug}.{capability}" matched against the actor's
// permission set with wildcard support ("*", "{slug}.*").
//
// Include path: a dot-separated relation chain requested for eager
// attachment ("comments.user"), optionally suffixed with a count/exists
// aggregate ("comments.count"). Every segment must pass the owning entity's
// list capability before any relation data is loaded.
//
// Batch: one request bundling multiple create/update operations across
// entity types, executed inside a single transaction. A batch fully commits
// or leaves zero observable side effects.
//
// # Basic Usage
//
//	// 1. Define your entities (at application startup)
//	registry := restkit.NewRegistry()
//
//	registry.DefineEntity("posts").
//	    Fillable("title", "content", "blog_id").
//	    Rules(restkit.Rules{"title": "string|max:255"}).
//	    StoreRules("title", "content").
//	    Filterable("title", "blog_id").
//	    Sortable("created_at", "title").
//	    Searchable("title", "content").
//	    Relation("comments", restkit.HasMany("comments", "post_id")).
//	    DefaultSort("-created_at").
//	    SoftDeletes()
//
//	// 2. Create the engine over a storage collaborator
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	store := restkit.NewBunStore(db, registry)
//	engine := restkit.New(registry, store, restkit.WithResolver(resolver))
//
//	// 3. Serve it
//	handler := restkit.NewHandler(engine)
//	http.ListenAndServe(":8080", handler.Routes())
//
// The engine owns no background goroutines and no mutable state beyond the
// frozen registry; it is safe under any synchronous worker-pool dispatcher.
package restkit
