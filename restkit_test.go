package restkit

import (
	"context"
)

// testRegistry builds the blog-domain registry used across the test suite:
// blogs have posts, posts have comments, comments have users, users have
// profiles. Posts are soft-deletable.
func testRegistry() *Registry {
	reg := NewRegistry()

	reg.DefineEntity("blogs").
		Fillable("title", "description").
		Rules(Rules{"title": "string|max:255"}).
		StoreRules("title").
		UpdateRules("title").
		Filterable("title").
		Sortable("title", "created_at").
		Searchable("title").
		Relation("posts", HasMany("posts", "blog_id"))

	reg.DefineEntity("posts").
		Fillable("title", "content", "blog_id").
		Rules(Rules{"title": "string|max:255"}).
		StoreRules("title", "content").
		UpdateRules("title").
		Filterable("title", "blog_id").
		Sortable("title", "created_at").
		Selectable("title", "content", "created_at").
		Searchable("title", "content").
		DefaultSort("-created_at").
		Relation("blog", BelongsTo("blogs", "blog_id")).
		Relation("comments", HasMany("comments", "post_id")).
		SoftDeletes()

	reg.DefineEntity("comments").
		Fillable("body", "pinned", "post_id", "user_id").
		Rules(Rules{"body": "string"}).
		StoreRulesByRole(map[string]Rules{
			"admin": {"body": "required", "pinned": "required|boolean"},
			"*":     {"body": "required"},
		}).
		Filterable("post_id").
		Sortable("created_at").
		Searchable("body").
		Relation("user", BelongsTo("users", "user_id"))

	reg.DefineEntity("users").
		Fillable("name", "email").
		Rules(Rules{"email": "email"}).
		StoreRules("name", "email").
		Sortable("name").
		Searchable("name").
		Relation("profile", BelongsTo("profiles", "profile_id"))

	reg.DefineEntity("profiles").
		Fillable("bio")

	return reg
}

// testResolver grants three test identities: admin (everything), member
// (read-only on posts and comments) and writer (posts plus comment writes).
func testResolver() *StaticResolver {
	resolver := NewStaticResolver()
	resolver.Grant("admin").Role("admin").Permissions("*").
		Grant("member").Role("member").Permissions("posts.list", "posts.read", "comments.list").
		Grant("writer").Role("writer").Permissions("posts.*", "comments.list", "comments.create", "blogs.create", "blogs.list", "users.list")
	return resolver
}

func testEngine(opts ...Option) (*Engine, *MemStore) {
	reg := testRegistry()
	store := NewMemStore(reg)
	opts = append([]Option{WithResolver(testResolver())}, opts...)
	return New(reg, store, opts...), store
}

var (
	adminActor  = Actor{ID: "admin"}
	memberActor = Actor{ID: "member"}
	writerActor = Actor{ID: "writer"}
)

// dispatch is a shorthand for tests that only care about the result.
func dispatch(e *Engine, actor Actor, req Request) (*Response, error) {
	return e.Dispatch(context.Background(), actor, req)
}
