package restkit

import (
	"context"
	"sync"
)

// Actor identifies the caller of a request within a tenant.
// Resolution of the actor from transport credentials is the host's job;
// the engine only consumes the resolved identity.
type Actor struct {
	ID     string
	Tenant string
}

// Anonymous is the zero actor used when no identity was resolved.
var Anonymous = Actor{}

// AccessResolver supplies the caller's role slug (for validation bucket
// selection) and permission-string set (for capability checks).
type AccessResolver interface {
	// RoleSlug returns the actor's role slug within its tenant.
	// ok is false when the actor has no role.
	RoleSlug(ctx context.Context, actor Actor) (slug string, ok bool)

	// Permissions returns the actor's permission strings. Strings may be
	// exact ("posts.update"), per-entity wildcards ("posts.*") or the
	// global wildcard ("*").
	Permissions(ctx context.Context, actor Actor) []string
}

// StaticResolver is an in-process AccessResolver over a fixed grant table.
// Useful for tests and single-binary deployments; production systems plug
// their own resolver backed by whatever stores roles.
type StaticResolver struct {
	mu     sync.RWMutex
	grants map[string]*Grant
}

// Grant holds one actor's role and permissions in a StaticResolver.
type Grant struct {
	role        string
	permissions []string
	resolver    *StaticResolver
}

// NewStaticResolver creates an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		grants: make(map[string]*Grant),
	}
}

// Grant starts defining role and permissions for an actor ID.
//
// Example:
//
//	resolver.Grant("user-1").Role("admin").Permissions("*").
//	    Grant("user-2").Role("member").Permissions("posts.list", "posts.read")
func (r *StaticResolver) Grant(actorID string) *Grant {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Grant{resolver: r}
	r.grants[actorID] = g
	return g
}

// Role sets the actor's role slug.
func (g *Grant) Role(slug string) *Grant {
	g.role = slug
	return g
}

// Permissions sets the actor's permission strings.
func (g *Grant) Permissions(perms ...string) *Grant {
	g.permissions = append(g.permissions, perms...)
	return g
}

// Grant continues defining grants on the resolver (fluent API).
func (g *Grant) Grant(actorID string) *Grant {
	return g.resolver.Grant(actorID)
}

// RoleSlug implements AccessResolver.
func (r *StaticResolver) RoleSlug(_ context.Context, actor Actor) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grants[actor.ID]
	if !ok || g.role == "" {
		return "", false
	}
	return g.role, true
}

// Permissions implements AccessResolver.
func (r *StaticResolver) Permissions(_ context.Context, actor Actor) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grants[actor.ID]
	if !ok {
		return nil
	}
	return g.permissions
}

// Policy is the per-entity authorization collaborator. The default policy
// matches "{slug}.{capability}" against the actor's permission strings; a
// descriptor can override it for instance-sensitive decisions.
type Policy interface {
	// Allows checks a capability. instance is nil for class-level checks
	// (list, create) and the loaded row for instance-level ones.
	Allows(ctx context.Context, actor Actor, capability Capability, instance Row) bool

	// HiddenColumns returns columns the actor must never see in output.
	HiddenColumns(ctx context.Context, actor Actor) []string
}
