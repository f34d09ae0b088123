package restkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionMatcherExact(t *testing.T) {
	pm := NewPermissionMatcher()

	assert.True(t, pm.Match("posts.update", "posts.update"))
	assert.False(t, pm.Match("posts.update", "posts.delete"))
	assert.False(t, pm.Match("posts.update", "comments.update"))
}

func TestPermissionMatcherGlobalWildcard(t *testing.T) {
	pm := NewPermissionMatcher()

	assert.True(t, pm.Match("*", "posts.update"))
	assert.True(t, pm.Match("*", "anything.at.all"))
}

func TestPermissionMatcherEntityWildcard(t *testing.T) {
	pm := NewPermissionMatcher()

	assert.True(t, pm.Match("posts.*", "posts.update"))
	assert.True(t, pm.Match("posts.*", "posts.listTrashed"))
	assert.False(t, pm.Match("posts.*", "comments.list"))
}

func TestPermissionMatcherMatchAny(t *testing.T) {
	pm := NewPermissionMatcher()

	patterns := []string{"comments.list", "posts.*"}
	assert.True(t, pm.MatchAny(patterns, "posts.purge"))
	assert.True(t, pm.MatchAny(patterns, "comments.list"))
	assert.False(t, pm.MatchAny(patterns, "comments.create"))
	assert.False(t, pm.MatchAny(nil, "posts.list"))
}

func TestPermissionFor(t *testing.T) {
	assert.Equal(t, "posts.listTrashed", PermissionFor("posts", CapabilityListTrashed))
	assert.Equal(t, "blogs.create", PermissionFor("blogs", CapabilityCreate))
}

func TestStaticResolver(t *testing.T) {
	resolver := testResolver()
	ctx := t.Context()

	role, ok := resolver.RoleSlug(ctx, adminActor)
	assert.True(t, ok)
	assert.Equal(t, "admin", role)

	_, ok = resolver.RoleSlug(ctx, Actor{ID: "stranger"})
	assert.False(t, ok)

	perms := resolver.Permissions(ctx, memberActor)
	assert.Contains(t, perms, "posts.list")
	assert.Empty(t, resolver.Permissions(ctx, Anonymous))
}
