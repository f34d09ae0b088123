package restkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(t *testing.T, slug string) *Descriptor {
	t.Helper()
	d, err := testRegistry().Lookup(slug)
	require.NoError(t, err)
	return d
}

func TestValidatorFlatRules(t *testing.T) {
	d := testDescriptor(t, "posts")

	v := ResolveValidator(d, ActionStore, Row{"title": "Hello", "content": "World"}, "")
	assert.True(t, v.Passes())

	v = ResolveValidator(d, ActionStore, Row{"title": "Hello"}, "")
	assert.False(t, v.Passes())
	assert.Contains(t, v.Errors(), "content")
}

func TestValidatorFlatRulesConcatenateBase(t *testing.T) {
	// The flat form makes title required; the base rule string|max:255
	// still applies on top.
	d := testDescriptor(t, "posts")

	v := ResolveValidator(d, ActionStore, Row{"title": 42, "content": "x"}, "")
	assert.False(t, v.Passes())
	assert.Contains(t, v.Errors(), "title")
}

func TestValidatorRoleBucketSelection(t *testing.T) {
	d := testDescriptor(t, "comments")

	// Admin bucket requires pinned as well.
	v := ResolveValidator(d, ActionStore, Row{"body": "hi"}, "admin")
	assert.False(t, v.Passes())
	assert.Contains(t, v.Errors(), "pinned")

	v = ResolveValidator(d, ActionStore, Row{"body": "hi", "pinned": true}, "admin")
	assert.True(t, v.Passes())
}

func TestValidatorWildcardBucketFallback(t *testing.T) {
	d := testDescriptor(t, "comments")

	// Unknown role falls back to the "*" bucket: only body is validated,
	// and fields outside the bucket never reach the validated result even
	// when present in the raw payload.
	payload := Row{"body": "hi", "pinned": true, "rogue": "x"}
	v := ResolveValidator(d, ActionStore, payload, "stranger")
	assert.True(t, v.Passes())

	validated := v.Validated()
	assert.Equal(t, Row{"body": "hi"}, validated)
	assert.NotContains(t, validated, "pinned")
	assert.NotContains(t, validated, "rogue")
}

func TestValidatorNoBucketValidatesNothing(t *testing.T) {
	reg := NewRegistry()
	reg.DefineEntity("bare").StoreRulesByRole(map[string]Rules{
		"admin": {"name": "required"},
	})
	d, err := reg.Lookup("bare")
	require.NoError(t, err)

	// No matching bucket and no wildcard: every field is dropped.
	v := ResolveValidator(d, ActionStore, Row{"name": "x"}, "member")
	assert.True(t, v.Passes())
	assert.Empty(t, v.Validated())
}

func TestValidatorCompoundPresenceReplacesBase(t *testing.T) {
	reg := NewRegistry()
	reg.DefineEntity("things").
		Rules(Rules{"size": "integer"}).
		StoreRulesByRole(map[string]Rules{
			// Full compound rule: replaces the integer base entirely.
			"*": {"size": "required|string"},
		})
	d, err := reg.Lookup("things")
	require.NoError(t, err)

	v := ResolveValidator(d, ActionStore, Row{"size": "large"}, "")
	assert.True(t, v.Passes())

	v = ResolveValidator(d, ActionStore, Row{"size": 4}, "")
	assert.False(t, v.Passes())
}

func TestValidatorSometimesSkipsAbsentFields(t *testing.T) {
	reg := NewRegistry()
	reg.DefineEntity("things").
		Rules(Rules{"note": "string"}).
		UpdateRulesByRole(map[string]Rules{"*": {"note": "sometimes"}})
	d, err := reg.Lookup("things")
	require.NoError(t, err)

	v := ResolveValidator(d, ActionUpdate, Row{}, "")
	assert.True(t, v.Passes())

	v = ResolveValidator(d, ActionUpdate, Row{"note": 1}, "")
	assert.False(t, v.Passes())
}

func TestValidatorRuleChecks(t *testing.T) {
	reg := NewRegistry()
	reg.DefineEntity("things").StoreRulesByRole(map[string]Rules{"*": {
		"email": "required|email",
		"count": "required|integer",
		"level": "required|in:low,high",
		"name":  "required|string|min:2|max:5",
	}})
	d, err := reg.Lookup("things")
	require.NoError(t, err)

	v := ResolveValidator(d, ActionStore, Row{
		"email": "a@example.com",
		"count": 3,
		"level": "low",
		"name":  "abc",
	}, "")
	assert.True(t, v.Passes(), "errors: %v", v.Errors())

	v = ResolveValidator(d, ActionStore, Row{
		"email": "nope",
		"count": "three",
		"level": "mid",
		"name":  "toolongname",
	}, "")
	assert.False(t, v.Passes())
	errs := v.Errors()
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "count")
	assert.Contains(t, errs, "level")
	assert.Contains(t, errs, "name")
}

func TestValidatorNullable(t *testing.T) {
	reg := NewRegistry()
	reg.DefineEntity("things").StoreRulesByRole(map[string]Rules{"*": {
		"note":  "nullable|string",
		"other": "string",
	}})
	d, err := reg.Lookup("things")
	require.NoError(t, err)

	v := ResolveValidator(d, ActionStore, Row{"note": nil}, "")
	assert.True(t, v.Passes())

	v = ResolveValidator(d, ActionStore, Row{"other": nil}, "")
	assert.False(t, v.Passes())
}

func TestValidatorValidatedOnlyPresentFields(t *testing.T) {
	d := testDescriptor(t, "posts")

	v := ResolveValidator(d, ActionUpdate, Row{"title": "New"}, "")
	require.True(t, v.Passes())
	assert.Equal(t, Row{"title": "New"}, v.Validated())
}
