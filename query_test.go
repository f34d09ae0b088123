package restkit

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPlan(t *testing.T, slug, rawQuery string) *QueryPlan {
	t.Helper()
	reg := testRegistry()
	d, err := reg.Lookup(slug)
	require.NoError(t, err)
	params, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	return NewComposer(reg).Build(d, params)
}

func TestComposerFilters(t *testing.T) {
	plan := buildPlan(t, "posts", "filter[title]=A,B&filter[blog_id]=7")

	require.Len(t, plan.Filters, 2)
	byColumn := map[string][]string{}
	for _, f := range plan.Filters {
		byColumn[f.Column] = f.Values
	}
	assert.Equal(t, []string{"A", "B"}, byColumn["title"])
	assert.Equal(t, []string{"7"}, byColumn["blog_id"])
}

func TestComposerFilterWhitelist(t *testing.T) {
	plan := buildPlan(t, "posts", "filter[secret]=x&filter[title]=A")

	require.Len(t, plan.Filters, 1)
	assert.Equal(t, "title", plan.Filters[0].Column)
	assert.Contains(t, plan.Dropped, "filter[secret]")
}

func TestComposerSortOrderedTieBreaks(t *testing.T) {
	plan := buildPlan(t, "posts", "sort=-created_at,title")

	require.Len(t, plan.Sort, 2)
	assert.Equal(t, SortKey{Column: "created_at", Desc: true}, plan.Sort[0])
	assert.Equal(t, SortKey{Column: "title"}, plan.Sort[1])
}

func TestComposerSortWhitelistAndDefault(t *testing.T) {
	// Unknown sort columns are dropped silently; with none surviving, the
	// descriptor default applies.
	plan := buildPlan(t, "posts", "sort=secret")
	require.Len(t, plan.Sort, 1)
	assert.Equal(t, SortKey{Column: "created_at", Desc: true}, plan.Sort[0])

	// No sort at all also falls back to the default.
	plan = buildPlan(t, "posts", "")
	require.Len(t, plan.Sort, 1)
	assert.Equal(t, "created_at", plan.Sort[0].Column)

	// Entities without a default get natural order.
	plan = buildPlan(t, "comments", "")
	assert.Empty(t, plan.Sort)
}

func TestComposerFieldsIntersection(t *testing.T) {
	plan := buildPlan(t, "posts", "fields[posts]=title,secret")

	assert.Equal(t, []string{"id", "title"}, plan.Fields)
	assert.Contains(t, plan.Dropped, "fields:secret")
}

func TestComposerFieldsWrongSlugIgnored(t *testing.T) {
	plan := buildPlan(t, "posts", "fields[comments]=body")
	assert.Nil(t, plan.Fields)
}

func TestComposerFieldsWithoutWhitelistIgnored(t *testing.T) {
	// blogs declares no selectable whitelist, so fields[] is a no-op.
	plan := buildPlan(t, "blogs", "fields[blogs]=title")
	assert.Nil(t, plan.Fields)
}

func TestComposerSearch(t *testing.T) {
	plan := buildPlan(t, "posts", "search=needle")
	assert.Equal(t, "needle", plan.Search)

	// profiles declares no search columns; the term is dropped.
	plan = buildPlan(t, "profiles", "search=needle")
	assert.Empty(t, plan.Search)
}

func TestComposerIncludes(t *testing.T) {
	plan := buildPlan(t, "posts", "include=comments.user,blog")

	require.Len(t, plan.Includes, 2)
	assert.Equal(t, "comments.user", plan.Includes[0].Path)
	assert.Equal(t, []string{"comments", "user"}, plan.Includes[0].Segments)
	assert.Empty(t, plan.Includes[0].Aggregate)
	assert.Equal(t, []string{"blog"}, plan.Includes[1].Segments)
}

func TestComposerIncludeAggregate(t *testing.T) {
	plan := buildPlan(t, "posts", "include=comments.count")

	require.Len(t, plan.Includes, 1)
	assert.Equal(t, "comments.count", plan.Includes[0].Path)
	assert.Equal(t, []string{"comments"}, plan.Includes[0].Segments)
	assert.Equal(t, AggregateCount, plan.Includes[0].Aggregate)

	plan = buildPlan(t, "posts", "include=comments.exists")
	require.Len(t, plan.Includes, 1)
	assert.Equal(t, AggregateExists, plan.Includes[0].Aggregate)
}

func TestComposerUnknownIncludeIgnored(t *testing.T) {
	plan := buildPlan(t, "posts", "include=likes,comments")

	require.Len(t, plan.Includes, 1)
	assert.Equal(t, "comments", plan.Includes[0].Path)
	assert.Contains(t, plan.Dropped, "likes")
}

func TestComposerPageParams(t *testing.T) {
	plan := buildPlan(t, "posts", "page=3&per_page=10")
	assert.Equal(t, 3, plan.Page)
	assert.Equal(t, 10, plan.PerPage)
	assert.True(t, plan.PerPageSet)
}

func TestComposerPerPageZeroIsRecorded(t *testing.T) {
	plan := buildPlan(t, "posts", "per_page=0")
	assert.Zero(t, plan.PerPage)
	assert.True(t, plan.PerPageSet)

	plan = buildPlan(t, "posts", "")
	assert.False(t, plan.PerPageSet)
}

func TestComposerUnknownTokensNeverError(t *testing.T) {
	plan := buildPlan(t, "posts", "bogus=1&filter[nope]=2&sort=nope&include=nope")
	assert.Empty(t, plan.Filters)
	assert.Empty(t, plan.Includes)
	// Default sort still applies.
	require.Len(t, plan.Sort, 1)
}
