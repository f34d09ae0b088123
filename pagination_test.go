package restkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPerPage(t *testing.T) {
	assert.Equal(t, 1, ClampPerPage(0))
	assert.Equal(t, 1, ClampPerPage(-5))
	assert.Equal(t, 100, ClampPerPage(500))
	assert.Equal(t, 25, ClampPerPage(25))
	assert.Equal(t, 1, ClampPerPage(1))
	assert.Equal(t, 100, ClampPerPage(100))
}

func TestDecidePagingUnpagedByDefault(t *testing.T) {
	d, err := testRegistry().Lookup("posts")
	require.NoError(t, err)

	p := DecidePaging(d, &QueryPlan{})
	assert.False(t, p.Enabled)
}

func TestDecidePagingExplicitRequest(t *testing.T) {
	d, err := testRegistry().Lookup("posts")
	require.NoError(t, err)

	p := DecidePaging(d, &QueryPlan{PerPage: 10, Page: 2})
	assert.True(t, p.Enabled)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 10, p.Offset())

	// A bare page parameter also activates pagination.
	p = DecidePaging(d, &QueryPlan{Page: 3})
	assert.True(t, p.Enabled)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, MinPerPage, p.PerPage)
}

func TestDecidePagingDescriptorDefault(t *testing.T) {
	reg := NewRegistry()
	reg.DefineEntity("paged").PerPage(20)
	d, err := reg.Lookup("paged")
	require.NoError(t, err)

	p := DecidePaging(d, &QueryPlan{})
	assert.True(t, p.Enabled)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
}

func TestDecidePagingClampsRequestedSize(t *testing.T) {
	d, err := testRegistry().Lookup("posts")
	require.NoError(t, err)

	p := DecidePaging(d, &QueryPlan{PerPage: 500})
	assert.Equal(t, 100, p.PerPage)

	p = DecidePaging(d, &QueryPlan{PerPage: -1})
	assert.Equal(t, 1, p.PerPage)
}

func TestDecidePagingExplicitZeroPerPage(t *testing.T) {
	d, err := testRegistry().Lookup("posts")
	require.NoError(t, err)

	// An explicit per_page=0 is a pagination request with an out-of-range
	// size: it activates and clamps to the minimum.
	p := DecidePaging(d, &QueryPlan{PerPage: 0, PerPageSet: true})
	assert.True(t, p.Enabled)
	assert.Equal(t, MinPerPage, p.PerPage)
	assert.Equal(t, 1, p.Page)

	// The explicit zero never falls back to a descriptor default size.
	reg := NewRegistry()
	reg.DefineEntity("paged").PerPage(20)
	paged, err := reg.Lookup("paged")
	require.NoError(t, err)
	p = DecidePaging(paged, &QueryPlan{PerPage: 0, PerPageSet: true})
	assert.True(t, p.Enabled)
	assert.Equal(t, MinPerPage, p.PerPage)
}

func TestPagingMeta(t *testing.T) {
	p := Paging{Enabled: true, Page: 2, PerPage: 10}

	meta := p.Meta(35)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.CurrentPage)
	assert.Equal(t, 4, meta.LastPage)
	assert.Equal(t, 10, meta.PerPage)
	assert.Equal(t, int64(35), meta.Total)

	meta = p.Meta(0)
	assert.Equal(t, 1, meta.LastPage)

	unpaged := Paging{}
	assert.Nil(t, unpaged.Meta(35))
}
