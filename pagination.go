package restkit

// Page size bounds enforced on every paginated response.
const (
	MinPerPage = 1
	MaxPerPage = 100
)

// Response headers carrying pagination metadata. The body stays a flat
// array in both paged and unpaged modes.
const (
	HeaderCurrentPage = "X-Current-Page"
	HeaderLastPage    = "X-Last-Page"
	HeaderPerPage     = "X-Per-Page"
	HeaderTotal       = "X-Total"
)

// PageMeta is the pagination metadata emitted alongside a paged body.
type PageMeta struct {
	CurrentPage int
	LastPage    int
	PerPage     int
	Total       int64
}

// Paging is the pagination decision for one list request.
type Paging struct {
	Enabled bool
	Page    int
	PerPage int
}

// DecidePaging decides paged vs. flat for one request. Pagination activates
// on an explicit page/per_page parameter or a descriptor default; the
// effective size is always clamped into [MinPerPage, MaxPerPage], so an
// explicit per_page=0 still paginates at the minimum size.
func DecidePaging(d *Descriptor, plan *QueryPlan) Paging {
	p := Paging{}

	switch {
	case plan.PerPageSet || plan.PerPage != 0 || plan.Page != 0:
		p.Enabled = true
		p.PerPage = plan.PerPage
		if !plan.PerPageSet && p.PerPage == 0 {
			p.PerPage = d.perPage
		}
	case d.perPage != 0:
		p.Enabled = true
		p.PerPage = d.perPage
	default:
		return p
	}

	p.Page = plan.Page
	if p.Page < 1 {
		p.Page = 1
	}
	p.PerPage = ClampPerPage(p.PerPage)
	return p
}

// ClampPerPage clamps a requested page size into the allowed range.
func ClampPerPage(n int) int {
	if n < MinPerPage {
		return MinPerPage
	}
	if n > MaxPerPage {
		return MaxPerPage
	}
	return n
}

// Meta computes the response metadata for a total row count.
func (p Paging) Meta(total int64) *PageMeta {
	if !p.Enabled {
		return nil
	}
	last := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if last < 1 {
		last = 1
	}
	return &PageMeta{
		CurrentPage: p.Page,
		LastPage:    last,
		PerPage:     p.PerPage,
		Total:       total,
	}
}

// Offset returns the row offset for storage queries.
func (p Paging) Offset() int {
	return (p.Page - 1) * p.PerPage
}
