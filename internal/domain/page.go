package domain

import "math"

// PaginationParams carries page/limit values from the HTTP layer to the service.
// Page is 1-indexed. Limit is capped at MaxPageLimit by NewPaginationParams.
type PaginationParams struct {
	// Page is the current page number, starting at 1.
	Page int
	// Limit is the maximum number of items to return.
	Limit int
}

// Pagination defaults.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// NewPaginationParams builds a PaginationParams from optional HTTP query params.
// Nil pointers fall back to page=1, limit=DefaultPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	// Keeps Offset()+Limit within int.
	p.Page = min(p.Page, math.MaxInt/p.Limit)
	return p
}

// Offset returns the zero-based index of the first item on the page.
// Only meaningful for params built by NewPaginationParams.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) bounds of the page within a list of total
// items. Pages past the end yield an empty window, however large Page is.
func (p PaginationParams) Window(total int) (start, end int) {
	if p.Limit < 1 || p.Page < 1 || p.Page-1 > total/p.Limit {
		return total, total
	}
	start = min((p.Page-1)*p.Limit, total)
	end = min(start+p.Limit, total)
	return start, end
}
