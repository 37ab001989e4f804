package shared

import "math"

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PageRequest is a normalised page/per-page pair.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest clamps page and perPage to sane bounds.
func NewPageRequest(page, perPage int) PageRequest {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset returns the row offset of the page.
func (p PageRequest) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Limit returns the page size, defaulting when unset.
func (p PageRequest) Limit() int {
	if p.PerPage <= 0 {
		return defaultPerPage
	}
	return p.PerPage
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	req := NewPageRequest(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(req.PerPage)))
	return Pagination{Page: req.Page, PerPage: req.PerPage, Total: total, TotalPages: totalPages}
}
