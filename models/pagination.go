package models

// PaginationMeta is the backend's pagination envelope metadata.
type PaginationMeta struct {
	CurrentPage int    `json:"current_page"`
	From        int    `json:"from"`
	LastPage    int    `json:"last_page"`
	Path        string `json:"path,omitempty"`
	PerPage     int    `json:"per_page"`
	To          int    `json:"to"`
	Total       int    `json:"total"`
}

// PaginationLinks holds the navigation URLs the backend includes with
// every list response.
type PaginationLinks struct {
	First string `json:"first"`
	Last  string `json:"last"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// PaginatedJobs is the envelope returned by GET /jobs.
type PaginatedJobs struct {
	Data  []JobApplication `json:"data"`
	Meta  PaginationMeta   `json:"meta"`
	Links PaginationLinks  `json:"links"`
}

// HasNext reports whether a later page exists.
func (p *PaginatedJobs) HasNext() bool {
	return p.Meta.CurrentPage < p.Meta.LastPage
}

// HasPrev reports whether an earlier page exists.
func (p *PaginatedJobs) HasPrev() bool {
	return p.Meta.CurrentPage > 1
}

// Pages enumerates page numbers for the pager control.
func (p *PaginatedJobs) Pages() []int {
	pages := make([]int, 0, p.Meta.LastPage)
	for i := 1; i <= p.Meta.LastPage; i++ {
		pages = append(pages, i)
	}
	return pages
}
