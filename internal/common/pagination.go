package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage bounds the page size a client may request.
const MaxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads ?page= and ?limit=. Missing or invalid values fall
// back to page 1 and defaultPerPage; limit is capped at MaxPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = positiveInt(q.Get("page"), 1)
	perPage = min(positiveInt(q.Get("limit"), defaultPerPage), MaxPerPage)
	return page, perPage
}

// Window returns the [start, end) bounds of the requested page over total items.
func (p Pagination) Window() (start, end int) {
	start = min((p.Page-1)*p.PerPage, p.TotalItems)
	end = min(start+p.PerPage, p.TotalItems)
	return start, end
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
