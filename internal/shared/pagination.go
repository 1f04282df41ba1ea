package shared

const (
	// DefaultPage is used when the caller omits or underflows page.
	DefaultPage = 1
	// DefaultLimit is used when the caller omits or underflows limit.
	DefaultLimit = 10
	// MaxLimit bounds a single page; larger requests are clamped silently.
	MaxLimit = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, limit, total int) Pagination {
	page, limit = NormalizePage(page, limit)
	if total < 0 {
		total = 0
	}
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// NormalizePage applies defaults, floors and the limit ceiling.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Beyond reports whether the requested page lies past the last page.
func (p Pagination) Beyond() bool {
	return p.Page > p.Pages
}
