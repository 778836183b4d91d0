package store

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Default and maximum page sizes.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 500
)

// Validate fills defaults and clamps the limit.
func (p *Page) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	TotalBooks  int  `json:"total_books"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
	From        int  `json:"from"`
	To          int  `json:"to"`
}

// Paginate computes Pagination for a validated page over total rows.
func Paginate(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	to := min(p.Offset()+p.Limit, total)
	from := p.Offset() + 1
	if to < from {
		from, to = 0, 0
	}
	return Pagination{
		TotalBooks:  total,
		CurrentPage: p.Page,
		TotalPages:  pages,
		HasNextPage: p.Page < pages,
		HasPrevPage: p.Page > 1,
		From:        from,
		To:          to,
	}
}
