package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageValidate(t *testing.T) {
	p := Page{}
	p.Validate()
	assert.Equal(t, Page{Page: 1, Limit: DefaultPageLimit}, p)

	p = Page{Page: 3, Limit: 10_000}
	p.Validate()
	assert.Equal(t, MaxPageLimit, p.Limit)
	assert.Equal(t, 2*MaxPageLimit, p.Offset())
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name  string
		page  Page
		total int
		want  Pagination
	}{
		{
			name:  "first of three",
			page:  Page{Page: 1, Limit: 10},
			total: 25,
			want:  Pagination{TotalBooks: 25, CurrentPage: 1, TotalPages: 3, HasNextPage: true, From: 1, To: 10},
		},
		{
			name:  "last partial",
			page:  Page{Page: 3, Limit: 10},
			total: 25,
			want:  Pagination{TotalBooks: 25, CurrentPage: 3, TotalPages: 3, HasPrevPage: true, From: 21, To: 25},
		},
		{
			name:  "empty",
			page:  Page{Page: 1, Limit: 10},
			total: 0,
			want:  Pagination{CurrentPage: 1},
		},
		{
			name:  "past the end",
			page:  Page{Page: 5, Limit: 10},
			total: 12,
			want:  Pagination{TotalBooks: 12, CurrentPage: 5, TotalPages: 2, HasPrevPage: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Paginate(tt.page, tt.total))
		})
	}
}
