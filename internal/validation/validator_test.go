package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/validation"
)

type pricing struct {
	Rate     *float64 `json:"rate" validate:"omitempty,gte=0"`
	Discount float64  `json:"discount" validate:"gte=0,lte=100"`
	Currency string   `json:"currency" validate:"omitempty,iso4217"`
}

type book struct {
	ISBN  string `json:"isbn" validate:"required_without=Title"`
	Title string `json:"title" validate:"required_without=ISBN,max=500"`
}

type testRequest struct {
	Book    book     `json:"book"`
	Pricing pricing  `json:"pricing"`
	IDs     []string `json:"book_ids" validate:"omitempty,max=3,dive,required"`
}

func rate(v float64) *float64 { return &v }

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRequest{
		Book:    book{Title: "Dune"},
		Pricing: pricing{Rate: rate(9.99), Discount: 10, Currency: "USD"},
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       testRequest
		wantField string
	}{
		{
			name:      "neither isbn nor title",
			req:       testRequest{},
			wantField: "book.isbn",
		},
		{
			name:      "negative rate",
			req:       testRequest{Book: book{ISBN: "978-1"}, Pricing: pricing{Rate: rate(-1)}},
			wantField: "pricing.rate",
		},
		{
			name:      "discount over 100",
			req:       testRequest{Book: book{ISBN: "978-1"}, Pricing: pricing{Discount: 150}},
			wantField: "pricing.discount",
		},
		{
			name:      "unknown currency",
			req:       testRequest{Book: book{ISBN: "978-1"}, Pricing: pricing{Currency: "DOLLARS"}},
			wantField: "pricing.currency",
		},
		{
			name:      "blank id in list",
			req:       testRequest{Book: book{ISBN: "978-1"}, IDs: []string{"a", ""}},
			wantField: "book_ids[1]",
		},
		{
			name:      "too many ids",
			req:       testRequest{Book: book{ISBN: "978-1"}, IDs: []string{"a", "b", "c", "d"}},
			wantField: "book_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *errors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRequest{Book: book{ISBN: "978-1"}, Pricing: pricing{Discount: -1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing.discount")
	assert.NotContains(t, err.Error(), "Discount")
}
