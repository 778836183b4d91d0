package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookApply_OnlySuppliedFields(t *testing.T) {
	b := &Book{ID: "book-1", BookFields: BookFields{
		ISBN:          "978-1",
		Title:         "Foo",
		Author:        "Bar",
		Year:          IntPtr(2020),
		PublisherName: "P",
		Tags:          []string{"old"},
	}}

	b.Apply(BookFields{Author: "Baz", Year: IntPtr(2021)})

	assert.Equal(t, "978-1", b.ISBN)
	assert.Equal(t, "Foo", b.Title)
	assert.Equal(t, "Baz", b.Author)
	assert.Equal(t, 2021, *b.Year)
	assert.Equal(t, "P", b.PublisherName)
	assert.Equal(t, []string{"old"}, b.Tags)
}

func TestBookFields_Identifiable(t *testing.T) {
	assert.False(t, BookFields{}.Identifiable())
	assert.False(t, BookFields{Author: "Someone", Title: "  "}.Identifiable())
	assert.True(t, BookFields{Title: "Foo"}.Identifiable())
	assert.True(t, BookFields{ISBN: "978-1"}.Identifiable())
}

func TestBookFields_Empty(t *testing.T) {
	assert.True(t, BookFields{}.Empty())
	assert.False(t, BookFields{Remarks: "x"}.Empty())
	assert.False(t, BookFields{Year: IntPtr(1999)}.Empty())
}

func TestMatchKind_IsConflict(t *testing.T) {
	assert.False(t, MatchNew.IsConflict())
	assert.False(t, MatchDuplicate.IsConflict())
	assert.True(t, MatchDuplicateWithConflicts.IsConflict())
	assert.True(t, MatchAuthorConflict.IsConflict())
	assert.True(t, MatchConflict.IsConflict())
}

func TestConflictFields_JSONKeepsOrder(t *testing.T) {
	var cf ConflictFields
	cf.Add("title", &FieldChange{Old: "Foo", New: "Qux"})
	cf.Add("author", nil)

	data, err := json.Marshal(cf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":{"old":"Foo","new":"Qux"},"author":null}`, string(data))
	assert.Equal(t, `{"title":{"old":"Foo","new":"Qux"},"author":null}`, string(data))

	var back ConflictFields
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"title", "author"}, back.Fields())
	change, ok := back.Get("author")
	assert.True(t, ok)
	assert.Nil(t, change)
}

func TestSummarizePricing(t *testing.T) {
	prices := []*Pricing{
		{PricingFields: PricingFields{Source: "a", Rate: FloatPtr(10), Discount: 5}},
		{PricingFields: PricingFields{Source: "b", Rate: FloatPtr(30), Discount: 15}},
		{PricingFields: PricingFields{Source: "c", Rate: nil, Discount: 10}},
	}

	stats := SummarizePricing(prices)
	assert.Equal(t, 3, stats.TotalSources)
	assert.InDelta(t, 20.0, stats.AverageRate, 1e-9)
	assert.InDelta(t, 10.0, stats.MinRate, 1e-9)
	assert.InDelta(t, 30.0, stats.MaxRate, 1e-9)
	assert.InDelta(t, 10.0, stats.AverageDiscount, 1e-9)

	assert.Equal(t, PricingStats{}, SummarizePricing(nil))
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.SkipDuplicates)
	assert.True(t, p.SkipConflicts)
	assert.False(t, p.UpdateExisting)
}
