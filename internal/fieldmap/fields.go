// Package fieldmap translates spreadsheet column labels into canonical
// catalog fields.
package fieldmap

import "slices"

// Field is a canonical record field name.
type Field string

// Book fields.
const (
	FieldISBN           Field = "isbn"
	FieldNonISBN        Field = "nonisbn"
	FieldOtherCode      Field = "other_code"
	FieldTitle          Field = "title"
	FieldAuthor         Field = "author"
	FieldEdition        Field = "edition"
	FieldYear           Field = "year"
	FieldPublisherID    Field = "publisher_id"
	FieldPublisherName  Field = "publisher_name"
	FieldBindingType    Field = "binding_type"
	FieldClassification Field = "classification"
	FieldRemarks        Field = "remarks"
	FieldTags           Field = "tags"
)

// Pricing fields.
const (
	FieldRate     Field = "rate"
	FieldCurrency Field = "currency"
	FieldDiscount Field = "discount"
	FieldSource   Field = "source"
)

var (
	bookFields = []Field{
		FieldISBN, FieldNonISBN, FieldOtherCode, FieldTitle, FieldAuthor,
		FieldEdition, FieldYear, FieldPublisherID, FieldPublisherName,
		FieldBindingType, FieldClassification, FieldRemarks, FieldTags,
	}
	pricingFields = []Field{FieldRate, FieldCurrency, FieldDiscount, FieldSource}

	requiredBookFields    = []Field{FieldTitle, FieldAuthor}
	requiredPricingFields = []Field{FieldRate, FieldCurrency}
)

// IsPricing reports whether the field belongs to a pricing record.
func (f Field) IsPricing() bool {
	return slices.Contains(pricingFields, f)
}

// IsBook reports whether the field belongs to a book record.
func (f Field) IsBook() bool {
	return slices.Contains(bookFields, f)
}

// Known reports whether f is a canonical field.
func (f Field) Known() bool {
	return f.IsBook() || f.IsPricing()
}

// BookFields returns the canonical book fields.
func BookFields() []Field { return slices.Clone(bookFields) }

// PricingFields returns the canonical pricing fields.
func PricingFields() []Field { return slices.Clone(pricingFields) }
