package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MatchKind classifies an incoming book against the catalog.
type MatchKind string

// Match kinds.
const (
	MatchNew                    MatchKind = "NEW"
	MatchDuplicate              MatchKind = "DUPLICATE"
	MatchDuplicateWithConflicts MatchKind = "DUPLICATE_WITH_CONFLICTS"
	MatchAuthorConflict         MatchKind = "AUTHOR_CONFLICT"
	MatchConflict               MatchKind = "CONFLICT"
)

// IsConflict reports whether the kind is one of the conflict variants.
func (k MatchKind) IsConflict() bool {
	switch k {
	case MatchDuplicateWithConflicts, MatchAuthorConflict, MatchConflict:
		return true
	}
	return false
}

// MatchedBy names the lookup that located the existing book.
type MatchedBy string

// Lookup keys, in precedence order.
const (
	MatchedByISBN      MatchedBy = "isbn"
	MatchedByOtherCode MatchedBy = "other_code"
	MatchedByTitle     MatchedBy = "title"
)

// FieldChange is the old and new value of one conflicting field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ConflictField is one entry of ConflictFields. A nil Change marks a field
// that was compared and found equal.
type ConflictField struct {
	Field  string
	Change *FieldChange
}

// ConflictFields is an ordered field -> change map. It encodes as a JSON
// object with keys in insertion order.
type ConflictFields []ConflictField

// Add appends a field entry.
func (c *ConflictFields) Add(field string, change *FieldChange) {
	*c = append(*c, ConflictField{Field: field, Change: change})
}

// Get returns the entry for field.
func (c ConflictFields) Get(field string) (*FieldChange, bool) {
	for _, f := range c {
		if f.Field == field {
			return f.Change, true
		}
	}
	return nil, false
}

// Fields returns the field names in order.
func (c ConflictFields) Fields() []string {
	out := make([]string, len(c))
	for i, f := range c {
		out[i] = f.Field
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (c ConflictFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Change)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (c *ConflictFields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("conflict fields: expected object, got %v", tok)
	}
	out := ConflictFields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("conflict fields: expected key, got %v", tok)
		}
		var change *FieldChange
		if err := dec.Decode(&change); err != nil {
			return fmt.Errorf("conflict fields: %s: %w", key, err)
		}
		out.Add(key, change)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// MatchOutcome is the result of resolving a book against the catalog.
// ExistingBook is nil only for MatchNew.
type MatchOutcome struct {
	Kind           MatchKind      `json:"kind"`
	ExistingBook   *Book          `json:"existing_book,omitempty"`
	MatchedBy      MatchedBy      `json:"matched_by,omitempty"`
	ConflictFields ConflictFields `json:"conflict_fields,omitempty"`
}

// PricingKind classifies incoming pricing against the book's stored pricing
// for the same source.
type PricingKind string

// Pricing kinds.
const (
	PricingNew       PricingKind = "NEW"
	PricingDuplicate PricingKind = "DUPLICATE"
	PricingConflict  PricingKind = "CONFLICT"
)

// PricingDifference is one differing pricing field.
type PricingDifference struct {
	Field    string `json:"field"`
	Existing any    `json:"existing"`
	New      any    `json:"new"`
}

// PricingOutcome is the result of resolving pricing for a matched book.
type PricingOutcome struct {
	Kind            PricingKind         `json:"kind"`
	ExistingPricing *Pricing            `json:"existing_pricing,omitempty"`
	Differences     []PricingDifference `json:"differences,omitempty"`
}

// Action is what reconciliation does with one record.
type Action string

// Actions.
const (
	ActionInsertBookAndPricing Action = "INSERT_BOOK_AND_PRICING"
	ActionAddPricing           Action = "ADD_PRICING"
	ActionUpdateBookAndPricing Action = "UPDATE_BOOK_AND_PRICING"
	ActionUpdatePricingOnly    Action = "UPDATE_PRICING_ONLY"
	ActionSkip                 Action = "SKIP"
	ActionFlagConflict         Action = "FLAG_CONFLICT"
)

// Mutates reports whether the action writes to the catalog.
func (a Action) Mutates() bool {
	return a != ActionSkip && a != ActionFlagConflict
}

// Policy carries the caller's reconciliation flags.
//
// UpdateExisting switches conflicts from flagged to applied. SkipDuplicates
// and SkipConflicts only keep rows out of the pending-review list; they never
// change classification.
type Policy struct {
	SkipDuplicates bool `json:"skip_duplicates"`
	SkipConflicts  bool `json:"skip_conflicts"`
	UpdateExisting bool `json:"update_existing"`
}

// DefaultPolicy flags everything and writes nothing over existing data.
func DefaultPolicy() Policy {
	return Policy{SkipDuplicates: true, SkipConflicts: true}
}
