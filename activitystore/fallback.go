package activitystore

import (
	"errors"
	"fmt"
	"strings"
)

// FallbackMessageSuffix marks envelopes whose data came from the fallback table.
const FallbackMessageSuffix = "(from fallback data after error)"

// FallbackTable is a read-only lookup of literal activity records keyed by slug and by id.
// It is only consulted for single-entity lookups when the backend failed.
type FallbackTable struct {
	bySlug map[string]ActivityWithDetails
	byID   map[string]string
}

// NewFallbackTable validates the records and stores deep copies of them.
// Every record needs a non-empty, unique id and slug.
func NewFallbackTable(records ...ActivityWithDetails) (FallbackTable, error) {
	table := FallbackTable{
		bySlug: make(map[string]ActivityWithDetails, len(records)),
		byID:   make(map[string]string, len(records)),
	}

	for i, record := range records {
		if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.Slug) == "" {
			return FallbackTable{}, errors.Join(ErrInvalidFallbackRecord, fmt.Errorf("record %d has an empty id or slug", i))
		}

		if _, exists := table.bySlug[record.Slug]; exists {
			return FallbackTable{}, errors.Join(ErrInvalidFallbackRecord, fmt.Errorf("duplicate slug %q", record.Slug))
		}

		if _, exists := table.byID[record.ID]; exists {
			return FallbackTable{}, errors.Join(ErrInvalidFallbackRecord, fmt.Errorf("duplicate id %q", record.ID))
		}

		table.bySlug[record.Slug] = record.Clone()
		table.byID[record.ID] = record.Slug
	}

	return table, nil
}

// Lookup finds a record by slug first, then by id, and returns a copy of it.
func (t FallbackTable) Lookup(identifier string) (ActivityWithDetails, bool) {
	key := strings.TrimSpace(identifier)

	if record, ok := t.bySlug[key]; ok {
		return record.Clone(), true
	}

	if slug, ok := t.byID[key]; ok {
		return t.bySlug[slug].Clone(), true
	}

	return ActivityWithDetails{}, false
}

// Len returns the number of records.
func (t FallbackTable) Len() int {
	return len(t.bySlug)
}
