// Package id provides UUIDv7 identifiers for stock items and ledger entries.
// UUIDv7 is time-ordered, so entries appended later sort after earlier ones.
package id

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
)

// ID is the identifier type shared by all ledger records.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// Sort orders ids in place by their byte representation.
// Lock acquisition relies on this order being stable across callers.
func Sort(ids []ID) {
	slices.SortFunc(ids, func(a, b ID) int {
		return bytes.Compare(a[:], b[:])
	})
}

// Unique returns ids without duplicates, preserving first occurrence order.
func Unique(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
