// Package id provides UUIDv7 generation for documents, lines and movements.
// UUIDv7 is time-ordered, so revisions and movements sort by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
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

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// Ptr returns a pointer to a copy of id. Nil IDs map to a nil pointer.
func Ptr(id ID) *ID {
	if IsNil(id) {
		return nil
	}
	return &id
}

// Deref returns the pointed-to ID or Nil.
func Deref(p *ID) ID {
	if p == nil {
		return uuid.Nil
	}
	return *p
}
