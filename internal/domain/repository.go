// Package domain provides the storage contracts shared by the engine services.
package domain

import (
	"context"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// --- Filter & Pagination ---

// ListFilter contains filtering options for document lists.
type ListFilter struct {
	// Type filters by document family; empty means both
	Type entity.DocType

	// Status filters by status; empty means any
	Status entity.Status

	// Returns: nil = any, true = returns only, false = originals only
	Returns *bool

	// HeadsOnly hides superseded revisions
	HeadsOnly bool

	// Search matches the logical invoice number
	Search string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:     50,
		HeadsOnly: true,
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Repository Interfaces ---

// DocumentRepository stores document revisions with their lines.
// Every method runs inside the transaction carried by ctx when there is one.
type DocumentRepository interface {
	// Create inserts a header and its lines.
	Create(ctx context.Context, doc *entity.Document) error

	// Update modifies header fields with optimistic locking on Version and
	// increments doc.Version on success. Lines are left untouched.
	Update(ctx context.Context, doc *entity.Document) error

	// ReplaceLines swaps the line set of a draft.
	ReplaceLines(ctx context.Context, doc *entity.Document) error

	// SetPostingStatus records the outcome of ledger posting without a version bump.
	SetPostingStatus(ctx context.Context, docID id.ID, status entity.PostingStatus) error

	// GetByID retrieves a revision with its lines.
	GetByID(ctx context.Context, docID id.ID) (*entity.Document, error)

	// GetForUpdate retrieves a revision with its lines and locks the header row
	// until the transaction ends.
	GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error)

	// ListChain returns every revision of a logical invoice ordered by revision.
	ListChain(ctx context.Context, number string) ([]*entity.Document, error)

	// ListActiveReturns returns the non-voided chain heads of returns referencing originalID.
	ListActiveReturns(ctx context.Context, originalID id.ID) ([]*entity.Document, error)

	// ReturnedQuantities sums, per original line, the absolute quantity of all
	// non-voided chain-head returns referencing originalID. A non-nil excludeDocID
	// leaves that return revision out of the sum.
	ReturnedQuantities(ctx context.Context, originalID id.ID, excludeDocID *id.ID) (map[id.ID]types.Quantity, error)

	// List retrieves document headers (without lines).
	List(ctx context.Context, filter ListFilter) (ListResult[*entity.Document], error)
}

// PaymentRepository stores tenders.
type PaymentRepository interface {
	Create(ctx context.Context, payments []entity.Payment) error
	ListByDocument(ctx context.Context, docID id.ID) ([]entity.Payment, error)
}
