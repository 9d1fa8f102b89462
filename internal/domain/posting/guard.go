// Package posting books finalized documents to the general ledger exactly once.
package posting

import (
	"context"
	"fmt"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/tx"
)

// Repository persists ledger entries. (doc_type, doc_id) is unique.
type Repository interface {
	// Exists reports whether an entry for the key is already stored.
	Exists(ctx context.Context, docType string, docID id.ID) (bool, error)

	// Insert stores the entry with its lines. It returns false without error when
	// an entry with the same key already exists (a concurrent post won).
	Insert(ctx context.Context, entry *entity.LedgerEntry) (bool, error)

	// GetByDocument returns the entry for the key, or a not-found AppError.
	GetByDocument(ctx context.Context, docType string, docID id.ID) (*entity.LedgerEntry, error)
}

// PostFn builds the entry to post.
type PostFn func(ctx context.Context) (*entity.LedgerEntry, error)

// Guard enforces at-most-once posting per (document type, document id).
type Guard struct {
	repo      Repository
	txManager tx.Manager
}

// NewGuard creates a posting guard.
func NewGuard(repo Repository, txManager tx.Manager) *Guard {
	return &Guard{repo: repo, txManager: txManager}
}

// PostOnce posts the entry built by postFn unless one already exists for the key.
// The check and the insert share the caller's transaction; the unique key turns a
// concurrent duplicate into a no-op. Returns true when this call posted.
func (g *Guard) PostOnce(ctx context.Context, docType string, docID id.ID, postFn PostFn) (bool, error) {
	posted := false
	err := g.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := g.repo.Exists(ctx, docType, docID)
		if err != nil {
			return fmt.Errorf("check ledger entry: %w", err)
		}
		if exists {
			return nil
		}

		entry, err := postFn(ctx)
		if err != nil {
			return err
		}
		entry.DocType = docType
		entry.DocID = docID
		if err := entry.ValidateBalanced(); err != nil {
			return err
		}

		inserted, err := g.repo.Insert(ctx, entry)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		posted = inserted
		return nil
	})
	return posted, err
}
