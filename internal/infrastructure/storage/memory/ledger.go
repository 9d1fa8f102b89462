package memory

import (
	"context"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/posting"
)

var _ posting.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements posting.Repository.
type LedgerRepo struct {
	store *Store
}

func (r *LedgerRepo) Exists(ctx context.Context, docType string, docID id.ID) (bool, error) {
	var exists bool
	err := r.store.read(ctx, func(st *state) error {
		_, exists = st.ledger[ledgerKey{docType: docType, docID: docID}]
		return nil
	})
	return exists, err
}

func (r *LedgerRepo) Insert(ctx context.Context, entry *entity.LedgerEntry) (bool, error) {
	if err := r.store.currentLedgerFault(); err != nil {
		return false, err
	}

	inserted := false
	err := r.store.write(ctx, func(st *state) error {
		key := ledgerKey{docType: entry.DocType, docID: entry.DocID}
		if _, ok := st.ledger[key]; ok {
			return nil
		}
		st.ledger[key] = cloneEntry(entry)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *LedgerRepo) GetByDocument(ctx context.Context, docType string, docID id.ID) (*entity.LedgerEntry, error) {
	var out *entity.LedgerEntry
	err := r.store.read(ctx, func(st *state) error {
		e, ok := st.ledger[ledgerKey{docType: docType, docID: docID}]
		if !ok {
			return apperror.NewNotFound("ledger entry", docType+"/"+docID.String())
		}
		out = cloneEntry(e)
		return nil
	})
	return out, err
}

// Count returns the number of stored entries.
func (r *LedgerRepo) Count(ctx context.Context) int {
	n := 0
	_ = r.store.read(ctx, func(st *state) error {
		n = len(st.ledger)
		return nil
	})
	return n
}
