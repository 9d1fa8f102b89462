// Package memory provides an in-process implementation of every engine
// repository and of tx.Manager.
//
// Transactions are fully serialised: RunInTransaction holds the store lock for
// its whole duration and works on a private copy of the committed state, which
// replaces the committed state only when fn succeeds. Savepoints snapshot the
// transaction copy. This gives the guarantees the engine asks of a relational
// store (atomic commit, row locks, consistent aggregate reads) at the cost of
// concurrency, which is what tests and single-terminal demos need.
package memory

import (
	"context"
	"fmt"
	"sync"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain/audit"
)

var _ tx.Manager = (*Store)(nil)

type ledgerKey struct {
	docType string
	docID   id.ID
}

type state struct {
	docs      map[id.ID]*entity.Document
	movements []entity.StockMovement
	payments  []entity.Payment
	ledger    map[ledgerKey]*entity.LedgerEntry
	audit     []audit.Entry
	sequences map[string]int64
}

func newState() *state {
	return &state{
		docs:      make(map[id.ID]*entity.Document),
		ledger:    make(map[ledgerKey]*entity.LedgerEntry),
		sequences: make(map[string]int64),
	}
}

// clone copies the state deeply enough that writes to the copy never reach the original.
func (st *state) clone() *state {
	out := &state{
		docs:      make(map[id.ID]*entity.Document, len(st.docs)),
		movements: append([]entity.StockMovement(nil), st.movements...),
		payments:  append([]entity.Payment(nil), st.payments...),
		ledger:    make(map[ledgerKey]*entity.LedgerEntry, len(st.ledger)),
		audit:     append([]audit.Entry(nil), st.audit...),
		sequences: make(map[string]int64, len(st.sequences)),
	}
	for k, d := range st.docs {
		out.docs[k] = cloneDoc(d)
	}
	for k, e := range st.ledger {
		out.ledger[k] = cloneEntry(e)
	}
	for k, v := range st.sequences {
		out.sequences[k] = v
	}
	return out
}

// Store is the in-memory database.
type Store struct {
	mu        sync.Mutex
	committed *state

	faultMu     sync.Mutex
	ledgerFault error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{committed: newState()}
}

type txKey struct{}

type txState struct {
	st *state
}

func txFrom(ctx context.Context) (*txState, bool) {
	t, ok := ctx.Value(txKey{}).(*txState)
	return t, ok
}

// RunInTransaction implements tx.Manager. Nested calls reuse the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txState{st: s.committed.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	s.committed = t.st
	return nil
}

// RunInSavepoint implements tx.Manager.
func (s *Store) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t, ok := txFrom(ctx)
	if !ok {
		return fmt.Errorf("savepoint requires an active transaction")
	}

	snapshot := t.st.clone()
	if err := fn(ctx); err != nil {
		t.st = snapshot
		return err
	}
	return nil
}

// read runs fn against the transaction state, or the committed state under the lock.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := txFrom(ctx); ok {
		return fn(t.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.committed)
}

// write runs fn inside the transaction of ctx or an implicit one.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		t, _ := txFrom(ctx)
		return fn(t.st)
	})
}

// SetLedgerFault makes every ledger insert fail with err until cleared with nil.
func (s *Store) SetLedgerFault(err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.ledgerFault = err
}

func (s *Store) currentLedgerFault() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.ledgerFault
}

// Documents returns the document repository.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{store: s} }

// Stock returns the stock register repository.
func (s *Store) Stock() *StockRepo { return &StockRepo{store: s} }

// Payments returns the payment repository.
func (s *Store) Payments() *PaymentRepo { return &PaymentRepo{store: s} }

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{store: s} }

// Audit returns the revision trail repository.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{store: s} }

// Numerator returns the number generator.
func (s *Store) Numerator() *Numerator { return &Numerator{store: s} }

func cloneIDPtr(p *id.ID) *id.ID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDoc(d *entity.Document) *entity.Document {
	if d == nil {
		return nil
	}
	out := *d
	out.RevisedFromID = cloneIDPtr(d.RevisedFromID)
	out.RevisedToID = cloneIDPtr(d.RevisedToID)
	out.RefDocumentID = cloneIDPtr(d.RefDocumentID)
	out.Lines = cloneLines(d.Lines)
	return &out
}

func cloneLines(lines []entity.Line) []entity.Line {
	out := make([]entity.Line, len(lines))
	for i, l := range lines {
		out[i] = l
		out[i].RefLineID = cloneIDPtr(l.RefLineID)
	}
	return out
}

func cloneEntry(e *entity.LedgerEntry) *entity.LedgerEntry {
	out := *e
	out.Lines = append([]entity.LedgerLine(nil), e.Lines...)
	return &out
}
