// Package app assembles the engine services over a storage backend.
package app

import (
	"context"
	"time"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/documents"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/returns"
	"retailpos/internal/domain/revision"
	"retailpos/internal/domain/stockguard"
	"retailpos/internal/infrastructure/storage/memory"
)

// Storage is the set of repositories one backend provides.
type Storage struct {
	TxManager tx.Manager
	Documents domain.DocumentRepository
	Payments  domain.PaymentRepository
	Stock     stockguard.Repository
	Ledger    posting.Repository
	Audit     audit.Repository
	Numbers   numerator.Generator
	Catalog   catalog.Store
}

// Engine holds the wired services.
type Engine struct {
	Storage   Storage
	Stock     *stockguard.Guard
	Posting   *posting.Service
	Trail     *audit.Trail
	Revisions *revision.Manager
	Returns   *returns.Service
	Documents *documents.Service
}

// New wires the engine over st.
func New(st Storage, accounts posting.Accounts) *Engine {
	guard := stockguard.NewGuard(st.Stock)
	postingService := posting.NewService(posting.NewGuard(st.Ledger, st.TxManager), st.TxManager, st.Documents, st.Payments, accounts)
	trail := audit.NewTrail(st.Audit)
	revisions := revision.NewManager(st.TxManager, st.Documents, st.Payments, guard, postingService, trail)

	return &Engine{
		Storage:   st,
		Stock:     guard,
		Posting:   postingService,
		Trail:     trail,
		Revisions: revisions,
		Returns:   returns.NewService(st.TxManager, st.Documents, st.Payments, st.Numbers, guard, postingService, revisions),
		Documents: documents.NewService(st.TxManager, st.Documents, st.Payments, st.Numbers, guard, postingService, trail),
	}
}

// MemoryStorage exposes an in-memory store as Storage.
func MemoryStorage(s *memory.Store, c *memory.Catalog) Storage {
	return Storage{
		TxManager: s,
		Documents: s.Documents(),
		Payments:  s.Payments(),
		Stock:     s.Stock(),
		Ledger:    s.Ledger(),
		Audit:     s.Audit(),
		Numbers:   s.Numerator(),
		Catalog:   c,
	}
}

// NewMemory wires the engine over a fresh in-memory store.
func NewMemory(accounts posting.Accounts) (*Engine, *memory.Store, *memory.Catalog) {
	s := memory.NewStore()
	c := memory.NewCatalog()
	return New(MemoryStorage(s, c), accounts), s, c
}

// SeedOpening records an opening balance for a cell.
func (e *Engine) SeedOpening(ctx context.Context, locationID, itemID id.ID, qty types.Quantity) error {
	rec := stockguard.Recorder{DocumentID: id.New(), LedgerType: string(entity.ReasonOpening), Period: time.Now().UTC()}
	return e.Storage.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := e.Stock.Apply(ctx, rec, entity.ReasonOpening, []stockguard.Delta{{ItemID: itemID, LocationID: locationID, Quantity: qty}})
		return err
	})
}

// OnHand returns the current on-hand of a cell.
func (e *Engine) OnHand(ctx context.Context, locationID, itemID id.ID) (types.Quantity, error) {
	return e.Stock.OnHand(ctx, itemID, locationID)
}
