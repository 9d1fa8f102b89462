// Package revision amends finalized documents by appending a new linked revision.
//
// A persisted final revision is never edited. Amend builds revision n+1 from the
// head, settles the monetary delta with the operator, then in one short
// transaction re-validates the head, moves only the net stock difference,
// writes the new revision, links the predecessor forward and posts the
// difference to the ledger.
package revision

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/pricing"
	"retailpos/internal/domain/settlement"
	"retailpos/internal/domain/stockguard"
	"retailpos/pkg/logger"
)

// Header holds the header fields an amendment may change. Nil keeps the predecessor's value.
type Header struct {
	Date               *time.Time
	PartyID            *string
	Comment            *string
	InvoiceDiscountPct *types.Money
	InvoiceDiscountAmt *types.Money
}

// AmendRequest describes a new revision of a finalized document.
type AmendRequest struct {
	DocumentID id.ID
	// Version is the predecessor version the request was prepared against; 0 skips the check
	Version int
	Lines   []entity.Line
	Header  Header
}

// Result is the outcome of a committed revision.
type Result struct {
	Document   *entity.Document       `json:"document"`
	Previous   *entity.Document       `json:"previous"`
	Delta      types.Money            `json:"delta"`
	Settlement *settlement.Settlement `json:"settlement,omitempty"`
	Movements  []entity.StockMovement `json:"movements"`
	Warning    *posting.Warning       `json:"warning,omitempty"`
}

// Plan is a prepared revision waiting for its transaction.
type Plan struct {
	Prev       *entity.Document
	Next       *entity.Document
	Stock      []stockguard.Delta
	Delta      types.Money
	Settlement *settlement.Settlement

	// Recheck runs inside the transaction after the predecessor is locked.
	Recheck func(ctx context.Context, locked *entity.Document) error
}

// Manager creates and links document revisions.
type Manager struct {
	txManager tx.Manager
	docs      domain.DocumentRepository
	payments  domain.PaymentRepository
	stock     *stockguard.Guard
	posting   *posting.Service
	trail     *audit.Trail
	hooks     *domain.HookRegistry[*Result]
}

// NewManager creates a revision chain manager.
func NewManager(
	txManager tx.Manager,
	docs domain.DocumentRepository,
	payments domain.PaymentRepository,
	stock *stockguard.Guard,
	postingService *posting.Service,
	trail *audit.Trail,
) *Manager {
	return &Manager{
		txManager: txManager,
		docs:      docs,
		payments:  payments,
		stock:     stock,
		posting:   postingService,
		trail:     trail,
		hooks:     domain.NewHookRegistry[*Result](),
	}
}

// Hooks returns the registry of after-commit hooks (AfterAmend).
func (m *Manager) Hooks() *domain.HookRegistry[*Result] {
	return m.hooks
}

// NextRevision builds an unsaved successor of prev carrying lines and the
// header changes, priced from scratch.
func NextRevision(ctx context.Context, sess appctx.Session, prev *entity.Document, lines []entity.Line, h Header) (*entity.Document, error) {
	next := entity.NewDocument(prev.Type, prev.LocationID, sess.OperatorID)
	next.Number = prev.Number
	next.Status = entity.StatusFinal
	next.Revision = prev.Revision + 1
	next.RevisedFromID = &prev.ID
	next.IsReturn = prev.IsReturn
	if prev.RefDocumentID != nil {
		ref := *prev.RefDocumentID
		next.RefDocumentID = &ref
	}
	next.CounterID = sess.CounterID
	next.Date = prev.Date
	next.PartyID = prev.PartyID
	next.Comment = prev.Comment
	next.InvoiceDiscountPct = prev.InvoiceDiscountPct
	next.InvoiceDiscountAmt = prev.InvoiceDiscountAmt

	if h.Date != nil {
		next.Date = *h.Date
	}
	if h.PartyID != nil {
		next.PartyID = *h.PartyID
	}
	if h.Comment != nil {
		next.Comment = *h.Comment
	}
	if h.InvoiceDiscountPct != nil {
		next.InvoiceDiscountPct = *h.InvoiceDiscountPct
	}
	if h.InvoiceDiscountAmt != nil {
		next.InvoiceDiscountAmt = *h.InvoiceDiscountAmt
	}

	next.Lines = make([]entity.Line, len(lines))
	copy(next.Lines, lines)
	for i := range next.Lines {
		// lines of a revision are new rows
		next.Lines[i].ID = id.New()
	}
	next.Renumber()

	if err := pricing.Recompute(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Amend creates the next revision of a finalized sale or purchase.
//
// Sales may not drop below their current total; that is what returns are for.
// Purchases may move either way. The delta is settled exactly through capture
// before the transaction opens.
func (m *Manager) Amend(ctx context.Context, sess appctx.Session, req AmendRequest, capture settlement.Capture) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	prev, err := m.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != prev.Version {
		return nil, apperror.NewConcurrentModification("document", prev.ID.String())
	}
	if prev.IsReturn {
		return nil, apperror.NewInvalidTransition(string(ActionAmend), "return").
			WithDetail("hint", "amend returns through the return service")
	}

	active, err := m.docs.ListActiveReturns(ctx, prev.ID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	if err := Require(prev, len(active) > 0, ActionAmend); err != nil {
		return nil, err
	}

	next, err := NextRevision(ctx, sess, prev, req.Lines, req.Header)
	if err != nil {
		return nil, err
	}

	delta := next.GrandTotal.Sub(prev.GrandTotal)
	if prev.Type == entity.DocTypeSale && delta.IsNegative() {
		return nil, apperror.NewBusinessRule(apperror.CodeAmendmentBelowOriginal,
			"Amendment would lower the sale total; use a return instead").
			WithDetail("original_total", prev.GrandTotal.StringFixed(types.MoneyPlaces)).
			WithDetail("new_total", next.GrandTotal.StringFixed(types.MoneyPlaces))
	}

	plan := &Plan{
		Prev:  prev,
		Next:  next,
		Stock: stockguard.Diff(stockguard.DocumentDeltas(prev), stockguard.DocumentDeltas(next)),
		Delta: delta,
		Recheck: func(ctx context.Context, locked *entity.Document) error {
			active, err := m.docs.ListActiveReturns(ctx, locked.ID)
			if err != nil {
				return fmt.Errorf("list returns: %w", err)
			}
			if len(active) > 0 {
				return apperror.NewConcurrentModification("document", locked.ID.String()).
					WithDetail("reason", "a return was accepted meanwhile")
			}
			return nil
		},
	}

	if err := m.Prepare(ctx, plan, capture); err != nil {
		return nil, err
	}
	return m.Commit(ctx, sess, plan)
}

// Prepare fails fast on stock the plan cannot get and then settles its delta.
// Nothing is written; Commit re-checks stock under lock.
func (m *Manager) Prepare(ctx context.Context, plan *Plan, capture settlement.Capture) error {
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return m.stock.EnsureNoNegative(ctx, plan.Stock)
	})
	if err != nil {
		return err
	}

	s, err := settlement.Settle(ctx, capture, settlement.Request{
		DocumentNumber: plan.Next.Number,
		Amount:         plan.Delta,
		Mode:           settlement.ModeExact,
	})
	if err != nil {
		return err
	}
	plan.Settlement = s
	return nil
}

// Commit persists a settled plan atomically.
func (m *Manager) Commit(ctx context.Context, sess appctx.Session, plan *Plan) (*Result, error) {
	result := &Result{Document: plan.Next, Delta: plan.Delta, Settlement: plan.Settlement}

	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := m.docs.GetForUpdate(ctx, plan.Prev.ID)
		if err != nil {
			return err
		}
		if !locked.IsActiveHead() || locked.Status != entity.StatusFinal || locked.Version != plan.Prev.Version {
			return apperror.NewConcurrentModification("document", locked.ID.String()).
				WithDetail("reason", "document was amended or voided meanwhile")
		}
		if err := pricing.Verify(locked); err != nil {
			return err
		}
		if plan.Recheck != nil {
			if err := plan.Recheck(ctx, locked); err != nil {
				return err
			}
		}

		movements, err := m.stock.Apply(ctx, stockguard.RecorderOf(plan.Next), entity.ReasonRevision, plan.Stock)
		if err != nil {
			return err
		}
		result.Movements = movements

		if err := m.docs.Create(ctx, plan.Next); err != nil {
			return fmt.Errorf("create revision: %w", err)
		}

		if err := m.trail.Record(ctx, audit.ActionAmend, locked, sess.OperatorID); err != nil {
			return err
		}

		locked.RevisedToID = &plan.Next.ID
		locked.UpdatedAt = time.Now().UTC()
		locked.UpdatedBy = sess.OperatorID
		if err := m.docs.Update(ctx, locked); err != nil {
			return fmt.Errorf("link predecessor: %w", err)
		}
		result.Previous = locked

		if err := m.payments.Create(ctx, plan.Settlement.Payments(plan.Next.ID, entity.PaymentSettlement)); err != nil {
			return fmt.Errorf("create payments: %w", err)
		}

		warning, err := m.posting.PostDocument(ctx, plan.Next, locked)
		if err != nil {
			return err
		}
		result.Warning = warning
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "revision created",
		"document_id", plan.Next.ID,
		"number", plan.Next.Number,
		"revision", plan.Next.Revision,
		"revised_from", plan.Prev.ID,
		"delta", plan.Delta.StringFixed(types.MoneyPlaces),
		"operator_id", sess.OperatorID,
	)

	if err := m.hooks.Run(ctx, domain.AfterAmend, result); err != nil {
		logger.Warn(ctx, "after amend hook failed", "document_id", plan.Next.ID, "error", err)
	}
	return result, nil
}

// Chain lists every revision of a logical invoice, oldest first.
func (m *Manager) Chain(ctx context.Context, number string) ([]*entity.Document, error) {
	chain, err := m.docs.ListChain(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, apperror.NewNotFound("document chain", number)
	}
	return chain, nil
}

// Head returns the current head of a logical invoice (possibly voided).
func (m *Manager) Head(ctx context.Context, number string) (*entity.Document, error) {
	chain, err := m.Chain(ctx, number)
	if err != nil {
		return nil, err
	}
	for _, d := range chain {
		if d.IsHead() {
			return d, nil
		}
	}
	return nil, apperror.NewInternal(fmt.Errorf("chain %s has no head", number))
}

// Actions returns CanTransition for a stored document.
func (m *Manager) Actions(ctx context.Context, docID id.ID) ([]Action, error) {
	doc, err := m.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	active, err := m.docs.ListActiveReturns(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return CanTransition(doc, len(active) > 0), nil
}
