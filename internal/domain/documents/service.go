// Package documents drives the life of a sale or purchase outside amendments:
// draft capture, finalization, voiding and manual ledger re-posting.
package documents

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
	"retailpos/internal/domain/audit"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/pricing"
	"retailpos/internal/domain/revision"
	"retailpos/internal/domain/settlement"
	"retailpos/internal/domain/stockguard"
	"retailpos/pkg/logger"
)

// Header holds the editable header fields of a document.
type Header struct {
	Date               time.Time
	PartyID            string
	Comment            string
	InvoiceDiscountPct types.Money
	InvoiceDiscountAmt types.Money
}

// CreateRequest describes a new sale or purchase.
type CreateRequest struct {
	Type   entity.DocType
	Header Header
	Lines  []entity.Line
	// Finalize saves the document as final in the same call
	Finalize bool
}

// UpdateRequest replaces the content of a draft.
type UpdateRequest struct {
	DocumentID id.ID
	Version    int
	Header     Header
	Lines      []entity.Line
}

// Result is the outcome of a document operation.
type Result struct {
	Document   *entity.Document       `json:"document"`
	Settlement *settlement.Settlement `json:"settlement,omitempty"`
	Movements  []entity.StockMovement `json:"movements,omitempty"`
	Warning    *posting.Warning       `json:"warning,omitempty"`
}

// Service provides document lifecycle operations.
type Service struct {
	txManager tx.Manager
	docs      domain.DocumentRepository
	payments  domain.PaymentRepository
	numbers   numerator.Generator
	stock     *stockguard.Guard
	posting   *posting.Service
	trail     *audit.Trail
	hooks     *domain.HookRegistry[*Result]
}

// NewService creates a document service.
func NewService(
	txManager tx.Manager,
	docs domain.DocumentRepository,
	payments domain.PaymentRepository,
	numbers numerator.Generator,
	stock *stockguard.Guard,
	postingService *posting.Service,
	trail *audit.Trail,
) *Service {
	return &Service{
		txManager: txManager,
		docs:      docs,
		payments:  payments,
		numbers:   numbers,
		stock:     stock,
		posting:   postingService,
		trail:     trail,
		hooks:     domain.NewHookRegistry[*Result](),
	}
}

// Hooks returns the registry of after-commit hooks (AfterFinalize, AfterVoid, AfterRepost).
func (s *Service) Hooks() *domain.HookRegistry[*Result] {
	return s.hooks
}

func applyHeader(doc *entity.Document, h Header) {
	if !h.Date.IsZero() {
		doc.Date = h.Date
	}
	doc.PartyID = h.PartyID
	doc.Comment = h.Comment
	doc.InvoiceDiscountPct = h.InvoiceDiscountPct
	doc.InvoiceDiscountAmt = h.InvoiceDiscountAmt
}

// Create saves a new document as draft, or finalizes it right away.
func (s *Service) Create(ctx context.Context, sess appctx.Session, req CreateRequest, capture settlement.Capture) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	doc := entity.NewDocument(req.Type, sess.LocationID, sess.OperatorID)
	doc.CounterID = sess.CounterID
	applyHeader(doc, req.Header)
	doc.Lines = append([]entity.Line(nil), req.Lines...)
	doc.Renumber()

	if err := pricing.Recompute(ctx, doc); err != nil {
		return nil, err
	}

	if req.Finalize {
		return s.finalize(ctx, sess, doc, false, capture)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.docs.Create(ctx, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	logger.Info(ctx, "draft created", "document_id", doc.ID, "type", doc.Type, "operator_id", sess.OperatorID)
	return &Result{Document: doc}, nil
}

// UpdateDraft replaces header and lines of a draft. Drafts never touch stock or ledger.
func (s *Service) UpdateDraft(ctx context.Context, sess appctx.Session, req UpdateRequest) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	var doc *entity.Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.docs.GetForUpdate(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		if err := revision.Require(doc, false, revision.ActionEdit); err != nil {
			return err
		}
		if req.Version != 0 && req.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}

		applyHeader(doc, req.Header)
		doc.Lines = append([]entity.Line(nil), req.Lines...)
		for i := range doc.Lines {
			doc.Lines[i].ID = id.Nil()
		}
		doc.Renumber()
		if err := pricing.Recompute(ctx, doc); err != nil {
			return err
		}

		doc.UpdatedAt = time.Now().UTC()
		doc.UpdatedBy = sess.OperatorID
		if err := s.docs.Update(ctx, doc); err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		return s.docs.ReplaceLines(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Document: doc}, nil
}

// Finalize turns a stored draft into a final document.
func (s *Service) Finalize(ctx context.Context, sess appctx.Session, docID id.ID, capture settlement.Capture) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := revision.Require(doc, false, revision.ActionFinalize); err != nil {
		return nil, err
	}
	if err := pricing.Recompute(ctx, doc); err != nil {
		return nil, err
	}
	return s.finalize(ctx, sess, doc, true, capture)
}

// finalize collects full payment (change allowed), then numbers, stocks, saves and posts doc
// in one transaction.
func (s *Service) finalize(ctx context.Context, sess appctx.Session, doc *entity.Document, stored bool, capture settlement.Capture) (*Result, error) {
	deltas := stockguard.DocumentDeltas(doc)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.stock.EnsureNoNegative(ctx, deltas)
	})
	if err != nil {
		return nil, err
	}

	settled, err := settlement.Settle(ctx, capture, settlement.Request{
		DocumentNumber: doc.Number,
		Amount:         doc.GrandTotal,
		Mode:           settlement.ModeFullPayment,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Document: doc, Settlement: settled}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if stored {
			locked, err := s.docs.GetForUpdate(ctx, doc.ID)
			if err != nil {
				return err
			}
			if locked.Status != entity.StatusDraft || locked.Version != doc.Version {
				return apperror.NewConcurrentModification("document", doc.ID.String())
			}
			if err := pricing.Verify(locked); err != nil {
				return err
			}
		}

		number, err := s.numbers.Next(ctx, numerator.DefaultConfig(doc.NumberPrefix()), doc.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
		doc.Status = entity.StatusFinal
		doc.UpdatedAt = time.Now().UTC()
		doc.UpdatedBy = sess.OperatorID

		movements, err := s.stock.Apply(ctx, stockguard.RecorderOf(doc), entity.ReasonDocument, deltas)
		if err != nil {
			return err
		}
		result.Movements = movements

		if stored {
			if err := s.docs.Update(ctx, doc); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
			if err := s.docs.ReplaceLines(ctx, doc); err != nil {
				return fmt.Errorf("save lines: %w", err)
			}
		} else if err := s.docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		if err := s.payments.Create(ctx, settled.Payments(doc.ID, entity.PaymentSettlement)); err != nil {
			return fmt.Errorf("create payments: %w", err)
		}

		result.Warning, err = s.posting.PostDocument(ctx, doc, nil)
		return err
	})
	if err != nil {
		if stored {
			doc.Status = entity.StatusDraft
		}
		return nil, err
	}

	logger.Info(ctx, "document finalized",
		"document_id", doc.ID,
		"number", doc.Number,
		"grand_total", doc.GrandTotal.StringFixed(types.MoneyPlaces),
		"operator_id", sess.OperatorID,
	)
	if err := s.hooks.Run(ctx, domain.AfterFinalize, result); err != nil {
		logger.Warn(ctx, "after finalize hook failed", "document_id", doc.ID, "error", err)
	}
	return result, nil
}

// Void closes a document. A draft is voided without side effects. A final chain
// head has its stock effect reversed under the guard, its total refunded exactly
// and a reversing ledger entry posted; the logical invoice stays closed.
func (s *Service) Void(ctx context.Context, sess appctx.Session, docID id.ID, capture settlement.Capture) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	active, err := s.docs.ListActiveReturns(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	if err := revision.Require(doc, len(active) > 0, revision.ActionVoid); err != nil {
		return nil, err
	}

	if doc.Status == entity.StatusDraft {
		return s.voidDraft(ctx, sess, doc)
	}

	deltas := stockguard.Invert(stockguard.DocumentDeltas(doc))
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.stock.EnsureNoNegative(ctx, deltas)
	})
	if err != nil {
		return nil, err
	}

	settled, err := settlement.Settle(ctx, capture, settlement.Request{
		DocumentNumber: doc.Number,
		Amount:         doc.GrandTotal.Neg(),
		Mode:           settlement.ModeExact,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Settlement: settled}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.docs.GetForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if !locked.IsActiveHead() || locked.Status != entity.StatusFinal || locked.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		if !locked.IsReturn {
			active, err := s.docs.ListActiveReturns(ctx, locked.ID)
			if err != nil {
				return fmt.Errorf("list returns: %w", err)
			}
			if len(active) > 0 {
				return apperror.NewConcurrentModification("document", doc.ID.String()).
					WithDetail("reason", "a return was accepted meanwhile")
			}
		}

		movements, err := s.stock.Apply(ctx, stockguard.RecorderOf(locked), entity.ReasonVoid, deltas)
		if err != nil {
			return err
		}
		result.Movements = movements

		if err := s.trail.Record(ctx, audit.ActionVoid, locked, sess.OperatorID); err != nil {
			return err
		}

		locked.Status = entity.StatusVoided
		locked.UpdatedAt = time.Now().UTC()
		locked.UpdatedBy = sess.OperatorID
		if err := s.docs.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		if err := s.payments.Create(ctx, settled.Payments(locked.ID, entity.PaymentVoid)); err != nil {
			return fmt.Errorf("create payments: %w", err)
		}

		result.Document = locked
		result.Warning, err = s.posting.PostVoid(ctx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document voided",
		"document_id", doc.ID,
		"number", doc.Number,
		"revision", doc.Revision,
		"operator_id", sess.OperatorID,
	)
	if err := s.hooks.Run(ctx, domain.AfterVoid, result); err != nil {
		logger.Warn(ctx, "after void hook failed", "document_id", doc.ID, "error", err)
	}
	return result, nil
}

func (s *Service) voidDraft(ctx context.Context, sess appctx.Session, doc *entity.Document) (*Result, error) {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.docs.GetForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if locked.Status != entity.StatusDraft || locked.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		locked.Status = entity.StatusVoided
		locked.UpdatedAt = time.Now().UTC()
		locked.UpdatedBy = sess.OperatorID
		if err := s.docs.Update(ctx, locked); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		doc = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "draft voided", "document_id", doc.ID, "operator_id", sess.OperatorID)
	return &Result{Document: doc}, nil
}

// Repost retries the ledger postings of a document flagged posting_status=failed.
func (s *Service) Repost(ctx context.Context, sess appctx.Session, docID id.ID) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	result := &Result{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.docs.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := revision.Require(doc, false, revision.ActionRepost); err != nil {
			return err
		}
		result.Document = doc
		result.Warning, err = s.posting.Repost(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document re-posted",
		"document_id", docID,
		"posting_status", result.Document.PostingStatus,
		"operator_id", sess.OperatorID,
	)
	if err := s.hooks.Run(ctx, domain.AfterRepost, result); err != nil {
		logger.Warn(ctx, "after repost hook failed", "document_id", docID, "error", err)
	}
	return result, nil
}

// Get retrieves a document revision with its lines.
func (s *Service) Get(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return s.docs.GetByID(ctx, docID)
}

// List retrieves document headers.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Document], error) {
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultListFilter().Limit
	}
	return s.docs.List(ctx, filter)
}

// Payments lists the tenders recorded against a revision.
func (s *Service) Payments(ctx context.Context, docID id.ID) ([]entity.Payment, error) {
	return s.payments.ListByDocument(ctx, docID)
}
