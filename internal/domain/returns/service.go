package returns

import (
	"context"
	"fmt"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/numerator"
	"retailpos/internal/core/tx"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/pricing"
	"retailpos/internal/domain/revision"
	"retailpos/internal/domain/settlement"
	"retailpos/internal/domain/stockguard"
	"retailpos/pkg/logger"
)

// LineRequest is one requested return line.
//
// With an invoice only OriginalLineID and Quantity are read; pricing is locked
// to the original line. Free-form lines carry their own item and pricing.
type LineRequest struct {
	OriginalLineID *id.ID
	// Quantity is the positive magnitude to return
	Quantity types.Quantity

	ItemID       id.ID
	UnitPrice    types.Money
	DiscountPct  types.Money
	DiscountAmt  types.Money
	TaxRatePct   types.Money
	TaxInclusive bool
}

// Request describes a return to accept.
type Request struct {
	// RefDocumentID is the original; nil for a free-form return
	RefDocumentID *id.ID
	// Type is read for free-form returns only
	Type    entity.DocType
	PartyID string
	Comment string
	Lines   []LineRequest
}

// AmendRequest describes a new revision of an accepted return.
type AmendRequest struct {
	ReturnID id.ID
	Version  int
	Comment  *string
	Lines    []LineRequest
}

// Result is the outcome of an accepted return.
type Result struct {
	Document   *entity.Document       `json:"document"`
	Settlement *settlement.Settlement `json:"settlement,omitempty"`
	Movements  []entity.StockMovement `json:"movements,omitempty"`
	Warning    *posting.Warning       `json:"warning,omitempty"`
}

// Service builds, validates and saves returns.
type Service struct {
	txManager tx.Manager
	docs      domain.DocumentRepository
	payments  domain.PaymentRepository
	numbers   numerator.Generator
	stock     *stockguard.Guard
	posting   *posting.Service
	revisions *revision.Manager
	hooks     *domain.HookRegistry[*Result]
}

// NewService creates a return service.
func NewService(
	txManager tx.Manager,
	docs domain.DocumentRepository,
	payments domain.PaymentRepository,
	numbers numerator.Generator,
	stock *stockguard.Guard,
	postingService *posting.Service,
	revisions *revision.Manager,
) *Service {
	return &Service{
		txManager: txManager,
		docs:      docs,
		payments:  payments,
		numbers:   numbers,
		stock:     stock,
		posting:   postingService,
		revisions: revisions,
		hooks:     domain.NewHookRegistry[*Result](),
	}
}

// Hooks returns the registry of after-commit hooks (AfterReturn).
func (s *Service) Hooks() *domain.HookRegistry[*Result] {
	return s.hooks
}

// loadOriginal returns the original a return may reference: a final, active
// chain head that is not a return itself.
func (s *Service) loadOriginal(ctx context.Context, docID id.ID) (*entity.Document, error) {
	original, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if original.IsReturn {
		return nil, apperror.NewValidation("a return cannot reference another return").
			WithDetail("ref_document_id", docID.String())
	}
	if err := revision.Require(original, false, revision.ActionReturn); err != nil {
		return nil, err
	}
	return original, nil
}

// BuildReturnDraft lists every original line with the quantity still returnable.
// The suggestion is the full remainder.
func (s *Service) BuildReturnDraft(ctx context.Context, refDocumentID id.ID) (*Draft, error) {
	original, err := s.loadOriginal(ctx, refDocumentID)
	if err != nil {
		return nil, err
	}

	returned, err := s.docs.ReturnedQuantities(ctx, original.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("returned quantities: %w", err)
	}
	remaining := Remaining(original, returned)

	draft := &Draft{
		OriginalID:         original.ID,
		OriginalNumber:     original.Number,
		Type:               original.Type,
		InvoiceDiscountPct: pricing.InheritedDiscount(original),
		Lines:              make([]DraftLine, 0, len(original.Lines)),
	}
	for _, l := range original.Lines {
		draft.Lines = append(draft.Lines, DraftLine{
			OriginalLineID: l.ID,
			LineNo:         l.LineNo,
			ItemID:         l.ItemID,
			SoldQty:        l.Quantity,
			ReturnedQty:    returned[l.ID],
			MaxReturnQty:   remaining[l.ID],
			SuggestedQty:   remaining[l.ID],
			UnitPrice:      l.UnitPrice,
			DiscountPct:    l.DiscountPct,
			DiscountAmt:    l.DiscountAmt,
			TaxRatePct:     l.TaxRatePct,
			TaxInclusive:   l.TaxInclusive,
		})
	}
	return draft, nil
}

// returnLines converts requests into negative return lines. With an original,
// pricing comes from the referenced line.
func returnLines(original *entity.Document, reqs []LineRequest) ([]entity.Line, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewValidation("return has no lines").WithDetail("field", "lines")
	}

	lines := make([]entity.Line, 0, len(reqs))
	for i, r := range reqs {
		if !r.Quantity.IsPositive() {
			return nil, apperror.NewValidation("return quantity must be positive").
				WithDetail("lineNo", i+1)
		}

		if original == nil {
			if r.OriginalLineID != nil {
				return nil, apperror.NewValidation("free-form return lines cannot reference an original line").
					WithDetail("lineNo", i+1)
			}
			lines = append(lines, entity.Line{
				ItemID:       r.ItemID,
				Quantity:     r.Quantity.Neg(),
				UnitPrice:    r.UnitPrice,
				DiscountPct:  r.DiscountPct,
				DiscountAmt:  r.DiscountAmt,
				TaxRatePct:   r.TaxRatePct,
				TaxInclusive: r.TaxInclusive,
			})
			continue
		}

		if r.OriginalLineID == nil {
			return nil, apperror.NewValidation("original line is required").
				WithDetail("lineNo", i+1)
		}
		src, ok := original.LineByID(*r.OriginalLineID)
		if !ok {
			return nil, apperror.NewValidation("line does not belong to the original document").
				WithDetail("lineNo", i+1).
				WithDetail("original_line_id", r.OriginalLineID.String())
		}
		ref := src.ID
		lines = append(lines, entity.Line{
			ItemID:       src.ItemID,
			Quantity:     r.Quantity.Neg(),
			UnitPrice:    src.UnitPrice,
			DiscountPct:  src.DiscountPct,
			DiscountAmt:  src.DiscountAmt,
			TaxRatePct:   src.TaxRatePct,
			TaxInclusive: src.TaxInclusive,
			RefLineID:    &ref,
		})
	}
	return lines, nil
}

// ValidateAndSave accepts a return. The refund is settled exactly before the
// transaction; inside it the original is locked and the returned quantities are
// summed again, so two terminals racing on one invoice cannot both pass.
// The refund is capped at what the original collected minus earlier refunds.
func (s *Service) ValidateAndSave(ctx context.Context, sess appctx.Session, req Request, capture settlement.Capture) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	var original *entity.Document
	docType := req.Type
	if req.RefDocumentID != nil {
		var err error
		if original, err = s.loadOriginal(ctx, *req.RefDocumentID); err != nil {
			return nil, err
		}
		docType = original.Type
	}

	lines, err := returnLines(original, req.Lines)
	if err != nil {
		return nil, err
	}

	doc := entity.NewDocument(docType, sess.LocationID, sess.OperatorID)
	doc.IsReturn = true
	doc.CounterID = sess.CounterID
	doc.PartyID = req.PartyID
	doc.Comment = req.Comment
	doc.Lines = lines
	if original != nil {
		doc.RefDocumentID = &original.ID
		doc.InvoiceDiscountPct = pricing.InheritedDiscount(original)
		if doc.PartyID == "" {
			doc.PartyID = original.PartyID
		}
	}
	doc.Renumber()
	if err := pricing.Recompute(ctx, doc); err != nil {
		return nil, err
	}

	requested := Requested(doc)
	if original != nil {
		returned, err := s.docs.ReturnedQuantities(ctx, original.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("returned quantities: %w", err)
		}
		if err := CheckRemaining(original, returned, requested); err != nil {
			return nil, err
		}
		if err := s.limitRefund(ctx, doc, original, nil); err != nil {
			return nil, err
		}
	}

	deltas := stockguard.DocumentDeltas(doc)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.stock.EnsureNoNegative(ctx, deltas)
	})
	if err != nil {
		return nil, err
	}

	settled, err := settlement.Settle(ctx, capture, settlement.Request{
		DocumentNumber: doc.Number,
		Amount:         doc.GrandTotal,
		Mode:           settlement.ModeExact,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Document: doc, Settlement: settled}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if original != nil {
			locked, err := s.docs.GetForUpdate(ctx, original.ID)
			if err != nil {
				return err
			}
			if !locked.IsActiveHead() || locked.Status != entity.StatusFinal {
				return apperror.NewConcurrentModification("document", original.ID.String()).
					WithDetail("reason", "original was amended or voided meanwhile")
			}
			returned, err := s.docs.ReturnedQuantities(ctx, original.ID, nil)
			if err != nil {
				return fmt.Errorf("returned quantities: %w", err)
			}
			if err := CheckRemaining(locked, returned, requested); err != nil {
				return err
			}
			if err := s.checkRefund(ctx, doc, locked, nil); err != nil {
				return err
			}
		}

		number, err := s.numbers.Next(ctx, numerator.DefaultConfig(doc.NumberPrefix()), doc.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
		doc.Status = entity.StatusFinal

		movements, err := s.stock.Apply(ctx, stockguard.RecorderOf(doc), entity.ReasonDocument, deltas)
		if err != nil {
			return err
		}
		result.Movements = movements

		if err := s.docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("create return: %w", err)
		}
		if err := s.payments.Create(ctx, settled.Payments(doc.ID, entity.PaymentSettlement)); err != nil {
			return fmt.Errorf("create payments: %w", err)
		}

		result.Warning, err = s.posting.PostDocument(ctx, doc, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return accepted",
		"document_id", doc.ID,
		"number", doc.Number,
		"ref_document_id", req.RefDocumentID,
		"refund", doc.GrandTotal.StringFixed(types.MoneyPlaces),
		"operator_id", sess.OperatorID,
	)
	if err := s.hooks.Run(ctx, domain.AfterReturn, result); err != nil {
		logger.Warn(ctx, "after return hook failed", "document_id", doc.ID, "error", err)
	}
	return result, nil
}

// Amend replaces an accepted return with its next revision. The remaining check
// excludes the return's own prior contribution, so the ceiling is
// remaining + old quantity of this return.
func (s *Service) Amend(ctx context.Context, sess appctx.Session, req AmendRequest, capture settlement.Capture) (*revision.Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	prev, err := s.docs.GetByID(ctx, req.ReturnID)
	if err != nil {
		return nil, err
	}
	if !prev.IsReturn {
		return nil, apperror.NewValidation("document is not a return").
			WithDetail("document_id", prev.ID.String())
	}
	if req.Version != 0 && req.Version != prev.Version {
		return nil, apperror.NewConcurrentModification("document", prev.ID.String())
	}
	if err := revision.Require(prev, false, revision.ActionAmend); err != nil {
		return nil, err
	}

	var original *entity.Document
	if prev.RefDocumentID != nil {
		if original, err = s.docs.GetByID(ctx, *prev.RefDocumentID); err != nil {
			return nil, err
		}
	}

	lines, err := returnLines(original, req.Lines)
	if err != nil {
		return nil, err
	}

	header := revision.Header{Comment: req.Comment}
	if original != nil {
		// re-derived from the original; a refund cap of the prior revision does not carry over
		inherited, zero := pricing.InheritedDiscount(original), types.Zero()
		header.InvoiceDiscountPct = &inherited
		header.InvoiceDiscountAmt = &zero
	}
	next, err := revision.NextRevision(ctx, sess, prev, lines, header)
	if err != nil {
		return nil, err
	}
	requested := Requested(next)

	if original != nil {
		returned, err := s.docs.ReturnedQuantities(ctx, original.ID, &prev.ID)
		if err != nil {
			return nil, fmt.Errorf("returned quantities: %w", err)
		}
		if err := CheckRemaining(original, returned, requested); err != nil {
			return nil, err
		}
		if err := s.limitRefund(ctx, next, original, &prev.ID); err != nil {
			return nil, err
		}
	}

	plan := &revision.Plan{
		Prev:  prev,
		Next:  next,
		Stock: stockguard.Diff(stockguard.DocumentDeltas(prev), stockguard.DocumentDeltas(next)),
		Delta: next.GrandTotal.Sub(prev.GrandTotal),
		Recheck: func(ctx context.Context, _ *entity.Document) error {
			if prev.RefDocumentID == nil {
				return nil
			}
			// locked like in ValidateAndSave
			locked, err := s.docs.GetForUpdate(ctx, *prev.RefDocumentID)
			if err != nil {
				return err
			}
			if !locked.IsActiveHead() || locked.Status != entity.StatusFinal {
				return apperror.NewConcurrentModification("document", locked.ID.String()).
					WithDetail("reason", "original was amended or voided meanwhile")
			}
			returned, err := s.docs.ReturnedQuantities(ctx, locked.ID, &prev.ID)
			if err != nil {
				return fmt.Errorf("returned quantities: %w", err)
			}
			if err := CheckRemaining(locked, returned, requested); err != nil {
				return err
			}
			return s.checkRefund(ctx, next, locked, &prev.ID)
		},
	}

	if err := s.revisions.Prepare(ctx, plan, capture); err != nil {
		return nil, err
	}
	result, err := s.revisions.Commit(ctx, sess, plan)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return amended",
		"document_id", next.ID,
		"number", next.Number,
		"revision", next.Revision,
		"operator_id", sess.OperatorID,
	)
	return result, nil
}

// limitRefund caps the refund of doc at what original collected and its other
// active returns have not yet given back.
func (s *Service) limitRefund(ctx context.Context, doc, original *entity.Document, exclude *id.ID) error {
	active, err := s.docs.ListActiveReturns(ctx, original.ID)
	if err != nil {
		return fmt.Errorf("active returns: %w", err)
	}
	return pricing.CapGrandTotal(ctx, doc, RefundCap(original, active, exclude))
}

// checkRefund repeats the refund cap inside the transaction holding the original.
func (s *Service) checkRefund(ctx context.Context, doc, original *entity.Document, exclude *id.ID) error {
	active, err := s.docs.ListActiveReturns(ctx, original.ID)
	if err != nil {
		return fmt.Errorf("active returns: %w", err)
	}
	return CheckRefund(doc, RefundCap(original, active, exclude))
}

// ActiveReturns lists the live returns referencing an original.
func (s *Service) ActiveReturns(ctx context.Context, originalID id.ID) ([]*entity.Document, error) {
	return s.docs.ListActiveReturns(ctx, originalID)
}
