package posting

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/tx"
	"retailpos/internal/domain"
	"retailpos/pkg/logger"
)

// CodeLedgerPostingFailed marks a document saved without its ledger entry.
const CodeLedgerPostingFailed = "LEDGER_POSTING_FAILED"

// Warning is returned alongside a successful save whose ledger posting failed.
// The document carries posting_status=failed and can be re-posted manually.
type Warning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	DocumentID id.ID  `json:"documentId"`
	LedgerType string `json:"ledgerType"`
	Cause      string `json:"cause,omitempty"`
}

// VoidSuffix is appended to the ledger type of void reversals.
const VoidSuffix = "_void"

// Service applies the posting rules through the Guard.
type Service struct {
	guard     *Guard
	txManager tx.Manager
	docs      domain.DocumentRepository
	payments  domain.PaymentRepository
	accounts  Accounts
}

// NewService creates a posting service.
func NewService(
	guard *Guard,
	txManager tx.Manager,
	docs domain.DocumentRepository,
	payments domain.PaymentRepository,
	accounts Accounts,
) *Service {
	return &Service{
		guard:     guard,
		txManager: txManager,
		docs:      docs,
		payments:  payments,
		accounts:  accounts,
	}
}

// Accounts returns the chart the service books against.
func (s *Service) Accounts() Accounts {
	return s.accounts
}

// PostDocument books a finalized revision. For a revision (prev != nil) only the
// difference to the predecessor's totals is booked.
//
// Must be called inside the transaction that saved doc. The posting runs in a
// savepoint: on failure its writes are rolled back, the document is flagged
// posting_status=failed and a Warning is returned instead of an error. An error
// is returned only when the flag itself cannot be written.
func (s *Service) PostDocument(ctx context.Context, doc, prev *entity.Document) (*Warning, error) {
	payments, err := s.payments.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	amounts := TotalsOf(doc)
	if prev != nil {
		amounts = amounts.Sub(TotalsOf(prev))
	}
	amounts = amounts.WithPayments(payments, entity.PaymentSettlement)

	return s.post(ctx, doc, doc.LedgerType(), amounts)
}

// PostVoid books the reversal of a voided chain head: the negated head totals
// and the void refunds.
func (s *Service) PostVoid(ctx context.Context, doc *entity.Document) (*Warning, error) {
	payments, err := s.payments.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	amounts := TotalsOf(doc).Neg().WithPayments(payments, entity.PaymentVoid)
	return s.post(ctx, doc, doc.LedgerType()+VoidSuffix, amounts)
}

func (s *Service) post(ctx context.Context, doc *entity.Document, ledgerType string, amounts Amounts) (*Warning, error) {
	var posted bool
	err := s.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
		var err error
		posted, err = s.guard.PostOnce(ctx, ledgerType, doc.ID, func(ctx context.Context) (*entity.LedgerEntry, error) {
			entry := &entity.LedgerEntry{
				ID:       id.New(),
				Number:   doc.Number,
				PostedAt: time.Now().UTC(),
				PostedBy: doc.UpdatedBy,
			}
			entry.Lines = s.accounts.Lines(doc.Type, amounts, entry.ID)
			return entry, nil
		})
		return err
	})
	if err != nil {
		logger.Warn(ctx, "ledger posting failed",
			"document_id", doc.ID,
			"number", doc.Number,
			"ledger_type", ledgerType,
			"error", err,
		)
		if flagErr := s.docs.SetPostingStatus(ctx, doc.ID, entity.PostingFailed); flagErr != nil {
			return nil, fmt.Errorf("flag posting failure: %w", flagErr)
		}
		doc.PostingStatus = entity.PostingFailed
		return &Warning{
			Code:       CodeLedgerPostingFailed,
			Message:    "Document saved but ledger posting failed; re-post required",
			DocumentID: doc.ID,
			LedgerType: ledgerType,
			Cause:      err.Error(),
		}, nil
	}

	if err := s.docs.SetPostingStatus(ctx, doc.ID, entity.PostingPosted); err != nil {
		return nil, fmt.Errorf("set posting status: %w", err)
	}
	doc.PostingStatus = entity.PostingPosted

	if posted {
		logger.Info(ctx, "ledger posted",
			"document_id", doc.ID,
			"number", doc.Number,
			"ledger_type", ledgerType,
		)
	}
	return nil, nil
}

// Repost re-runs every posting a document owes. Entries that already exist are
// left alone, so repeated calls are harmless.
func (s *Service) Repost(ctx context.Context, doc *entity.Document) (*Warning, error) {
	if doc.PostingStatus == entity.PostingNone {
		return nil, apperror.NewInvalidTransition("repost", string(doc.Status))
	}

	var prev *entity.Document
	if doc.RevisedFromID != nil {
		p, err := s.docs.GetByID(ctx, *doc.RevisedFromID)
		if err != nil {
			return nil, fmt.Errorf("load predecessor: %w", err)
		}
		prev = p
	}

	warning, err := s.PostDocument(ctx, doc, prev)
	if err != nil || warning != nil {
		return warning, err
	}
	if doc.Status == entity.StatusVoided {
		return s.PostVoid(ctx, doc)
	}
	return nil, nil
}

// Entry returns the ledger entry of a document posting.
func (s *Service) Entry(ctx context.Context, ledgerType string, docID id.ID) (*entity.LedgerEntry, error) {
	return s.guard.repo.GetByDocument(ctx, ledgerType, docID)
}
