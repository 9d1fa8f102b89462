package entity

import (
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Side is the debit/credit side of a ledger line.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// LedgerEntry is one posted journal entry. (DocType, DocID) is unique: a document
// revision is posted at most once.
type LedgerEntry struct {
	ID       id.ID     `db:"id" json:"id"`
	DocType  string    `db:"doc_type" json:"docType"`
	DocID    id.ID     `db:"doc_id" json:"docId"`
	Number   string    `db:"number" json:"number"`
	PostedAt time.Time `db:"posted_at" json:"postedAt"`
	PostedBy string    `db:"posted_by" json:"postedBy"`

	Lines []LedgerLine `db:"-" json:"lines"`
}

// LedgerLine is a single debit or credit. Amount is always positive.
type LedgerLine struct {
	ID      id.ID       `db:"id" json:"id"`
	EntryID id.ID       `db:"entry_id" json:"entryId"`
	Account string      `db:"account" json:"account"`
	Side    Side        `db:"side" json:"side"`
	Amount  types.Money `db:"amount" json:"amount"`
}

// ValidateBalanced checks debits equal credits and no line is zero or negative.
// An entry without lines is valid: it records that the document had nothing to book.
func (e *LedgerEntry) ValidateBalanced() error {
	debit := types.Zero()
	credit := types.Zero()
	for _, l := range e.Lines {
		if !l.Amount.IsPositive() {
			return apperror.NewValidation("ledger line amount must be positive").
				WithDetail("account", l.Account)
		}
		switch l.Side {
		case SideDebit:
			debit = debit.Add(l.Amount)
		case SideCredit:
			credit = credit.Add(l.Amount)
		default:
			return apperror.NewValidation("unknown ledger side").
				WithDetail("side", string(l.Side))
		}
	}
	if !debit.Equal(credit) {
		return apperror.NewValidation("ledger entry is not balanced").
			WithDetail("debit", debit.StringFixed(types.MoneyPlaces)).
			WithDetail("credit", credit.StringFixed(types.MoneyPlaces))
	}
	return nil
}

// PaymentKind distinguishes what a payment settles.
type PaymentKind string

const (
	PaymentSettlement PaymentKind = "settlement" // total of a new document or delta of a revision
	PaymentVoid       PaymentKind = "void"       // reversal of a voided document
)

// Payment is a tender recorded against a document revision.
//
// Amount is signed in the direction of the document total: positive settles a
// positive amount due (collected on sales, paid out on purchases), negative
// reverses one (refunds).
type Payment struct {
	ID         id.ID       `db:"id" json:"id"`
	DocumentID id.ID       `db:"document_id" json:"documentId"`
	Kind       PaymentKind `db:"kind" json:"kind"`
	Instrument string      `db:"instrument" json:"instrument"`
	Amount     types.Money `db:"amount" json:"amount"`
	Reference  string      `db:"reference" json:"reference,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}
