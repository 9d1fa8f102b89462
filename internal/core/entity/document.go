// Package entity provides the persisted shapes of the engine: documents, lines,
// stock movements, payments and ledger entries.
package entity

import (
	"context"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// DocType distinguishes the two transaction families.
type DocType string

const (
	DocTypeSale     DocType = "sale"
	DocTypePurchase DocType = "purchase"
)

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	return t == DocTypeSale || t == DocTypePurchase
}

// Status is the lifecycle state of a single document revision.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusFinal  Status = "final"
	StatusVoided Status = "voided"
)

// PostingStatus records whether the general-ledger obligation of a document is met.
type PostingStatus string

const (
	PostingNone   PostingStatus = "none"   // drafts: nothing to post yet
	PostingPosted PostingStatus = "posted" // entry exists
	PostingFailed PostingStatus = "failed" // save succeeded, bookkeeping did not; re-post pending
)

// Document is a sale or purchase header: an original, a revision or a return.
//
// Revisions of one logical invoice share Number and form a linked list through
// RevisedFromID / RevisedToID. A persisted revision is never edited in place once
// final: amending creates the next revision and only the predecessor's forward
// link is set.
type Document struct {
	BaseDocument

	Type   DocType   `db:"doc_type" json:"docType"`
	Number string    `db:"number" json:"number"`
	Date   time.Time `db:"date" json:"date"`
	Status Status    `db:"status" json:"status"`

	// Revision chain
	Revision      int    `db:"revision" json:"revision"`
	RevisedFromID *id.ID `db:"revised_from_id" json:"revisedFromId,omitempty"`
	RevisedToID   *id.ID `db:"revised_to_id" json:"revisedToId,omitempty"`

	// Returns
	IsReturn      bool   `db:"is_return" json:"isReturn"`
	RefDocumentID *id.ID `db:"ref_document_id" json:"refDocumentId,omitempty"`

	// Session the document was captured in
	LocationID id.ID  `db:"location_id" json:"locationId"`
	OperatorID string `db:"operator_id" json:"operatorId"`
	CounterID  string `db:"counter_id" json:"counterId,omitempty"`

	// PartyID is the customer (sale) or supplier (purchase) reference; optional for walk-in sales.
	PartyID string `db:"party_id" json:"partyId,omitempty"`

	// Invoice-level discount: at most one of the two is non-zero.
	InvoiceDiscountPct types.Money `db:"invoice_discount_pct" json:"invoiceDiscountPct"`
	InvoiceDiscountAmt types.Money `db:"invoice_discount_amt" json:"invoiceDiscountAmt"`

	// Totals derived by the pricing engine
	SubTotal      types.Money `db:"sub_total" json:"subTotal"`
	DiscountTotal types.Money `db:"discount_total" json:"discountTotal"`
	NetTotal      types.Money `db:"net_total" json:"netTotal"`
	TaxTotal      types.Money `db:"tax_total" json:"taxTotal"`
	GrandTotal    types.Money `db:"grand_total" json:"grandTotal"`

	PostingStatus PostingStatus `db:"posting_status" json:"postingStatus"`

	Comment string `db:"comment" json:"comment,omitempty"`

	// Table part
	Lines []Line `db:"-" json:"lines"`
}

// NewDocument creates a draft revision 1 of a new logical invoice.
func NewDocument(docType DocType, locationID id.ID, operatorID string) *Document {
	return &Document{
		BaseDocument:  NewBaseDocument(operatorID),
		Type:          docType,
		Date:          time.Now().UTC(),
		Status:        StatusDraft,
		Revision:      1,
		LocationID:    locationID,
		OperatorID:    operatorID,
		PostingStatus: PostingNone,
		Lines:         make([]Line, 0),
	}
}

// Validate implements Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if !d.Type.Valid() {
		return apperror.NewValidation("unknown document type").
			WithDetail("field", "docType").
			WithDetail("value", string(d.Type))
	}
	if id.IsNil(d.LocationID) {
		return apperror.NewValidation("location is required").
			WithDetail("field", "locationId")
	}
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	if !d.IsReturn && d.RefDocumentID != nil {
		return apperror.NewValidation("only returns may reference another document").
			WithDetail("field", "refDocumentId")
	}
	if !d.InvoiceDiscountPct.IsZero() && !d.InvoiceDiscountAmt.IsZero() {
		return apperror.NewValidation("invoice discount percentage and amount are mutually exclusive").
			WithDetail("field", "invoiceDiscount")
	}
	if d.InvoiceDiscountPct.IsNegative() || d.InvoiceDiscountPct.GreaterThan(hundred) {
		return apperror.NewValidation("invoice discount percentage must be between 0 and 100").
			WithDetail("field", "invoiceDiscountPct")
	}
	if d.InvoiceDiscountAmt.IsNegative() {
		return apperror.NewValidation("invoice discount amount must not be negative").
			WithDetail("field", "invoiceDiscountAmt")
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i := range d.Lines {
		line := &d.Lines[i]
		if err := line.Validate(ctx); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
		if d.IsReturn && line.Quantity.IsPositive() {
			return apperror.NewValidation("return lines must carry negative quantities").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.RefLineID != nil && d.RefDocumentID == nil {
			return apperror.NewValidation("line references an original line but the document has no original").
				WithDetail("field", "refLineId").
				WithDetail("lineNo", i+1)
		}
		if !d.IsReturn && line.Quantity.IsNegative() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// IsHead reports whether this revision has not been superseded.
func (d *Document) IsHead() bool {
	return d.RevisedToID == nil
}

// IsActiveHead reports whether this revision is the live version of its logical invoice.
func (d *Document) IsActiveHead() bool {
	return d.IsHead() && d.Status != StatusVoided
}

// StockSign is the direction in which a positive line quantity moves stock:
// sales issue goods (-1), purchases receive them (+1).
func (d *Document) StockSign() int64 {
	if d.Type == DocTypeSale {
		return -1
	}
	return 1
}

// StockDelta converts a signed line quantity into the on-hand change it causes.
func (d *Document) StockDelta(qty types.Quantity) types.Quantity {
	return types.Quantity(int64(qty) * d.StockSign())
}

// LedgerType is the document-type half of the ledger posting key.
func (d *Document) LedgerType() string {
	if d.IsReturn {
		return string(d.Type) + "_return"
	}
	return string(d.Type)
}

// NumberPrefix is the numerator prefix for new logical invoices of this kind.
func (d *Document) NumberPrefix() string {
	switch {
	case d.Type == DocTypeSale && d.IsReturn:
		return "SRT"
	case d.Type == DocTypeSale:
		return "SAL"
	case d.IsReturn:
		return "PRT"
	default:
		return "PUR"
	}
}

// LineByID finds a line of this document.
func (d *Document) LineByID(lineID id.ID) (*Line, bool) {
	for i := range d.Lines {
		if d.Lines[i].ID == lineID {
			return &d.Lines[i], true
		}
	}
	return nil, false
}

// Renumber assigns line numbers, document ownership and fresh line IDs where missing.
func (d *Document) Renumber() {
	for i := range d.Lines {
		d.Lines[i].LineNo = i + 1
		d.Lines[i].DocumentID = d.ID
		if id.IsNil(d.Lines[i].ID) {
			d.Lines[i].ID = id.New()
		}
	}
}

var hundred = types.MustMoney("100")
