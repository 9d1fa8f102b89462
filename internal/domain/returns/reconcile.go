// Package returns reconciles returns against their original documents.
//
// The quantity already returned per original line is never stored: it is summed
// from the active return revisions each time it is needed, and summed again
// inside the transaction that accepts a return.
package returns

import (
	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// DraftLine is one original line offered for return.
type DraftLine struct {
	OriginalLineID id.ID          `json:"originalLineId"`
	LineNo         int            `json:"lineNo"`
	ItemID         id.ID          `json:"itemId"`
	SoldQty        types.Quantity `json:"soldQty"`
	ReturnedQty    types.Quantity `json:"returnedQty"`
	MaxReturnQty   types.Quantity `json:"maxReturnQty"`
	SuggestedQty   types.Quantity `json:"suggestedQty"`

	// Locked pricing of the original line
	UnitPrice    types.Money `json:"unitPrice"`
	DiscountPct  types.Money `json:"discountPct"`
	DiscountAmt  types.Money `json:"discountAmt"`
	TaxRatePct   types.Money `json:"taxRatePct"`
	TaxInclusive bool        `json:"taxInclusive"`
}

// Draft is the returnable state of an original document.
type Draft struct {
	OriginalID     id.ID          `json:"originalId"`
	OriginalNumber string         `json:"originalNumber"`
	Type           entity.DocType `json:"docType"`
	// InvoiceDiscountPct is the original invoice discount carried onto the return
	InvoiceDiscountPct types.Money `json:"invoiceDiscountPct"`
	Lines              []DraftLine `json:"lines"`
}

// Remaining returns sold minus returned per original line, never below zero.
func Remaining(original *entity.Document, returned map[id.ID]types.Quantity) map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity, len(original.Lines))
	for _, l := range original.Lines {
		rest := l.Quantity - returned[l.ID]
		if rest < 0 {
			rest = 0
		}
		out[l.ID] = rest
	}
	return out
}

// CheckRemaining rejects the first original line whose requested magnitude
// exceeds what is left to return.
func CheckRemaining(original *entity.Document, returned, requested map[id.ID]types.Quantity) error {
	remaining := Remaining(original, returned)
	for _, l := range original.Lines {
		want, ok := requested[l.ID]
		if !ok {
			continue
		}
		if want > remaining[l.ID] {
			return apperror.NewReturnExceedsRemaining(l.ID.String(), want.String(), remaining[l.ID].String())
		}
	}
	return nil
}

// Requested sums the return magnitudes of doc per original line.
func Requested(doc *entity.Document) map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity)
	for _, l := range doc.Lines {
		if l.RefLineID != nil {
			out[*l.RefLineID] += l.Quantity.Abs()
		}
	}
	return out
}

// RefundCap is what the original collected minus the refunds of its active
// returns, never below zero. exclude skips the return being amended.
func RefundCap(original *entity.Document, active []*entity.Document, exclude *id.ID) types.Money {
	refunds := make([]types.Money, 0, len(active))
	for _, r := range active {
		if exclude != nil && r.ID == *exclude {
			continue
		}
		refunds = append(refunds, r.GrandTotal.Abs())
	}
	rest := original.GrandTotal.Abs().Sub(types.SumMoney(refunds...))
	if rest.IsNegative() {
		return types.Zero()
	}
	return rest
}

// CheckRefund rejects a return whose refund exceeds the cap.
func CheckRefund(doc *entity.Document, refundCap types.Money) error {
	if doc.GrandTotal.Abs().GreaterThan(refundCap) {
		return apperror.NewBusinessRule(apperror.CodeRefundExceedsCollected,
			"Refund exceeds what the original document collected").
			WithDetail("refund", doc.GrandTotal.Abs().StringFixed(types.MoneyPlaces)).
			WithDetail("remaining", refundCap.StringFixed(types.MoneyPlaces))
	}
	return nil
}
