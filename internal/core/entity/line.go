package entity

import (
	"context"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Line is one item row of a document.
//
// Quantity is signed: positive on sales and purchases, negative on returns.
// The computed fields (UnitNet through LineTotal) are filled by the pricing engine
// and carry the same sign as Quantity.
type Line struct {
	ID         id.ID `db:"id" json:"id"`
	DocumentID id.ID `db:"document_id" json:"documentId"`
	LineNo     int   `db:"line_no" json:"lineNo"`

	ItemID   id.ID          `db:"item_id" json:"itemId"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	UnitPrice    types.Money `db:"unit_price" json:"unitPrice"`
	DiscountPct  types.Money `db:"discount_pct" json:"discountPct"`
	DiscountAmt  types.Money `db:"discount_amt" json:"discountAmt"` // per unit
	TaxRatePct   types.Money `db:"tax_rate_pct" json:"taxRatePct"`
	TaxInclusive bool        `db:"tax_inclusive" json:"taxInclusive"`

	UnitNet   types.Money `db:"unit_net" json:"unitNet"`
	LineNet   types.Money `db:"line_net" json:"lineNet"`
	LineTax   types.Money `db:"line_tax" json:"lineTax"`
	LineTotal types.Money `db:"line_total" json:"lineTotal"`

	// RefLineID points at the original line this return line reverses.
	RefLineID *id.ID `db:"ref_line_id" json:"refLineId,omitempty"`
}

// Validate checks the caller-supplied inputs of a line.
func (l *Line) Validate(_ context.Context) error {
	if id.IsNil(l.ItemID) {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}
	if l.Quantity.IsZero() {
		return apperror.NewValidation("quantity must not be zero").
			WithDetail("field", "quantity")
	}
	if l.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	if !l.DiscountPct.IsZero() && !l.DiscountAmt.IsZero() {
		return apperror.NewValidation("discount percentage and amount are mutually exclusive").
			WithDetail("field", "discount")
	}
	if l.DiscountPct.IsNegative() || l.DiscountPct.GreaterThan(hundred) {
		return apperror.NewValidation("discount percentage must be between 0 and 100").
			WithDetail("field", "discountPct")
	}
	if l.DiscountAmt.IsNegative() || l.DiscountAmt.GreaterThan(l.UnitPrice) {
		return apperror.NewValidation("discount amount must be between 0 and the unit price").
			WithDetail("field", "discountAmt")
	}
	if l.TaxRatePct.IsNegative() {
		return apperror.NewValidation("tax rate must not be negative").
			WithDetail("field", "taxRatePct")
	}
	return nil
}

// StockKey returns the register cell this line moves, given the document location.
func (l *Line) StockKey(locationID id.ID) StockKey {
	return StockKey{ItemID: l.ItemID, LocationID: locationID}
}
