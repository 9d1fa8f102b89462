package pricing

import (
	"context"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/types"
)

// InputOf extracts the pricing inputs of a document line.
func InputOf(l *entity.Line) LineInput {
	return LineInput{
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		DiscountPct:  l.DiscountPct,
		DiscountAmt:  l.DiscountAmt,
		TaxRatePct:   l.TaxRatePct,
		TaxInclusive: l.TaxInclusive,
	}
}

// DiscountOf extracts the invoice discount of a document.
func DiscountOf(doc *entity.Document) InvoiceDiscount {
	return InvoiceDiscount{Pct: doc.InvoiceDiscountPct, Amount: doc.InvoiceDiscountAmt}
}

// Recompute validates the document inputs and overwrites every derived field
// (line amounts and header totals) with a fresh computation.
func Recompute(ctx context.Context, doc *entity.Document) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	results := make([]LineResult, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		r := CalcLine(InputOf(line))
		line.UnitNet = r.UnitNet
		line.LineNet = r.LineNet
		line.LineTax = r.LineTax
		line.LineTotal = r.LineTotal
		results[i] = r
	}

	// Lines keep their pre-discount amounts; the invoice discount is banked
	// on the header totals only and is re-derived from the discount fields.
	_, totals, err := ApplyInvoiceDiscount(results, DiscountOf(doc))
	if err != nil {
		return err
	}

	doc.SubTotal = totals.SubTotal
	doc.DiscountTotal = totals.DiscountTotal
	doc.NetTotal = totals.NetTotal
	doc.TaxTotal = totals.TaxTotal
	doc.GrandTotal = totals.GrandTotal
	return nil
}

// Verify checks that the stored derived fields equal a recomputation from the
// raw inputs. A mismatch means the stored amounts were produced elsewhere.
func Verify(doc *entity.Document) error {
	results := make([]LineResult, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		r := CalcLine(InputOf(line))
		if !r.LineNet.Equal(line.LineNet) || !r.LineTax.Equal(line.LineTax) || !r.LineTotal.Equal(line.LineTotal) {
			return apperror.NewValidation("line amounts do not match recomputation").
				WithDetail("lineNo", line.LineNo).
				WithDetail("expectedTotal", r.LineTotal.StringFixed(types.MoneyPlaces)).
				WithDetail("storedTotal", line.LineTotal.StringFixed(types.MoneyPlaces))
		}
		results[i] = r
	}

	_, totals, err := ApplyInvoiceDiscount(results, DiscountOf(doc))
	if err != nil {
		return err
	}
	if !totals.GrandTotal.Equal(doc.GrandTotal) || !totals.TaxTotal.Equal(doc.TaxTotal) {
		return apperror.NewValidation("document totals do not match recomputation").
			WithDetail("expectedTotal", totals.GrandTotal.StringFixed(types.MoneyPlaces)).
			WithDetail("storedTotal", doc.GrandTotal.StringFixed(types.MoneyPlaces))
	}
	return nil
}

// InheritedDiscount expresses the invoice discount a document actually applied as
// a percentage, so returns against it refund at the same proportional rate.
func InheritedDiscount(original *entity.Document) types.Money {
	if !original.InvoiceDiscountPct.IsZero() {
		return original.InvoiceDiscountPct
	}
	if original.SubTotal.IsZero() || original.DiscountTotal.IsZero() {
		return types.Zero()
	}
	return original.DiscountTotal.Div(original.SubTotal).Mul(hundred)
}

// CapGrandTotal lowers the grand total of doc to at most limit. The invoice
// discount is turned into an amount and raised a cent at a time, so the stored
// amounts still recompute from the document's own inputs.
func CapGrandTotal(ctx context.Context, doc *entity.Document, limit types.Money) error {
	if doc.GrandTotal.Abs().LessThanOrEqual(limit) {
		return nil
	}

	base := doc.SubTotal.Abs()
	excess := doc.GrandTotal.Abs().Sub(limit)
	if net := doc.NetTotal.Abs(); !net.IsZero() {
		// net share of the excess, so tax does not overshoot the cap
		excess = excess.Mul(net).Div(doc.GrandTotal.Abs())
	}
	amount := doc.DiscountTotal.Abs().Add(excess.Truncate(types.MoneyPlaces))

	doc.InvoiceDiscountPct = types.Zero()
	for {
		if amount.GreaterThan(base) {
			amount = base
		}
		doc.InvoiceDiscountAmt = amount
		if err := Recompute(ctx, doc); err != nil {
			return err
		}
		if doc.GrandTotal.Abs().LessThanOrEqual(limit) || amount.Equal(base) {
			return nil
		}
		amount = amount.Add(types.Cent)
	}
}
