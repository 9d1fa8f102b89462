// Package pricing computes line and invoice amounts.
//
// All functions are pure. Monetary values are banked (rounded to 2 decimals, half
// away from zero) once per line and once more after the invoice-level adjustment;
// unrounded intermediates are never reused after banking.
package pricing

import (
	"github.com/shopspring/decimal"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/types"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// LineInput holds the raw, caller-supplied inputs of a line.
type LineInput struct {
	Quantity     types.Quantity
	UnitPrice    types.Money
	DiscountPct  types.Money
	DiscountAmt  types.Money // per unit
	TaxRatePct   types.Money
	TaxInclusive bool
}

// LineResult holds the derived amounts of a line. Signs follow Quantity.
type LineResult struct {
	UnitNet   types.Money
	LineNet   types.Money
	LineTax   types.Money
	LineTotal types.Money
}

// UnitDiscount returns the per-unit discount. When both fields are set the
// absolute amount wins and the percentage is ignored.
func (in LineInput) UnitDiscount() types.Money {
	if !in.DiscountAmt.IsZero() {
		return in.DiscountAmt
	}
	if in.DiscountPct.IsZero() {
		return decimal.Zero
	}
	return in.UnitPrice.Mul(in.DiscountPct).Div(hundred)
}

// CalcLine computes unit net, line net, line tax and line total.
//
// Exclusive tax is added on top of the discounted price. Inclusive prices already
// contain tax: the banked gross is split into net and tax, so net + tax equals the
// total exactly in both modes.
func CalcLine(in LineInput) LineResult {
	effective := in.UnitPrice.Sub(in.UnitDiscount())
	qty := in.Quantity.Decimal()
	rate := in.TaxRatePct.Div(hundred)

	if in.TaxInclusive {
		divisor := one.Add(rate)
		total := types.Round(qty.Mul(effective))
		net := types.Round(total.Div(divisor))
		return LineResult{
			UnitNet:   types.Round(effective.Div(divisor)),
			LineNet:   net,
			LineTax:   total.Sub(net),
			LineTotal: total,
		}
	}

	net := types.Round(qty.Mul(effective))
	tax := types.Round(net.Mul(rate))
	return LineResult{
		UnitNet:   types.Round(effective),
		LineNet:   net,
		LineTax:   tax,
		LineTotal: net.Add(tax),
	}
}

// InvoiceDiscount is the invoice-level discount: a percentage or an absolute
// amount, never both.
type InvoiceDiscount struct {
	Pct    types.Money
	Amount types.Money
}

// IsZero reports whether no invoice discount applies.
func (d InvoiceDiscount) IsZero() bool {
	return d.Pct.IsZero() && d.Amount.IsZero()
}

// Totals is the document-level summary after the invoice discount.
type Totals struct {
	SubTotal      types.Money // sum of line nets before the invoice discount
	DiscountTotal types.Money // SubTotal - NetTotal
	NetTotal      types.Money
	TaxTotal      types.Money
	GrandTotal    types.Money
}

// Factor derives the proportional factor (base - discount) / base for a base net.
// Returns 1 for a zero base. Works on magnitudes, so return documents with
// negative bases get the same factor as their originals.
func (d InvoiceDiscount) Factor(base types.Money) (decimal.Decimal, error) {
	if !d.Pct.IsZero() && !d.Amount.IsZero() {
		return decimal.Zero, apperror.NewValidation("invoice discount percentage and amount are mutually exclusive").
			WithDetail("field", "invoiceDiscount")
	}
	if d.Pct.IsNegative() || d.Pct.GreaterThan(hundred) {
		return decimal.Zero, apperror.NewValidation("invoice discount percentage must be between 0 and 100").
			WithDetail("field", "invoiceDiscountPct")
	}
	if d.Amount.IsNegative() {
		return decimal.Zero, apperror.NewValidation("invoice discount amount must not be negative").
			WithDetail("field", "invoiceDiscountAmt")
	}

	magnitude := base.Abs()
	if magnitude.IsZero() {
		return one, nil
	}
	if !d.Pct.IsZero() {
		return one.Sub(d.Pct.Div(hundred)), nil
	}
	if d.Amount.GreaterThan(magnitude) {
		return decimal.Zero, apperror.NewValidation("invoice discount exceeds base amount").
			WithDetail("field", "invoiceDiscountAmt").
			WithDetail("base", magnitude.StringFixed(types.MoneyPlaces)).
			WithDetail("discount", d.Amount.StringFixed(types.MoneyPlaces))
	}
	return magnitude.Sub(d.Amount).Div(magnitude), nil
}

// ApplyInvoiceDiscount distributes the invoice discount proportionally.
//
// Every line's adjusted net is round(lineNet * factor); its adjusted tax re-applies
// the line's own tax-to-net ratio to the adjusted net, so the effective rate of
// tax-inclusive lines does not drift. Zero-net lines contribute zero.
func ApplyInvoiceDiscount(lines []LineResult, disc InvoiceDiscount) ([]LineResult, Totals, error) {
	base := decimal.Zero
	for _, l := range lines {
		base = base.Add(l.LineNet)
	}

	factor, err := disc.Factor(base)
	if err != nil {
		return nil, Totals{}, err
	}

	adjusted := make([]LineResult, len(lines))
	totals := Totals{SubTotal: base, NetTotal: decimal.Zero, TaxTotal: decimal.Zero}
	for i, l := range lines {
		adj := LineResult{UnitNet: l.UnitNet, LineNet: decimal.Zero, LineTax: decimal.Zero}
		if !l.LineNet.IsZero() {
			adj.LineNet = types.Round(l.LineNet.Mul(factor))
			adj.LineTax = types.Round(adj.LineNet.Mul(l.LineTax).Div(l.LineNet))
		}
		adj.LineTotal = adj.LineNet.Add(adj.LineTax)
		adjusted[i] = adj

		totals.NetTotal = totals.NetTotal.Add(adj.LineNet)
		totals.TaxTotal = totals.TaxTotal.Add(adj.LineTax)
	}
	totals.DiscountTotal = totals.SubTotal.Sub(totals.NetTotal)
	totals.GrandTotal = totals.NetTotal.Add(totals.TaxTotal)

	return adjusted, totals, nil
}
