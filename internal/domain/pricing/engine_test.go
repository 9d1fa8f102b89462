package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

func m(s string) types.Money { return types.MustMoney(s) }

func assertMoney(t *testing.T, want string, got types.Money, label ...string) {
	t.Helper()
	assert.Truef(t, m(want).Equal(got), "%v: want %s, got %s", label, want, got.String())
}

func TestCalcLine(t *testing.T) {
	tests := []struct {
		name string
		in   LineInput
		want [4]string // unitNet, net, tax, total
	}{
		{
			name: "exclusive tax on top",
			in:   LineInput{Quantity: types.NewQuantity(10), UnitPrice: m("100"), TaxRatePct: m("10")},
			want: [4]string{"100", "1000", "100", "1100"},
		},
		{
			name: "inclusive price split into net and tax",
			in:   LineInput{Quantity: types.NewQuantity(3), UnitPrice: m("11"), TaxRatePct: m("10"), TaxInclusive: true},
			want: [4]string{"10", "30", "3", "33"},
		},
		{
			name: "inclusive with half-cent net",
			in:   LineInput{Quantity: types.NewQuantity(1), UnitPrice: m("9.99"), TaxRatePct: m("20"), TaxInclusive: true},
			want: [4]string{"8.33", "8.33", "1.66", "9.99"},
		},
		{
			name: "percentage discount",
			in:   LineInput{Quantity: types.NewQuantity(2), UnitPrice: m("50"), DiscountPct: m("10")},
			want: [4]string{"45", "90", "0", "90"},
		},
		{
			name: "absolute discount wins over percentage",
			in:   LineInput{Quantity: types.NewQuantity(2), UnitPrice: m("50"), DiscountPct: m("50"), DiscountAmt: m("5")},
			want: [4]string{"45", "90", "0", "90"},
		},
		{
			name: "negative return quantity",
			in:   LineInput{Quantity: types.NewQuantity(-3), UnitPrice: m("100"), TaxRatePct: m("10")},
			want: [4]string{"100", "-300", "-30", "-330"},
		},
		{
			name: "half away from zero",
			in:   LineInput{Quantity: types.MustQuantity("0.5"), UnitPrice: m("0.25")},
			want: [4]string{"0.25", "0.13", "0", "0.13"},
		},
		{
			name: "half away from zero negative",
			in:   LineInput{Quantity: types.MustQuantity("-0.5"), UnitPrice: m("0.25")},
			want: [4]string{"0.25", "-0.13", "0", "-0.13"},
		},
		{
			name: "zero price",
			in:   LineInput{Quantity: types.NewQuantity(4), UnitPrice: m("0"), TaxRatePct: m("10")},
			want: [4]string{"0", "0", "0", "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalcLine(tt.in)
			assertMoney(t, tt.want[0], got.UnitNet, "unitNet")
			assertMoney(t, tt.want[1], got.LineNet, "lineNet")
			assertMoney(t, tt.want[2], got.LineTax, "lineTax")
			assertMoney(t, tt.want[3], got.LineTotal, "lineTotal")
		})
	}
}

func TestCalcLine_IdempotentAndBalanced(t *testing.T) {
	prices := []string{"0.01", "0.99", "9.995", "19.99", "100", "1234.567"}
	quantities := []types.Quantity{types.MustQuantity("0.3333"), types.NewQuantity(1), types.NewQuantity(7), types.MustQuantity("-2.5")}
	rates := []string{"0", "5", "7.5", "18", "20"}

	for _, p := range prices {
		for _, q := range quantities {
			for _, r := range rates {
				for _, inclusive := range []bool{false, true} {
					in := LineInput{Quantity: q, UnitPrice: m(p), DiscountPct: m("3"), TaxRatePct: m(r), TaxInclusive: inclusive}
					first := CalcLine(in)
					second := CalcLine(in)
					assert.True(t, first.UnitNet.Equal(second.UnitNet) && first.LineNet.Equal(second.LineNet) &&
						first.LineTax.Equal(second.LineTax) && first.LineTotal.Equal(second.LineTotal))

					diff := first.LineNet.Add(first.LineTax).Sub(first.LineTotal).Abs()
					assert.True(t, diff.LessThanOrEqual(types.Cent), "net+tax != total for %s x %s @ %s%%", q, p, r)
				}
			}
		}
	}
}

func TestApplyInvoiceDiscount_PercentageScenario(t *testing.T) {
	line := CalcLine(LineInput{Quantity: types.NewQuantity(10), UnitPrice: m("100"), TaxRatePct: m("10")})
	assertMoney(t, "1100", line.LineTotal)

	adjusted, totals, err := ApplyInvoiceDiscount([]LineResult{line}, InvoiceDiscount{Pct: m("10")})
	require.NoError(t, err)
	require.Len(t, adjusted, 1)

	assertMoney(t, "900", adjusted[0].LineNet)
	assertMoney(t, "90", adjusted[0].LineTax)
	assertMoney(t, "990", adjusted[0].LineTotal)

	assertMoney(t, "1000", totals.SubTotal)
	assertMoney(t, "100", totals.DiscountTotal)
	assertMoney(t, "990", totals.GrandTotal)
}

func TestApplyInvoiceDiscount_PreservesPerLineTaxRatio(t *testing.T) {
	exclusive := CalcLine(LineInput{Quantity: types.NewQuantity(10), UnitPrice: m("100"), TaxRatePct: m("10")})
	inclusive := CalcLine(LineInput{Quantity: types.NewQuantity(1), UnitPrice: m("55"), TaxRatePct: m("10"), TaxInclusive: true})

	adjusted, totals, err := ApplyInvoiceDiscount([]LineResult{exclusive, inclusive}, InvoiceDiscount{Amount: m("105")})
	require.NoError(t, err)

	assertMoney(t, "900", adjusted[0].LineNet)
	assertMoney(t, "90", adjusted[0].LineTax)
	assertMoney(t, "45", adjusted[1].LineNet)
	assertMoney(t, "4.5", adjusted[1].LineTax)

	assertMoney(t, "1050", totals.SubTotal)
	assertMoney(t, "945", totals.NetTotal)
	assertMoney(t, "94.5", totals.TaxTotal)
	assertMoney(t, "1039.5", totals.GrandTotal)
	assertMoney(t, "105", totals.DiscountTotal)
}

func TestApplyInvoiceDiscount_ZeroBaseAndZeroNetLines(t *testing.T) {
	zero := CalcLine(LineInput{Quantity: types.NewQuantity(1), UnitPrice: m("0"), TaxRatePct: m("10")})

	adjusted, totals, err := ApplyInvoiceDiscount([]LineResult{zero}, InvoiceDiscount{Pct: m("50")})
	require.NoError(t, err)
	assertMoney(t, "0", adjusted[0].LineTax)
	assertMoney(t, "0", totals.GrandTotal)

	paid := CalcLine(LineInput{Quantity: types.NewQuantity(1), UnitPrice: m("100"), TaxRatePct: m("10")})
	adjusted, totals, err = ApplyInvoiceDiscount([]LineResult{zero, paid}, InvoiceDiscount{Amount: m("10")})
	require.NoError(t, err)
	assertMoney(t, "0", adjusted[0].LineTotal)
	assertMoney(t, "90", adjusted[1].LineNet)
	assertMoney(t, "99", totals.GrandTotal)
}

func TestApplyInvoiceDiscount_Validation(t *testing.T) {
	line := CalcLine(LineInput{Quantity: types.NewQuantity(1), UnitPrice: m("50")})

	_, _, err := ApplyInvoiceDiscount([]LineResult{line}, InvoiceDiscount{Amount: m("50.01")})
	assert.True(t, apperror.IsValidation(err))

	_, _, err = ApplyInvoiceDiscount([]LineResult{line}, InvoiceDiscount{Pct: m("5"), Amount: m("1")})
	assert.True(t, apperror.IsValidation(err))

	_, _, err = ApplyInvoiceDiscount([]LineResult{line}, InvoiceDiscount{Pct: m("101")})
	assert.True(t, apperror.IsValidation(err))
}

func TestApplyInvoiceDiscount_ReturnUsesMagnitude(t *testing.T) {
	line := CalcLine(LineInput{Quantity: types.NewQuantity(-4), UnitPrice: m("25"), TaxRatePct: m("10")})

	_, totals, err := ApplyInvoiceDiscount([]LineResult{line}, InvoiceDiscount{Amount: m("10")})
	require.NoError(t, err)
	assertMoney(t, "-90", totals.NetTotal)
	assertMoney(t, "-9", totals.TaxTotal)
	assertMoney(t, "-99", totals.GrandTotal)
}

func newDoc(lines ...entity.Line) *entity.Document {
	doc := entity.NewDocument(entity.DocTypeSale, id.New(), "op-1")
	doc.Lines = lines
	doc.Renumber()
	return doc
}

func TestRecompute_FillsDerivedFields(t *testing.T) {
	doc := newDoc(entity.Line{ItemID: id.New(), Quantity: types.NewQuantity(10), UnitPrice: m("100"), TaxRatePct: m("10")})
	doc.InvoiceDiscountPct = m("10")

	require.NoError(t, Recompute(context.Background(), doc))

	assertMoney(t, "1000", doc.Lines[0].LineNet)
	assertMoney(t, "1100", doc.Lines[0].LineTotal)
	assertMoney(t, "990", doc.GrandTotal)
	assertMoney(t, "90", doc.TaxTotal)
	require.NoError(t, Verify(doc))

	doc.Lines[0].LineTotal = m("1000")
	assert.True(t, apperror.IsValidation(Verify(doc)))
}

func TestRecompute_InvoiceDiscountBankedOnHeaderOnly(t *testing.T) {
	doc := newDoc(
		entity.Line{ItemID: id.New(), Quantity: types.NewQuantity(1), UnitPrice: m("20"), TaxRatePct: m("10")},
		entity.Line{ItemID: id.New(), Quantity: types.NewQuantity(1), UnitPrice: m("10")},
	)
	doc.InvoiceDiscountAmt = m("3")

	require.NoError(t, Recompute(context.Background(), doc))

	assertMoney(t, "20", doc.Lines[0].LineNet, "line 1 keeps its pre-discount net")
	assertMoney(t, "2", doc.Lines[0].LineTax)
	assertMoney(t, "10", doc.Lines[1].LineNet, "line 2 keeps its pre-discount net")

	adjusted, totals, err := ApplyInvoiceDiscount([]LineResult{
		CalcLine(InputOf(&doc.Lines[0])),
		CalcLine(InputOf(&doc.Lines[1])),
	}, DiscountOf(doc))
	require.NoError(t, err)
	assertMoney(t, "18", adjusted[0].LineNet)
	assertMoney(t, "1.8", adjusted[0].LineTax)
	assertMoney(t, "9", adjusted[1].LineNet)

	assertMoney(t, "30", doc.SubTotal)
	assertMoney(t, "3", doc.DiscountTotal)
	assertMoney(t, "27", doc.NetTotal)
	assertMoney(t, "1.8", doc.TaxTotal)
	assertMoney(t, "28.8", doc.GrandTotal)
	assert.True(t, totals.GrandTotal.Equal(doc.GrandTotal))
	assert.True(t, doc.NetTotal.Add(doc.TaxTotal).Equal(doc.GrandTotal))
}

func TestCapGrandTotal(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		price     string
		taxPct    string
		pct       string
		limit     string
		wantGrand string
		wantAmt   string
	}{
		{name: "within limit untouched", price: "10", taxPct: "0", pct: "3", limit: "9.70", wantGrand: "9.70", wantAmt: "0"},
		{name: "percentage becomes amount", price: "10", taxPct: "0", pct: "3", limit: "9.66", wantGrand: "9.66", wantAmt: "0.34"},
		{name: "tax follows the net", price: "100", taxPct: "10", pct: "0", limit: "100", wantGrand: "100", wantAmt: "9.09"},
		{name: "zero limit", price: "10", taxPct: "10", pct: "0", limit: "0", wantGrand: "0", wantAmt: "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDoc(entity.Line{ItemID: id.New(), Quantity: types.NewQuantity(1), UnitPrice: m(tt.price), TaxRatePct: m(tt.taxPct)})
			doc.InvoiceDiscountPct = m(tt.pct)
			require.NoError(t, Recompute(ctx, doc))

			require.NoError(t, CapGrandTotal(ctx, doc, m(tt.limit)))

			assertMoney(t, tt.wantGrand, doc.GrandTotal, "grand")
			assertMoney(t, tt.wantAmt, doc.InvoiceDiscountAmt, "amount")
			if tt.wantAmt != "0" {
				assert.True(t, doc.InvoiceDiscountPct.IsZero())
			}
			require.NoError(t, Verify(doc))
		})
	}
}

func TestRecompute_RejectsBothDiscounts(t *testing.T) {
	doc := newDoc(entity.Line{ItemID: id.New(), Quantity: types.NewQuantity(1), UnitPrice: m("10"), DiscountPct: m("5"), DiscountAmt: m("1")})

	err := Recompute(context.Background(), doc)
	assert.True(t, apperror.IsValidation(err))
}

func TestInheritedDiscount(t *testing.T) {
	doc := newDoc()
	doc.InvoiceDiscountPct = m("12.5")
	assertMoney(t, "12.5", InheritedDiscount(doc))

	doc.InvoiceDiscountPct = m("0")
	doc.InvoiceDiscountAmt = m("100")
	doc.SubTotal = m("1000")
	doc.DiscountTotal = m("100")
	assertMoney(t, "10", InheritedDiscount(doc))
}
