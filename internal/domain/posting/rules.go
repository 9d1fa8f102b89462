package posting

import (
	"sort"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Accounts is the chart of account codes the posting rules book against.
type Accounts struct {
	// Instruments maps a tender instrument (cash, card, ...) to its account
	Instruments map[string]string
	// OtherTender receives instruments missing from Instruments
	OtherTender string

	Receivable    string // customers owe us
	Payable       string // we owe suppliers
	Revenue       string
	TaxPayable    string // output tax on sales
	Inventory     string
	TaxReceivable string // input tax on purchases
}

// DefaultAccounts returns a minimal retail chart of accounts.
func DefaultAccounts() Accounts {
	return Accounts{
		Instruments: map[string]string{
			"cash": "1010",
			"card": "1020",
		},
		OtherTender:   "1090",
		Receivable:    "1200",
		Inventory:     "1300",
		TaxReceivable: "1400",
		Payable:       "2100",
		TaxPayable:    "2200",
		Revenue:       "4000",
	}
}

// InstrumentAccount resolves the account of a tender instrument.
func (a Accounts) InstrumentAccount(instrument string) string {
	if acc, ok := a.Instruments[instrument]; ok {
		return acc
	}
	return a.OtherTender
}

// Amounts is what one posting books, signed in the document direction.
type Amounts struct {
	Net   types.Money
	Tax   types.Money
	Gross types.Money
	// Paid holds settled amounts per instrument
	Paid map[string]types.Money
}

// PaidTotal sums settled amounts.
func (a Amounts) PaidTotal() types.Money {
	total := types.Zero()
	for _, v := range a.Paid {
		total = total.Add(v)
	}
	return total
}

// Neg flips every amount (reversal).
func (a Amounts) Neg() Amounts {
	paid := make(map[string]types.Money, len(a.Paid))
	for k, v := range a.Paid {
		paid[k] = v.Neg()
	}
	return Amounts{Net: a.Net.Neg(), Tax: a.Tax.Neg(), Gross: a.Gross.Neg(), Paid: paid}
}

// TotalsOf returns the document totals as Amounts without payments.
func TotalsOf(doc *entity.Document) Amounts {
	return Amounts{Net: doc.NetTotal, Tax: doc.TaxTotal, Gross: doc.GrandTotal, Paid: map[string]types.Money{}}
}

// Sub returns a - b for the totals (payments are taken from a).
func (a Amounts) Sub(b Amounts) Amounts {
	return Amounts{Net: a.Net.Sub(b.Net), Tax: a.Tax.Sub(b.Tax), Gross: a.Gross.Sub(b.Gross), Paid: a.Paid}
}

// WithPayments attaches the payments of the given kind.
func (a Amounts) WithPayments(payments []entity.Payment, kind entity.PaymentKind) Amounts {
	paid := make(map[string]types.Money)
	for _, p := range payments {
		if p.Kind != kind {
			continue
		}
		paid[p.Instrument] = paid[p.Instrument].Add(p.Amount)
	}
	a.Paid = paid
	return a
}

// Lines builds balanced ledger lines for a document family.
//
// Sale: Dr tender per instrument, Dr receivable for the unpaid rest, Cr revenue
// (net), Cr tax payable. Purchase: Dr inventory (net), Dr input tax, Cr tender
// per instrument, Cr payable for the unpaid rest. Negative amounts (returns,
// downward revisions, voids) swap sides.
func (a Accounts) Lines(family entity.DocType, amounts Amounts, entryID id.ID) []entity.LedgerLine {
	signed := make(map[string]types.Money)
	add := func(account string, v types.Money) {
		signed[account] = signed[account].Add(v)
	}

	unpaid := amounts.Gross.Sub(amounts.PaidTotal())
	switch family {
	case entity.DocTypeSale:
		for instrument, v := range amounts.Paid {
			add(a.InstrumentAccount(instrument), v)
		}
		add(a.Receivable, unpaid)
		add(a.Revenue, amounts.Net.Neg())
		add(a.TaxPayable, amounts.Tax.Neg())
	case entity.DocTypePurchase:
		add(a.Inventory, amounts.Net)
		add(a.TaxReceivable, amounts.Tax)
		for instrument, v := range amounts.Paid {
			add(a.InstrumentAccount(instrument), v.Neg())
		}
		add(a.Payable, unpaid.Neg())
	}

	accounts := make([]string, 0, len(signed))
	for acc := range signed {
		accounts = append(accounts, acc)
	}
	sort.Strings(accounts)

	lines := make([]entity.LedgerLine, 0, len(accounts))
	for _, acc := range accounts {
		v := signed[acc]
		if v.IsZero() {
			continue
		}
		side := entity.SideDebit
		if v.IsNegative() {
			side = entity.SideCredit
		}
		lines = append(lines, entity.LedgerLine{
			ID:      id.New(),
			EntryID: entryID,
			Account: acc,
			Side:    side,
			Amount:  v.Abs(),
		})
	}
	return lines
}
