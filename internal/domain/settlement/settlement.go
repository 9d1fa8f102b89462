// Package settlement reconciles money owed with money tendered.
//
// Capture (the payment dialog) is an interactive, cancellable call and always
// runs before the saving transaction opens. The settlement produced here is then
// persisted as payments inside that transaction.
package settlement

import (
	"context"
	"sort"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Mode selects the tender rule.
type Mode int

const (
	// ModeExact requires the tender to equal the amount due to the cent.
	// Used for amendment and return deltas.
	ModeExact Mode = iota

	// ModeFullPayment allows over-tender (the surplus is change) and tolerates
	// under-tender of at most one cent. Used when a new document is finalized.
	ModeFullPayment
)

func (m Mode) String() string {
	if m == ModeFullPayment {
		return "full_payment"
	}
	return "exact"
}

// Tender is one instrument line of the payment dialog. Amount is a positive magnitude.
type Tender struct {
	Instrument string      `json:"instrument"`
	Amount     types.Money `json:"amount"`
	Reference  string      `json:"reference,omitempty"`
}

// Request describes what the operator must tender or refund.
type Request struct {
	DocumentNumber string
	// Amount is signed: positive = collect (or pay out on purchases), negative = refund
	Amount types.Money
	Mode   Mode
}

// Direction is "collect" or "refund".
func (r Request) Direction() string {
	if r.Amount.IsNegative() {
		return "refund"
	}
	return "collect"
}

// Result is the outcome of the payment dialog.
type Result struct {
	Tenders   []Tender
	Cancelled bool
}

// Capture presents the amount to the operator and returns the confirmed split
// or a cancellation.
type Capture interface {
	Capture(ctx context.Context, req Request) (Result, error)
}

// CaptureFunc adapts a function to Capture.
type CaptureFunc func(ctx context.Context, req Request) (Result, error)

// Capture implements Capture.
func (f CaptureFunc) Capture(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Settlement is an accepted tender.
type Settlement struct {
	Required types.Money // signed amount due
	Tendered types.Money // sum of tendered magnitudes
	Change   types.Money // over-tender returned (full payment mode only)
	Applied  []Tender    // tenders net of change; their sum settles Required
}

// IsZero reports whether nothing had to be settled.
func (s *Settlement) IsZero() bool {
	return s == nil || s.Required.IsZero()
}

// Payments converts the applied tenders into payment rows signed like Required.
func (s *Settlement) Payments(docID id.ID, kind entity.PaymentKind) []entity.Payment {
	if s.IsZero() {
		return nil
	}
	now := time.Now().UTC()
	out := make([]entity.Payment, 0, len(s.Applied))
	for _, t := range s.Applied {
		if t.Amount.IsZero() {
			continue
		}
		amount := t.Amount
		if s.Required.IsNegative() {
			amount = amount.Neg()
		}
		out = append(out, entity.Payment{
			ID:         id.New(),
			DocumentID: docID,
			Kind:       kind,
			Instrument: t.Instrument,
			Amount:     amount,
			Reference:  t.Reference,
			CreatedAt:  now,
		})
	}
	return out
}

// Settle runs the capture for a non-zero amount and validates the tender.
// A zero amount settles without prompting.
func Settle(ctx context.Context, capture Capture, req Request) (*Settlement, error) {
	req.Amount = types.Round(req.Amount)
	if req.Amount.IsZero() {
		return &Settlement{Required: req.Amount, Tendered: types.Zero(), Change: types.Zero()}, nil
	}
	if capture == nil {
		return nil, apperror.NewSettlementCancelled().WithDetail("reason", "no payment capture available")
	}

	res, err := capture.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Cancelled {
		return nil, apperror.NewSettlementCancelled().
			WithDetail("required", req.Amount.StringFixed(types.MoneyPlaces))
	}

	return Validate(req, res.Tenders)
}

// Validate checks tenders against the request.
func Validate(req Request, tenders []Tender) (*Settlement, error) {
	required := req.Amount.Abs()
	tendered := types.Zero()
	for i, t := range tenders {
		if t.Instrument == "" {
			return nil, apperror.NewValidation("tender instrument is required").
				WithDetail("tender", i)
		}
		if t.Amount.IsNegative() {
			return nil, apperror.NewValidation("tender amount must not be negative").
				WithDetail("tender", i)
		}
		if !types.Round(t.Amount).Equal(t.Amount) {
			return nil, apperror.NewValidation("tender amount has sub-cent precision").
				WithDetail("tender", i)
		}
		tendered = tendered.Add(t.Amount)
	}

	mismatch := func() error {
		return apperror.NewSettlementMismatch(
			required.StringFixed(types.MoneyPlaces),
			tendered.StringFixed(types.MoneyPlaces),
		).WithDetail("mode", req.Mode.String()).
			WithDetail("direction", req.Direction())
	}

	s := &Settlement{Required: req.Amount, Tendered: tendered, Change: types.Zero()}
	switch req.Mode {
	case ModeFullPayment:
		if required.Sub(tendered).GreaterThan(types.Cent) {
			return nil, mismatch()
		}
		if tendered.GreaterThan(required) {
			s.Change = tendered.Sub(required)
		}
	default:
		if !tendered.Equal(required) {
			return nil, mismatch()
		}
	}

	s.Applied = applyChange(tenders, s.Change)
	return s, nil
}

// applyChange deducts change from cash tenders first, then from the latest tenders.
func applyChange(tenders []Tender, change types.Money) []Tender {
	applied := make([]Tender, len(tenders))
	copy(applied, tenders)
	if !change.IsPositive() {
		return applied
	}

	order := make([]int, len(applied))
	for i := range order {
		order[i] = len(applied) - 1 - i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return applied[order[a]].Instrument == "cash" && applied[order[b]].Instrument != "cash"
	})

	remaining := change
	for _, i := range order {
		if !remaining.IsPositive() {
			break
		}
		take := remaining
		if applied[i].Amount.LessThan(remaining) {
			take = applied[i].Amount
		}
		applied[i].Amount = applied[i].Amount.Sub(take)
		remaining = remaining.Sub(take)
	}
	return applied
}
