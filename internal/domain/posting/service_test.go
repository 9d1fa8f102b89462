package posting_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/pricing"
	"retailpos/internal/infrastructure/storage/memory"
)

type env struct {
	store   *memory.Store
	service *posting.Service
	seq     int
}

func newEnv() *env {
	s := memory.NewStore()
	guard := posting.NewGuard(s.Ledger(), s)
	return &env{
		store:   s,
		service: posting.NewService(guard, s, s.Documents(), s.Payments(), posting.DefaultAccounts()),
	}
}

func m(v string) types.Money { return types.MustMoney(v) }

// saved creates a final document with one exclusive-tax line, paid in cash.
func (e *env) saved(t *testing.T, docType entity.DocType, qty int64, price string) *entity.Document {
	t.Helper()
	ctx := context.Background()

	doc := entity.NewDocument(docType, id.New(), "op-1")
	e.seq++
	doc.Number = fmt.Sprintf("SAL-2026-%05d", e.seq)
	doc.Status = entity.StatusFinal
	doc.Lines = []entity.Line{{ItemID: id.New(), Quantity: types.NewQuantity(qty), UnitPrice: m(price), TaxRatePct: m("10")}}
	doc.Renumber()
	require.NoError(t, pricing.Recompute(ctx, doc))
	require.NoError(t, e.store.Documents().Create(ctx, doc))
	require.NoError(t, e.store.Payments().Create(ctx, []entity.Payment{{
		ID: id.New(), DocumentID: doc.ID, Kind: entity.PaymentSettlement,
		Instrument: "cash", Amount: doc.GrandTotal, CreatedAt: time.Now().UTC(),
	}}))
	return doc
}

func (e *env) post(t *testing.T, doc, prev *entity.Document) *posting.Warning {
	t.Helper()
	var warning *posting.Warning
	err := e.store.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		warning, err = e.service.PostDocument(ctx, doc, prev)
		return err
	})
	require.NoError(t, err)
	return warning
}

func linesByAccount(entry *entity.LedgerEntry) map[string]entity.LedgerLine {
	out := make(map[string]entity.LedgerLine, len(entry.Lines))
	for _, l := range entry.Lines {
		out[l.Account] = l
	}
	return out
}

func TestPostDocument_SaleBooksBalancedEntry(t *testing.T) {
	e := newEnv()
	doc := e.saved(t, entity.DocTypeSale, 10, "100")

	assert.Nil(t, e.post(t, doc, nil))
	assert.Equal(t, entity.PostingPosted, doc.PostingStatus)

	entry, err := e.service.Entry(context.Background(), "sale", doc.ID)
	require.NoError(t, err)
	require.NoError(t, entry.ValidateBalanced())

	lines := linesByAccount(entry)
	assert.Equal(t, entity.SideDebit, lines["1010"].Side)
	assert.True(t, m("1100").Equal(lines["1010"].Amount))
	assert.Equal(t, entity.SideCredit, lines["4000"].Side)
	assert.True(t, m("1000").Equal(lines["4000"].Amount))
	assert.True(t, m("100").Equal(lines["2200"].Amount))
	assert.NotContains(t, lines, "1200")
}

func TestPostDocument_PurchaseBooksInventoryAndInputTax(t *testing.T) {
	e := newEnv()
	doc := e.saved(t, entity.DocTypePurchase, 2, "50")

	assert.Nil(t, e.post(t, doc, nil))

	entry, err := e.service.Entry(context.Background(), "purchase", doc.ID)
	require.NoError(t, err)
	lines := linesByAccount(entry)
	assert.Equal(t, entity.SideDebit, lines["1300"].Side)
	assert.True(t, m("100").Equal(lines["1300"].Amount))
	assert.True(t, m("10").Equal(lines["1400"].Amount))
	assert.Equal(t, entity.SideCredit, lines["1010"].Side)
	assert.True(t, m("110").Equal(lines["1010"].Amount))
}

func TestPostDocument_IsIdempotent(t *testing.T) {
	e := newEnv()
	doc := e.saved(t, entity.DocTypeSale, 1, "10")

	assert.Nil(t, e.post(t, doc, nil))
	assert.Nil(t, e.post(t, doc, nil))
	assert.Equal(t, 1, e.store.Ledger().Count(context.Background()))
}

func TestPostDocument_RevisionBooksDifference(t *testing.T) {
	e := newEnv()
	prev := e.saved(t, entity.DocTypeSale, 5, "100")
	next := e.saved(t, entity.DocTypeSale, 6, "100")
	next.RevisedFromID = &prev.ID

	assert.Nil(t, e.post(t, next, prev))

	entry, err := e.service.Entry(context.Background(), "sale", next.ID)
	require.NoError(t, err)
	lines := linesByAccount(entry)
	assert.True(t, m("100").Equal(lines["4000"].Amount))
	assert.True(t, m("10").Equal(lines["2200"].Amount))
	// fixture pays the full 660 on the revision; only 110 is owed
	assert.Equal(t, entity.SideCredit, lines["1200"].Side)
	assert.True(t, m("550").Equal(lines["1200"].Amount))
}

func TestPostDocument_FailureFlagsDocumentAndRepostRecovers(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	doc := e.saved(t, entity.DocTypeSale, 1, "10")

	e.store.SetLedgerFault(errors.New("ledger unavailable"))
	warning := e.post(t, doc, nil)
	require.NotNil(t, warning)
	assert.Equal(t, posting.CodeLedgerPostingFailed, warning.Code)
	assert.Equal(t, "sale", warning.LedgerType)

	stored, err := e.store.Documents().GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PostingFailed, stored.PostingStatus)
	assert.Zero(t, e.store.Ledger().Count(ctx))

	e.store.SetLedgerFault(nil)
	err = e.store.RunInTransaction(ctx, func(ctx context.Context) error {
		w, err := e.service.Repost(ctx, stored)
		assert.Nil(t, w)
		return err
	})
	require.NoError(t, err)

	stored, err = e.store.Documents().GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PostingPosted, stored.PostingStatus)
	assert.Equal(t, 1, e.store.Ledger().Count(ctx))
}

func TestRepost_DraftRejected(t *testing.T) {
	e := newEnv()
	doc := entity.NewDocument(entity.DocTypeSale, id.New(), "op-1")

	_, err := e.service.Repost(context.Background(), doc)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestPostVoid_UsesSeparateKey(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	doc := e.saved(t, entity.DocTypeSale, 1, "10")
	assert.Nil(t, e.post(t, doc, nil))

	require.NoError(t, e.store.Payments().Create(ctx, []entity.Payment{{
		ID: id.New(), DocumentID: doc.ID, Kind: entity.PaymentVoid,
		Instrument: "cash", Amount: doc.GrandTotal.Neg(), CreatedAt: time.Now().UTC(),
	}}))

	err := e.store.RunInTransaction(ctx, func(ctx context.Context) error {
		w, err := e.service.PostVoid(ctx, doc)
		assert.Nil(t, w)
		return err
	})
	require.NoError(t, err)

	entry, err := e.service.Entry(ctx, "sale"+posting.VoidSuffix, doc.ID)
	require.NoError(t, err)
	lines := linesByAccount(entry)
	assert.Equal(t, entity.SideCredit, lines["1010"].Side)
	assert.True(t, m("11").Equal(lines["1010"].Amount))
	assert.Equal(t, entity.SideDebit, lines["4000"].Side)
	assert.Equal(t, 2, e.store.Ledger().Count(ctx))
}

func TestLines_EmptyWhenNothingToBook(t *testing.T) {
	lines := posting.DefaultAccounts().Lines(entity.DocTypeSale, posting.Amounts{
		Net: types.Zero(), Tax: types.Zero(), Gross: types.Zero(),
	}, id.New())
	assert.Empty(t, lines)
}
