package revision_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/app"
	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/documents"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/returns"
	"retailpos/internal/domain/revision"
	"retailpos/internal/domain/settlement"
	"retailpos/internal/domain/stockguard"
	"retailpos/internal/infrastructure/storage/memory"
)

type fixture struct {
	eng   *app.Engine
	store *memory.Store
	sess  appctx.Session
	itemA id.ID
	itemB id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, store, _ := app.NewMemory(posting.DefaultAccounts())
	f := &fixture{
		eng:   eng,
		store: store,
		sess:  appctx.Session{OperatorID: "op-1", LocationID: id.New(), CounterID: "till-1"},
		itemA: id.New(),
		itemB: id.New(),
	}
	require.NoError(t, eng.SeedOpening(context.Background(), f.sess.LocationID, f.itemA, types.NewQuantity(100)))
	require.NoError(t, eng.SeedOpening(context.Background(), f.sess.LocationID, f.itemB, types.NewQuantity(100)))
	return f
}

func m(v string) types.Money { return types.MustMoney(v) }

func line(item id.ID, qty int64, price string) entity.Line {
	return entity.Line{ItemID: item, Quantity: types.NewQuantity(qty), UnitPrice: m(price)}
}

func (f *fixture) final(t *testing.T, docType entity.DocType, lines ...entity.Line) *entity.Document {
	t.Helper()
	res, err := f.eng.Documents.Create(context.Background(), f.sess, documents.CreateRequest{
		Type:     docType,
		Lines:    lines,
		Finalize: true,
	}, settlement.ExactCash())
	require.NoError(t, err)
	return res.Document
}

func (f *fixture) onHand(t *testing.T, item id.ID) types.Quantity {
	t.Helper()
	q, err := f.eng.OnHand(context.Background(), f.sess.LocationID, item)
	require.NoError(t, err)
	return q
}

// chainEffect sums every stock movement written by the revisions of a logical invoice.
func (f *fixture) chainEffect(t *testing.T, number string) map[entity.StockKey]types.Quantity {
	t.Helper()
	chain, err := f.eng.Revisions.Chain(context.Background(), number)
	require.NoError(t, err)
	ids := make([]id.ID, 0, len(chain))
	for _, d := range chain {
		ids = append(ids, d.ID)
	}
	effect, err := f.eng.Stock.EffectOf(context.Background(), ids)
	require.NoError(t, err)
	for k, q := range effect {
		if q.IsZero() {
			delete(effect, k)
		}
	}
	return effect
}

func headEffect(doc *entity.Document) map[entity.StockKey]types.Quantity {
	out := make(map[entity.StockKey]types.Quantity)
	for _, d := range stockguard.Net(stockguard.DocumentDeltas(doc)) {
		out[d.Key()] += d.Quantity
	}
	return out
}

func TestAmend_CollectsExactDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 5, "100"))
	require.True(t, m("500").Equal(original.GrandTotal))

	capture := settlement.NewScriptedCapture(settlement.Result{Tenders: []settlement.Tender{
		{Instrument: "cash", Amount: m("100")},
		{Instrument: "card", Amount: m("50")},
	}})
	res, err := f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 6, "100"), line(f.itemB, 1, "50")},
	}, capture)
	require.NoError(t, err)
	assert.Nil(t, res.Warning)

	assert.True(t, m("150").Equal(res.Delta))
	require.Len(t, capture.Requests(), 1)
	assert.True(t, m("150").Equal(capture.Requests()[0].Amount))
	assert.Equal(t, settlement.ModeExact, capture.Requests()[0].Mode)

	next := res.Document
	assert.Equal(t, 2, next.Revision)
	assert.Equal(t, original.Number, next.Number)
	require.NotNil(t, next.RevisedFromID)
	assert.Equal(t, original.ID, *next.RevisedFromID)
	assert.True(t, m("650").Equal(next.GrandTotal))

	prev, err := f.eng.Documents.Get(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, prev.RevisedToID)
	assert.Equal(t, next.ID, *prev.RevisedToID)
	assert.False(t, prev.IsHead())

	assert.Equal(t, types.NewQuantity(94), f.onHand(t, f.itemA))
	assert.Equal(t, types.NewQuantity(99), f.onHand(t, f.itemB))

	payments, err := f.eng.Documents.Payments(ctx, next.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	entry, err := f.eng.Posting.Entry(ctx, "sale", next.ID)
	require.NoError(t, err)
	require.NoError(t, entry.ValidateBalanced())

	history, err := f.eng.Trail.History(ctx, original.Number)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Revision)
}

func TestAmend_RejectsShortTenderWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 5, "100"))

	capture := settlement.NewScriptedCapture(settlement.Result{Tenders: []settlement.Tender{
		{Instrument: "cash", Amount: m("140")},
	}})
	_, err := f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 6, "100"), line(f.itemB, 1, "50")},
	}, capture)
	require.True(t, apperror.IsSettlementMismatch(err))

	chain, err := f.eng.Revisions.Chain(ctx, original.Number)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
	assert.True(t, chain[0].IsHead())
	assert.Equal(t, types.NewQuantity(95), f.onHand(t, f.itemA))
	assert.Equal(t, types.NewQuantity(100), f.onHand(t, f.itemB))
}

func TestAmend_CancelledDialogAborts(t *testing.T) {
	f := newFixture(t)
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 1, "10"))

	_, err := f.eng.Revisions.Amend(context.Background(), f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 2, "10")},
	}, settlement.NewScriptedCapture(settlement.Result{Cancelled: true}))
	assert.True(t, apperror.HasCode(err, apperror.CodeSettlementCancelled))
	assert.Equal(t, types.NewQuantity(99), f.onHand(t, f.itemA))
}

func TestAmend_SaleBelowOriginalRejected(t *testing.T) {
	f := newFixture(t)
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 5, "100"))

	_, err := f.eng.Revisions.Amend(context.Background(), f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 4, "100")},
	}, settlement.ExactCash())
	assert.True(t, apperror.HasCode(err, apperror.CodeAmendmentBelowOriginal))
}

func TestAmend_PurchaseDecreaseIsGuardedAndRefunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	itemC := id.New()

	purchase := f.final(t, entity.DocTypePurchase, line(itemC, 10, "5"))
	f.final(t, entity.DocTypeSale, line(itemC, 8, "9"))
	require.Equal(t, types.NewQuantity(2), f.onHand(t, itemC))

	_, err := f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: purchase.ID,
		Lines:      []entity.Line{line(itemC, 5, "5")},
	}, settlement.ExactCash())
	require.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, types.NewQuantity(2), f.onHand(t, itemC))

	capture := settlement.ExactCash()
	res, err := f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: purchase.ID,
		Lines:      []entity.Line{line(itemC, 8, "5")},
	}, capture)
	require.NoError(t, err)
	assert.True(t, m("-10").Equal(res.Delta))
	assert.Equal(t, "refund", capture.Requests()[0].Direction())
	assert.True(t, f.onHand(t, itemC).IsZero())
}

func TestAmend_ChainMovementsEqualHeadEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.final(t, entity.DocTypeSale, line(f.itemA, 2, "10"))

	steps := [][]entity.Line{
		{line(f.itemA, 3, "10"), line(f.itemB, 1, "10")},
		{line(f.itemB, 5, "10")},
		{line(f.itemA, 1, "10"), line(f.itemB, 5, "10"), line(f.itemA, 1, "15")},
	}
	for _, lines := range steps {
		res, err := f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{DocumentID: doc.ID, Lines: lines}, settlement.ExactCash())
		require.NoError(t, err)
		doc = res.Document

		assert.Equal(t, headEffect(doc), f.chainEffect(t, doc.Number))
	}

	assert.Equal(t, 4, doc.Revision)
	assert.Equal(t, types.NewQuantity(98), f.onHand(t, f.itemA))
	assert.Equal(t, types.NewQuantity(95), f.onHand(t, f.itemB))

	head, err := f.eng.Revisions.Head(ctx, doc.Number)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, head.ID)
}

func TestAmend_SupersededAndStaleVersionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 1, "10"))

	_, err := f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Version:    original.Version + 1,
		Lines:      []entity.Line{line(f.itemA, 2, "10")},
	}, settlement.ExactCash())
	assert.True(t, apperror.IsConcurrentModification(err))

	_, err = f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 2, "10")},
	}, settlement.ExactCash())
	require.NoError(t, err)

	_, err = f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 3, "10")},
	}, settlement.ExactCash())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestAmend_BlockedByActiveReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 3, "10"))

	lineID := original.Lines[0].ID
	_, err := f.eng.Returns.ValidateAndSave(ctx, f.sess, returns.Request{
		RefDocumentID: &original.ID,
		Lines:         []returns.LineRequest{{OriginalLineID: &lineID, Quantity: types.NewQuantity(1)}},
	}, settlement.ExactCash())
	require.NoError(t, err)

	_, err = f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 4, "10")},
	}, settlement.ExactCash())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	actions, err := f.eng.Revisions.Actions(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, []revision.Action{revision.ActionReturn}, actions)
}

func TestAmend_RejectsStoredAmountsThatDoNotRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.final(t, entity.DocTypeSale, line(f.itemA, 2, "10"))

	stored, err := f.store.Documents().GetByID(ctx, original.ID)
	require.NoError(t, err)
	stored.GrandTotal = m("1")
	require.NoError(t, f.store.Documents().Update(ctx, stored))

	_, err = f.eng.Revisions.Amend(ctx, f.sess, revision.AmendRequest{
		DocumentID: original.ID,
		Lines:      []entity.Line{line(f.itemA, 3, "10")},
	}, settlement.ExactCash())
	require.True(t, apperror.IsValidation(err))

	chain, err := f.eng.Revisions.Chain(ctx, original.Number)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
	assert.Equal(t, types.NewQuantity(98), f.onHand(t, f.itemA))
}
