package stockguard_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/stockguard"
	"retailpos/internal/infrastructure/storage/memory"
)

type fixture struct {
	store    *memory.Store
	guard    *stockguard.Guard
	item     id.ID
	location id.ID
}

func newFixture(t *testing.T, opening int64) *fixture {
	t.Helper()
	s := memory.NewStore()
	f := &fixture{store: s, guard: stockguard.NewGuard(s.Stock()), item: id.New(), location: id.New()}
	if opening > 0 {
		f.apply(t, opening)
	}
	return f
}

func (f *fixture) rec() stockguard.Recorder {
	return stockguard.Recorder{DocumentID: id.New(), LedgerType: "sale", Period: time.Now().UTC()}
}

func (f *fixture) delta(q int64) stockguard.Delta {
	return stockguard.Delta{ItemID: f.item, LocationID: f.location, Quantity: types.NewQuantity(q)}
}

func (f *fixture) apply(t *testing.T, q int64) {
	t.Helper()
	err := f.store.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_, err := f.guard.Apply(ctx, f.rec(), entity.ReasonOpening, []stockguard.Delta{f.delta(q)})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) onHand(t *testing.T) types.Quantity {
	t.Helper()
	q, err := f.guard.OnHand(context.Background(), f.item, f.location)
	require.NoError(t, err)
	return q
}

func TestNet_FoldsAndDropsZeroCells(t *testing.T) {
	a, b, loc := id.New(), id.New(), id.New()
	got := stockguard.Net([]stockguard.Delta{
		{ItemID: a, LocationID: loc, Quantity: types.NewQuantity(-2)},
		{ItemID: b, LocationID: loc, Quantity: types.NewQuantity(3)},
		{ItemID: a, LocationID: loc, Quantity: types.NewQuantity(2)},
		{ItemID: b, LocationID: loc, Quantity: types.NewQuantity(1)},
	})
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0].ItemID)
	assert.Equal(t, types.NewQuantity(4), got[0].Quantity)
}

func TestDiff(t *testing.T) {
	a, b, loc := id.New(), id.New(), id.New()
	prev := []stockguard.Delta{{ItemID: a, LocationID: loc, Quantity: types.NewQuantity(-5)}}
	next := []stockguard.Delta{
		{ItemID: a, LocationID: loc, Quantity: types.NewQuantity(-6)},
		{ItemID: b, LocationID: loc, Quantity: types.NewQuantity(-1)},
	}

	got := stockguard.Diff(prev, next)
	byItem := map[id.ID]types.Quantity{}
	for _, d := range got {
		byItem[d.ItemID] = d.Quantity
	}
	assert.Equal(t, types.NewQuantity(-1), byItem[a])
	assert.Equal(t, types.NewQuantity(-1), byItem[b])

	assert.Empty(t, stockguard.Diff(next, next))
}

func TestApply_RejectsWholeBatch(t *testing.T) {
	f := newFixture(t, 5)
	other := id.New()

	err := f.store.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_, err := f.guard.Apply(ctx, f.rec(), entity.ReasonDocument, []stockguard.Delta{
			{ItemID: other, LocationID: f.location, Quantity: types.NewQuantity(10)},
			f.delta(-6),
		})
		return err
	})
	require.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "5.0000", appErr.Details["available"])

	assert.Equal(t, types.NewQuantity(5), f.onHand(t))
	q, err := f.guard.OnHand(context.Background(), other, f.location)
	require.NoError(t, err)
	assert.True(t, q.IsZero())
}

func TestApply_ExactDrainAllowed(t *testing.T) {
	f := newFixture(t, 5)
	f.apply(t, -5)
	assert.True(t, f.onHand(t).IsZero())
}

func TestApply_IncreasesNeedNoStock(t *testing.T) {
	f := newFixture(t, 0)
	f.apply(t, 3)
	assert.Equal(t, types.NewQuantity(3), f.onHand(t))
}

func TestApply_MovementsCarryDirection(t *testing.T) {
	f := newFixture(t, 10)
	rec := f.rec()

	var movements []entity.StockMovement
	err := f.store.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		movements, err = f.guard.Apply(ctx, rec, entity.ReasonDocument, []stockguard.Delta{f.delta(-4)})
		return err
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, entity.RecordTypeExpense, movements[0].RecordType)
	assert.Equal(t, types.NewQuantity(4), movements[0].Quantity)

	effect, err := f.guard.EffectOf(context.Background(), []id.ID{rec.DocumentID})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-4), effect[entity.StockKey{ItemID: f.item, LocationID: f.location}])
}

func TestApply_ConcurrentWithdrawalsNeverOversell(t *testing.T) {
	f := newFixture(t, 10)

	var wg sync.WaitGroup
	var succeeded, rejected atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.store.RunInTransaction(context.Background(), func(ctx context.Context) error {
				_, err := f.guard.Apply(ctx, f.rec(), entity.ReasonDocument, []stockguard.Delta{f.delta(-3)})
				return err
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.IsInsufficientStock(err):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), succeeded.Load())
	assert.Equal(t, int32(7), rejected.Load())
	assert.Equal(t, types.NewQuantity(1), f.onHand(t))
}

func TestApply_RandomSequenceStaysNonNegative(t *testing.T) {
	f := newFixture(t, 0)
	steps := []int64{4, -3, -2, 7, -8, -1, 2, -3, 5, -6, -1}

	expected := int64(0)
	for _, q := range steps {
		err := f.store.RunInTransaction(context.Background(), func(ctx context.Context) error {
			_, err := f.guard.Apply(ctx, f.rec(), entity.ReasonDocument, []stockguard.Delta{f.delta(q)})
			return err
		})
		if expected+q < 0 {
			assert.True(t, apperror.IsInsufficientStock(err), "step %d", q)
			continue
		}
		require.NoError(t, err)
		expected += q
		assert.False(t, f.onHand(t).IsNegative())
	}
	assert.Equal(t, types.NewQuantity(expected), f.onHand(t))
}
