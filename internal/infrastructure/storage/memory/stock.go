package memory

import (
	"context"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/stockguard"
)

var _ stockguard.Repository = (*StockRepo)(nil)

// StockRepo implements stockguard.Repository over the movement log.
type StockRepo struct {
	store *Store
}

func balances(st *state) map[entity.StockKey]types.Quantity {
	out := make(map[entity.StockKey]types.Quantity)
	for _, m := range st.movements {
		key := entity.StockKey{ItemID: m.ItemID, LocationID: m.LocationID}
		out[key] += m.SignedQuantity()
	}
	return out
}

func (r *StockRepo) LockBalances(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]types.Quantity, error) {
	out := make(map[entity.StockKey]types.Quantity, len(keys))
	err := r.store.write(ctx, func(st *state) error {
		all := balances(st)
		for _, k := range keys {
			out[k] = all[k]
		}
		return nil
	})
	return out, err
}

func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.store.write(ctx, func(st *state) error {
		st.movements = append(st.movements, movements...)
		return nil
	})
}

func (r *StockRepo) GetMovementsByRecorders(ctx context.Context, recorderIDs []id.ID) ([]entity.StockMovement, error) {
	want := make(map[id.ID]struct{}, len(recorderIDs))
	for _, rid := range recorderIDs {
		want[rid] = struct{}{}
	}

	var out []entity.StockMovement
	err := r.store.read(ctx, func(st *state) error {
		for _, m := range st.movements {
			if _, ok := want[m.RecorderID]; ok {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (r *StockRepo) GetBalance(ctx context.Context, key entity.StockKey) (types.Quantity, error) {
	var q types.Quantity
	err := r.store.read(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.ItemID == key.ItemID && m.LocationID == key.LocationID {
				q += m.SignedQuantity()
			}
		}
		return nil
	})
	return q, err
}
