// Package stockguard keeps on-hand quantities from going negative.
//
// Every stock-affecting operation hands its signed deltas to the guard inside its
// own transaction. The guard locks the affected cells, re-reads on-hand from the
// append-only movement register and refuses the whole batch if any cell would
// drop below zero. Movements are appended only after the whole batch passed.
package stockguard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/pkg/logger"
)

// Delta is a signed on-hand change of one item at one location.
type Delta struct {
	ItemID     id.ID
	LocationID id.ID
	Quantity   types.Quantity
}

// Key returns the register cell of the delta.
func (d Delta) Key() entity.StockKey {
	return entity.StockKey{ItemID: d.ItemID, LocationID: d.LocationID}
}

// Net folds deltas per cell, drops cells that cancel out and returns them in a
// deterministic order (location, then item).
func Net(deltas []Delta) []Delta {
	sums := make(map[entity.StockKey]types.Quantity, len(deltas))
	for _, d := range deltas {
		sums[d.Key()] += d.Quantity
	}

	out := make([]Delta, 0, len(sums))
	for k, q := range sums {
		if q.IsZero() {
			continue
		}
		out = append(out, Delta{ItemID: k.ItemID, LocationID: k.LocationID, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		return keyLess(out[i].Key(), out[j].Key())
	})
	return out
}

// SortKeys orders keys the way every implementation must acquire cell locks.
func SortKeys(keys []entity.StockKey) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}

func keyLess(a, b entity.StockKey) bool {
	if a.LocationID != b.LocationID {
		return a.LocationID.String() < b.LocationID.String()
	}
	return a.ItemID.String() < b.ItemID.String()
}

// Guard provides the negative-on-hand check and movement recording.
// Transactions are managed by the caller.
type Guard struct {
	repo Repository
}

// NewGuard creates a new stock guard.
func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo}
}

// EnsureNoNegative checks onHand + delta >= 0 for every cell the batch decreases.
// All cells are read against one consistent, locked snapshot in the caller's
// transaction; the first violation aborts the batch.
func (g *Guard) EnsureNoNegative(ctx context.Context, deltas []Delta) error {
	netted := Net(deltas)

	keys := make([]entity.StockKey, 0, len(netted))
	for _, d := range netted {
		if d.Quantity.IsNegative() {
			keys = append(keys, d.Key())
		}
	}
	if len(keys) == 0 {
		return nil
	}

	balances, err := g.repo.LockBalances(ctx, keys)
	if err != nil {
		return fmt.Errorf("lock balances: %w", err)
	}

	for _, d := range netted {
		if !d.Quantity.IsNegative() {
			continue
		}
		onHand := balances[d.Key()]
		if onHand+d.Quantity < 0 {
			return apperror.NewInsufficientStock(
				d.ItemID.String(),
				d.LocationID.String(),
				d.Quantity.String(),
				onHand.String(),
			)
		}
	}

	return nil
}

// Recorder identifies the document revision that causes a batch of movements.
type Recorder struct {
	DocumentID id.ID
	LedgerType string
	Period     time.Time
}

// RecorderOf builds a Recorder from a document.
func RecorderOf(doc *entity.Document) Recorder {
	return Recorder{DocumentID: doc.ID, LedgerType: doc.LedgerType(), Period: doc.Date}
}

// Apply guards the batch and, only when every cell passes, appends one movement
// per netted cell.
func (g *Guard) Apply(ctx context.Context, rec Recorder, reason entity.MovementReason, deltas []Delta) ([]entity.StockMovement, error) {
	netted := Net(deltas)
	if len(netted) == 0 {
		return nil, nil
	}

	if err := g.EnsureNoNegative(ctx, netted); err != nil {
		return nil, err
	}

	movements := make([]entity.StockMovement, 0, len(netted))
	for _, d := range netted {
		movements = append(movements, entity.NewStockMovement(
			rec.DocumentID, rec.LedgerType, reason, rec.Period, d.LocationID, d.ItemID, d.Quantity,
		))
	}

	if err := g.repo.CreateMovements(ctx, movements); err != nil {
		return nil, fmt.Errorf("create movements: %w", err)
	}

	logger.Debug(ctx, "recorded stock movements",
		"count", len(movements),
		"recorder_id", rec.DocumentID,
		"reason", reason,
	)

	return movements, nil
}

// DocumentDeltas converts document lines into on-hand deltas at the document location.
func DocumentDeltas(doc *entity.Document) []Delta {
	deltas := make([]Delta, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		deltas = append(deltas, Delta{
			ItemID:     l.ItemID,
			LocationID: doc.LocationID,
			Quantity:   doc.StockDelta(l.Quantity),
		})
	}
	return deltas
}

// Invert negates every delta (reversal of a previous effect).
func Invert(deltas []Delta) []Delta {
	out := make([]Delta, len(deltas))
	for i, d := range deltas {
		out[i] = Delta{ItemID: d.ItemID, LocationID: d.LocationID, Quantity: d.Quantity.Neg()}
	}
	return out
}

// Diff returns the deltas that move the register from the effect of prev to the
// effect of next: next minus prev, netted per cell.
func Diff(prev, next []Delta) []Delta {
	combined := make([]Delta, 0, len(prev)+len(next))
	combined = append(combined, next...)
	combined = append(combined, Invert(prev)...)
	return Net(combined)
}

// OnHand returns the current on-hand of a cell (read path, no lock).
func (g *Guard) OnHand(ctx context.Context, itemID, locationID id.ID) (types.Quantity, error) {
	return g.repo.GetBalance(ctx, entity.StockKey{ItemID: itemID, LocationID: locationID})
}

// EffectOf sums the signed movements written by the given documents per cell.
func (g *Guard) EffectOf(ctx context.Context, recorderIDs []id.ID) (map[entity.StockKey]types.Quantity, error) {
	movements, err := g.repo.GetMovementsByRecorders(ctx, recorderIDs)
	if err != nil {
		return nil, fmt.Errorf("get movements: %w", err)
	}
	out := make(map[entity.StockKey]types.Quantity)
	for i := range movements {
		mv := &movements[i]
		out[entity.StockKey{ItemID: mv.ItemID, LocationID: mv.LocationID}] += mv.SignedQuantity()
	}
	return out, nil
}
