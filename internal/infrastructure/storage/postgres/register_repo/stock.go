// Package register_repo provides the PostgreSQL stock register and general ledger.
package register_repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/stockguard"
	"retailpos/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "reg_stock_movements"

var movementColumns = postgres.ExtractDBColumns[entity.StockMovement]()

// signedQuantity is the on-hand contribution of one movement row.
const signedQuantity = "CASE WHEN record_type = 'expense' THEN -quantity ELSE quantity END"

var _ stockguard.Repository = (*StockRepo)(nil)

// StockRepo implements stockguard.Repository. On-hand is the sum of the
// append-only movement log; writers of one cell are serialised with a
// transaction-scoped advisory lock.
type StockRepo struct {
	txm      *postgres.TxManager
	builder  squirrel.StatementBuilderType
	inserter *postgres.BatchInserter
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:      txm,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// lockName is the advisory lock key text of a cell.
func lockName(k entity.StockKey) string {
	return "stock:" + k.LocationID.String() + ":" + k.ItemID.String()
}

// sortedKeys dedupes keys and orders them by lock name, so concurrent batches
// take their locks in the same order.
func sortedKeys(keys []entity.StockKey) []entity.StockKey {
	seen := make(map[entity.StockKey]struct{}, len(keys))
	out := make([]entity.StockKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return lockName(out[i]) < lockName(out[j]) })
	return out
}

// LockBalances implements stockguard.Repository.
func (r *StockRepo) LockBalances(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]types.Quantity, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("lock balances requires transaction context")
	}
	keys = sortedKeys(keys)

	querier := r.txm.GetQuerier(ctx)
	for _, k := range keys {
		if _, err := querier.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", lockName(k)); err != nil {
			return nil, postgres.Classify(err, "stock cell", lockName(k), "lock stock cell")
		}
	}

	out := make(map[entity.StockKey]types.Quantity, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	if len(keys) == 0 {
		return out, nil
	}

	sql, args, err := r.balancesQuery(keys).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []entity.StockBalance
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum balances: %w", err)
	}
	for _, b := range rows {
		out[entity.StockKey{ItemID: b.ItemID, LocationID: b.LocationID}] = b.Quantity
	}
	return out, nil
}

func (r *StockRepo) balancesQuery(keys []entity.StockKey) squirrel.SelectBuilder {
	cells := make(squirrel.Or, 0, len(keys))
	for _, k := range keys {
		cells = append(cells, squirrel.Eq{"location_id": k.LocationID, "item_id": k.ItemID})
	}
	return r.builder.
		Select("location_id", "item_id", "SUM("+signedQuantity+")::bigint AS quantity").
		From(stockMovementsTable).
		Where(cells).
		GroupBy("location_id", "item_id")
}

// CreateMovements implements stockguard.Repository.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for i := range movements {
		rows = append(rows, postgres.Pick(postgres.StructToMap(&movements[i]), movementColumns))
	}

	if r.txm.GetTx(ctx) != nil {
		_, err := r.inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows)
		return err
	}

	q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// GetMovementsByRecorders implements stockguard.Repository.
func (r *StockRepo) GetMovementsByRecorders(ctx context.Context, recorderIDs []id.ID) ([]entity.StockMovement, error) {
	if len(recorderIDs) == 0 {
		return nil, nil
	}
	sql, args, err := r.builder.
		Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderIDs}).
		OrderBy("created_at", "line_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get movements: %w", err)
	}
	return movements, nil
}

// GetBalance implements stockguard.Repository.
func (r *StockRepo) GetBalance(ctx context.Context, key entity.StockKey) (types.Quantity, error) {
	sql, args, err := r.builder.
		Select("COALESCE(SUM(" + signedQuantity + "), 0)::bigint").
		From(stockMovementsTable).
		Where(squirrel.Eq{"location_id": key.LocationID, "item_id": key.ItemID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var q int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&q); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(q), nil
}
