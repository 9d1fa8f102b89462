// Package catalog_repo provides the PostgreSQL item lookup.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/infrastructure/storage/postgres"
)

const itemsTable = "cat_items"

var itemColumns = postgres.ExtractDBColumns[catalog.Item]()

var _ catalog.Lookup = (*ItemRepo)(nil)

// ItemRepo reads items from cat_items. Master data is maintained outside the
// engine; Put exists for seeding.
type ItemRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewItemRepo creates an item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetItem implements catalog.Lookup.
func (r *ItemRepo) GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error) {
	sql, args, err := r.builder.
		Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	item := &catalog.Item{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", itemID.String())
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (r *ItemRepo) upsertQuery(item *catalog.Item) squirrel.InsertBuilder {
	updates := make([]string, 0, len(itemColumns)-1)
	for _, col := range itemColumns {
		if col == "id" {
			continue
		}
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	return r.builder.
		Insert(itemsTable).
		Columns(itemColumns...).
		Values(postgres.Pick(postgres.StructToMap(item), itemColumns)...).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", "))
}

// Put inserts or replaces an item.
func (r *ItemRepo) Put(ctx context.Context, item catalog.Item) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}
	sql, args, err := r.upsertQuery(&item).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Classify(err, "item", item.SKU, "upsert item")
	}
	return nil
}
