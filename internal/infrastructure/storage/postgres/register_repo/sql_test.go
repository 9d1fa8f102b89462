package register_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
)

func TestSortedKeys_DedupesAndOrders(t *testing.T) {
	a := entity.StockKey{ItemID: id.MustParse("00000000-0000-0000-0000-00000000000a"), LocationID: id.MustParse("00000000-0000-0000-0000-000000000001")}
	b := entity.StockKey{ItemID: id.MustParse("00000000-0000-0000-0000-00000000000b"), LocationID: id.MustParse("00000000-0000-0000-0000-000000000001")}
	c := entity.StockKey{ItemID: id.MustParse("00000000-0000-0000-0000-000000000001"), LocationID: id.MustParse("00000000-0000-0000-0000-000000000002")}

	got := sortedKeys([]entity.StockKey{c, b, a, b})

	assert.Equal(t, []entity.StockKey{a, b, c}, got)
	assert.Equal(t, "stock:00000000-0000-0000-0000-000000000001:00000000-0000-0000-0000-00000000000a", lockName(a))
}

func TestStockRepo_BalancesSQL(t *testing.T) {
	repo := NewStockRepo(nil)
	keys := []entity.StockKey{{ItemID: id.New(), LocationID: id.New()}, {ItemID: id.New(), LocationID: id.New()}}

	sql, args, err := repo.balancesQuery(keys).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql,
		"SELECT location_id, item_id, SUM(CASE WHEN record_type = 'expense' THEN -quantity ELSE quantity END)::bigint AS quantity FROM reg_stock_movements WHERE "), sql)
	assert.Contains(t, sql, " OR ")
	assert.True(t, strings.HasSuffix(sql, "GROUP BY location_id, item_id"), sql)
	assert.Len(t, args, 4)
}

func TestLedgerRepo_InsertIsConflictFree(t *testing.T) {
	repo := NewLedgerRepo(nil)
	entry := &entity.LedgerEntry{ID: id.New(), DocType: "sale", DocID: id.New(), Number: "SAL-2026-00001"}

	sql, args, err := repo.insertEntryQuery(entry).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO acc_ledger_entries (id,doc_type,doc_id,number,posted_at,posted_by) VALUES ($1,$2,$3,$4,$5,$6)"), sql)
	assert.True(t, strings.HasSuffix(sql, "ON CONFLICT (doc_type, doc_id) DO NOTHING"), sql)
	assert.Equal(t, "sale", args[1])
}
