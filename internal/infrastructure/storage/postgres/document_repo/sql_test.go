package document_repo

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/domain"
)

func TestDocumentRepo_UpdateSQL(t *testing.T) {
	repo := NewDocumentRepo(nil)
	doc := entity.NewDocument(entity.DocTypeSale, id.New(), "op-1")
	doc.Version = 3

	sql, args, err := repo.updateQuery(doc).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "UPDATE doc_documents SET "))
	assert.Contains(t, sql, "version = version + 1")
	assert.True(t, strings.HasSuffix(sql, "WHERE id = $"+strconv.Itoa(len(args)-1)+" AND version = $"+strconv.Itoa(len(args))), sql)
	assert.NotContains(t, sql, "created_at =")
	assert.NotContains(t, sql, "created_by =")
	assert.Equal(t, 3, args[len(args)-1])
}

func TestDocumentRepo_GetForUpdateSQL(t *testing.T) {
	repo := NewDocumentRepo(nil)
	docID := id.New()

	sql, args, err := repo.baseSelect().Where("id = ?", docID).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT id, version, created_at, updated_at, created_by, updated_by, doc_type, number"), sql)
	assert.True(t, strings.HasSuffix(sql, "FROM doc_documents WHERE id = $1 FOR UPDATE"), sql)
	assert.Equal(t, []any{docID}, args)
}

func TestDocumentRepo_ActiveReturnsSQL(t *testing.T) {
	repo := NewDocumentRepo(nil)

	sql, args, err := repo.activeReturns(id.New()).ToSql()
	require.NoError(t, err)

	for _, part := range []string{"is_return = $1", "ref_document_id = $2", "revised_to_id IS NULL", "status = $3"} {
		assert.Contains(t, sql, part)
	}
	assert.True(t, strings.HasSuffix(sql, "ORDER BY number"), sql)
	require.Len(t, args, 3)
	assert.Equal(t, true, args[0])
	assert.Equal(t, entity.StatusFinal, args[2])
}

func TestDocumentRepo_ReturnedQuantitiesSQL(t *testing.T) {
	repo := NewDocumentRepo(nil)
	originalID := id.New()

	sql, args, err := repo.returnedQuery(originalID, nil).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql,
		"SELECT l.ref_line_id, SUM(ABS(l.quantity))::bigint AS quantity FROM doc_lines l "+
			"JOIN doc_documents d ON d.id = l.document_id WHERE "), sql)
	for _, part := range []string{"d.is_return = $1", "d.ref_document_id = $2", "d.revised_to_id IS NULL", "d.status = $3", "l.ref_line_id IS NOT NULL"} {
		assert.Contains(t, sql, part)
	}
	assert.True(t, strings.HasSuffix(sql, "GROUP BY l.ref_line_id"), sql)
	assert.Len(t, args, 3)

	exclude := id.New()
	sql, args, err = repo.returnedQuery(originalID, &exclude).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "AND d.id <> $4 GROUP BY")
	assert.Len(t, args, 4)
}

func TestApplyFilter(t *testing.T) {
	repo := NewDocumentRepo(nil)
	returns := false
	filter := domain.ListFilter{
		Type:      entity.DocTypePurchase,
		Returns:   &returns,
		HeadsOnly: true,
		Search:    "PUR-2026",
	}

	sql, args, err := applyFilter(repo.Builder().Select("COUNT(*)").From(documentsTable), filter).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) FROM doc_documents WHERE doc_type = $1 AND is_return = $2 AND revised_to_id IS NULL AND number ILIKE $3",
		sql)
	assert.Equal(t, []any{entity.DocTypePurchase, false, "%PUR-2026%"}, args)
}

func TestPaymentRepo_InsertSQL(t *testing.T) {
	repo := NewPaymentRepo(nil)
	payments := []entity.Payment{{ID: id.New()}, {ID: id.New()}}

	sql, args, err := repo.insertQuery(payments).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "INSERT INTO doc_payments (id,document_id,kind,instrument,amount,reference,created_at) VALUES "), sql)
	assert.Len(t, args, 2*len(paymentColumns))
}
