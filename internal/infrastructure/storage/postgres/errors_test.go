package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"retailpos/internal/core/apperror"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert doc_documents: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsRetryable(unique))

	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil, "document", "x", "insert"))

	err := Classify(&pgconn.PgError{Code: "23505"}, "document", "SAL-2026-00001", "insert document")
	assert.True(t, apperror.IsConcurrentModification(err))

	err = Classify(errors.New("conn reset"), "document", "x", "insert document")
	assert.EqualError(t, err, "insert document: conn reset")
	assert.False(t, apperror.IsAppError(err))
}
