package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/domain"
	"retailpos/internal/infrastructure/storage/postgres"
)

const paymentsTable = "doc_payments"

var paymentColumns = postgres.ExtractDBColumns[entity.Payment]()

var _ domain.PaymentRepository = (*PaymentRepo)(nil)

// PaymentRepo implements domain.PaymentRepository.
type PaymentRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewPaymentRepo creates a payment repository.
func NewPaymentRepo(txm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PaymentRepo) insertQuery(payments []entity.Payment) squirrel.InsertBuilder {
	q := r.builder.Insert(paymentsTable).Columns(paymentColumns...)
	for i := range payments {
		q = q.Values(postgres.Pick(postgres.StructToMap(&payments[i]), paymentColumns)...)
	}
	return q
}

// Create implements domain.PaymentRepository.
func (r *PaymentRepo) Create(ctx context.Context, payments []entity.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	sql, args, err := r.insertQuery(payments).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payments: %w", err)
	}
	return nil
}

// ListByDocument implements domain.PaymentRepository.
func (r *PaymentRepo) ListByDocument(ctx context.Context, docID id.ID) ([]entity.Payment, error) {
	sql, args, err := r.builder.
		Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var payments []entity.Payment
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
