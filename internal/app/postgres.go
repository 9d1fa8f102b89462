package app

import (
	"context"
	"fmt"

	"retailpos/internal/infrastructure/storage/postgres"
	"retailpos/internal/infrastructure/storage/postgres/catalog_repo"
	"retailpos/internal/infrastructure/storage/postgres/document_repo"
	"retailpos/internal/infrastructure/storage/postgres/register_repo"
	"retailpos/pkg/numerator"
)

// PostgresStorage exposes the postgres repositories as Storage.
// auditThreshold is the snapshot size above which revision snapshots are compressed.
func PostgresStorage(txm *postgres.TxManager, auditThreshold int) (Storage, error) {
	auditRepo, err := postgres.NewAuditRepo(txm, auditThreshold)
	if err != nil {
		return Storage{}, fmt.Errorf("audit repo: %w", err)
	}

	return Storage{
		TxManager: txm,
		Documents: document_repo.NewDocumentRepo(txm),
		Payments:  document_repo.NewPaymentRepo(txm),
		Stock:     register_repo.NewStockRepo(txm),
		Ledger:    register_repo.NewLedgerRepo(txm),
		Audit:     auditRepo,
		Numbers: numerator.New(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		Catalog: catalog_repo.NewItemRepo(txm),
	}, nil
}
