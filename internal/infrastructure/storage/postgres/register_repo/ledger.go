package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/posting"
	"retailpos/internal/infrastructure/storage/postgres"
)

const (
	ledgerEntriesTable = "acc_ledger_entries"
	ledgerLinesTable   = "acc_ledger_lines"
)

var (
	entryColumns      = postgres.ExtractDBColumns[entity.LedgerEntry]()
	ledgerLineColumns = postgres.ExtractDBColumns[entity.LedgerLine]()
)

var _ posting.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements posting.Repository. The unique key
// (doc_type, doc_id) on acc_ledger_entries makes a concurrent duplicate post a no-op.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Exists implements posting.Repository.
func (r *LedgerRepo) Exists(ctx context.Context, docType string, docID id.ID) (bool, error) {
	var exists bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+ledgerEntriesTable+" WHERE doc_type = $1 AND doc_id = $2)",
		docType, docID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

func (r *LedgerRepo) insertEntryQuery(entry *entity.LedgerEntry) squirrel.InsertBuilder {
	return r.builder.
		Insert(ledgerEntriesTable).
		Columns(entryColumns...).
		Values(postgres.Pick(postgres.StructToMap(entry), entryColumns)...).
		Suffix("ON CONFLICT (doc_type, doc_id) DO NOTHING")
}

// Insert implements posting.Repository.
func (r *LedgerRepo) Insert(ctx context.Context, entry *entity.LedgerEntry) (bool, error) {
	sql, args, err := r.insertEntryQuery(entry).ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if len(entry.Lines) == 0 {
		return true, nil
	}

	q := r.builder.Insert(ledgerLinesTable).Columns(ledgerLineColumns...)
	for i := range entry.Lines {
		line := entry.Lines[i]
		line.EntryID = entry.ID
		if id.IsNil(line.ID) {
			line.ID = id.New()
		}
		q = q.Values(postgres.Pick(postgres.StructToMap(&line), ledgerLineColumns)...)
	}
	sql, args, err = q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return false, fmt.Errorf("insert ledger lines: %w", err)
	}
	return true, nil
}

// GetByDocument implements posting.Repository.
func (r *LedgerRepo) GetByDocument(ctx context.Context, docType string, docID id.ID) (*entity.LedgerEntry, error) {
	sql, args, err := r.builder.
		Select(entryColumns...).
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"doc_type": docType}).
		Where(squirrel.Eq{"doc_id": docID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	entry := &entity.LedgerEntry{}
	if err := pgxscan.Get(ctx, querier, entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", docType+"/"+docID.String())
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}

	sql, args, err = r.builder.
		Select(ledgerLineColumns...).
		From(ledgerLinesTable).
		Where(squirrel.Eq{"entry_id": entry.ID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &entry.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get ledger lines: %w", err)
	}
	return entry, nil
}
