// Package document_repo provides the PostgreSQL document and payment repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
	"retailpos/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "doc_documents"
	linesTable     = "doc_lines"
)

var (
	headerColumns = postgres.ExtractDBColumns[entity.Document]()
	lineColumns   = postgres.ExtractDBColumns[entity.Line]()
)

var _ domain.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implements domain.DocumentRepository.
// Headers live in doc_documents, lines in doc_lines.
type DocumentRepo struct {
	txm      *postgres.TxManager
	builder  squirrel.StatementBuilderType
	inserter *postgres.BatchInserter
}

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:      txm,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// Builder returns the statement builder (Dollar placeholders).
func (r *DocumentRepo) Builder() squirrel.StatementBuilderType {
	return r.builder
}

// Create inserts the header and its lines. A clash on id or on
// (number, revision) is reported as a concurrent modification.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	data := postgres.StructToMap(doc)
	sql, args, err := r.builder.
		Insert(documentsTable).
		Columns(headerColumns...).
		Values(postgres.Pick(data, headerColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Classify(err, "document", doc.ID.String(), "insert document")
	}
	return r.insertLines(ctx, doc.Lines)
}

func (r *DocumentRepo) insertLines(ctx context.Context, lines []entity.Line) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(lines))
	for i := range lines {
		rows = append(rows, postgres.Pick(postgres.StructToMap(&lines[i]), lineColumns))
	}

	if r.txm.GetTx(ctx) != nil {
		if _, err := r.inserter.CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
			return err
		}
		return nil
	}

	q := r.builder.Insert(linesTable).Columns(lineColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// updateQuery builds the optimistic header update: immutable columns are left
// out and the row must still carry doc.Version.
func (r *DocumentRepo) updateQuery(doc *entity.Document) squirrel.UpdateBuilder {
	data := postgres.StructToMap(doc)
	set := make(map[string]any, len(headerColumns))
	for _, col := range headerColumns {
		switch col {
		case "id", "created_at", "created_by", "version":
			continue
		}
		set[col] = data[col]
	}

	return r.builder.
		Update(documentsTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version})
}

// Update implements domain.DocumentRepository.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	sql, args, err := r.updateQuery(doc).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.Classify(err, "document", doc.ID.String(), "update document")
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStale(ctx, doc.ID)
	}

	doc.Version++
	return nil
}

func (r *DocumentRepo) missingOrStale(ctx context.Context, docID id.ID) error {
	var exists bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+documentsTable+" WHERE id = $1)", docID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return apperror.NewNotFound("document", docID.String())
	}
	return apperror.NewConcurrentModification("document", docID.String())
}

// ReplaceLines implements domain.DocumentRepository.
func (r *DocumentRepo) ReplaceLines(ctx context.Context, doc *entity.Document) error {
	sql, args, err := r.builder.
		Delete(linesTable).
		Where(squirrel.Eq{"document_id": doc.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	return r.insertLines(ctx, doc.Lines)
}

// SetPostingStatus implements domain.DocumentRepository.
func (r *DocumentRepo) SetPostingStatus(ctx context.Context, docID id.ID, status entity.PostingStatus) error {
	sql, args, err := r.builder.
		Update(documentsTable).
		Set("posting_status", status).
		Where(squirrel.Eq{"id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set posting status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}
	return nil
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(headerColumns...).From(documentsTable)
}

// GetByID implements domain.DocumentRepository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID)
}

// GetForUpdate implements domain.DocumentRepository. The header row stays locked
// until the surrounding transaction ends.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

func (r *DocumentRepo) get(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (*entity.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &entity.Document{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	if err := r.attachLines(ctx, []*entity.Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// attachLines loads the lines of docs in one query.
func (r *DocumentRepo) attachLines(ctx context.Context, docs []*entity.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]id.ID, len(docs))
	byID := make(map[id.ID]*entity.Document, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		byID[d.ID] = d
		d.Lines = make([]entity.Line, 0)
	}

	sql, args, err := r.builder.
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("document_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}

	var lines []entity.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return fmt.Errorf("select lines: %w", err)
	}
	for _, l := range lines {
		if d, ok := byID[l.DocumentID]; ok {
			d.Lines = append(d.Lines, l)
		}
	}
	return nil
}

// ListChain implements domain.DocumentRepository.
func (r *DocumentRepo) ListChain(ctx context.Context, number string) ([]*entity.Document, error) {
	if number == "" {
		return []*entity.Document{}, nil
	}
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"number": number}).
		OrderBy("revision").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectWithLines(ctx, sql, args)
}

// activeReturns selects the final chain heads of returns against originalID.
func (r *DocumentRepo) activeReturns(originalID id.ID) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{
			"is_return":       true,
			"ref_document_id": originalID,
			"status":          entity.StatusFinal,
			"revised_to_id":   nil,
		}).
		OrderBy("number")
}

// ListActiveReturns implements domain.DocumentRepository.
func (r *DocumentRepo) ListActiveReturns(ctx context.Context, originalID id.ID) ([]*entity.Document, error) {
	sql, args, err := r.activeReturns(originalID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectWithLines(ctx, sql, args)
}

func (r *DocumentRepo) selectWithLines(ctx context.Context, sql string, args []any) ([]*entity.Document, error) {
	var docs []*entity.Document
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	if err := r.attachLines(ctx, docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*entity.Document{}
	}
	return docs, nil
}

// returnedQuery sums returned quantities per original line over active returns.
func (r *DocumentRepo) returnedQuery(originalID id.ID, excludeDocID *id.ID) squirrel.SelectBuilder {
	q := r.builder.
		Select("l.ref_line_id", "SUM(ABS(l.quantity))::bigint AS quantity").
		From(linesTable + " l").
		Join(documentsTable + " d ON d.id = l.document_id").
		Where(squirrel.Eq{
			"d.is_return":       true,
			"d.ref_document_id": originalID,
			"d.status":          entity.StatusFinal,
			"d.revised_to_id":   nil,
		}).
		Where(squirrel.NotEq{"l.ref_line_id": nil})
	if excludeDocID != nil {
		q = q.Where(squirrel.NotEq{"d.id": *excludeDocID})
	}
	return q.GroupBy("l.ref_line_id")
}

type returnedRow struct {
	RefLineID id.ID          `db:"ref_line_id"`
	Quantity  types.Quantity `db:"quantity"`
}

// ReturnedQuantities implements domain.DocumentRepository.
func (r *DocumentRepo) ReturnedQuantities(ctx context.Context, originalID id.ID, excludeDocID *id.ID) (map[id.ID]types.Quantity, error) {
	sql, args, err := r.returnedQuery(originalID, excludeDocID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []returnedRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum returned quantities: %w", err)
	}

	out := make(map[id.ID]types.Quantity, len(rows))
	for _, row := range rows {
		out[row.RefLineID] = row.Quantity
	}
	return out, nil
}

func applyFilter(q squirrel.SelectBuilder, filter domain.ListFilter) squirrel.SelectBuilder {
	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"doc_type": filter.Type})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Returns != nil {
		q = q.Where(squirrel.Eq{"is_return": *filter.Returns})
	}
	if filter.HeadsOnly {
		q = q.Where(squirrel.Eq{"revised_to_id": nil})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	return q
}

// List implements domain.DocumentRepository.
func (r *DocumentRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Document], error) {
	result := domain.ListResult[*entity.Document]{Limit: filter.Limit, Offset: filter.Offset}
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := applyFilter(r.builder.Select("COUNT(*)").From(documentsTable), filter).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count documents: %w", err)
	}

	q := applyFilter(r.baseSelect(), filter).OrderBy("date DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var docs []*entity.Document
	if err := pgxscan.Select(ctx, querier, &docs, sql, args...); err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []*entity.Document{}
	}
	result.Items = docs
	return result, nil
}
