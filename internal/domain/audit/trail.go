// Package audit keeps the revision trail: a snapshot of every document revision
// at the moment it is superseded or voided, written in the same transaction.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
)

// Action is the operation that produced a trail entry.
type Action string

const (
	ActionAmend Action = "amend"
	ActionVoid  Action = "void"
)

// Entry is one snapshot in the revision trail.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	DocumentID id.ID           `db:"document_id" json:"documentId"`
	Number     string          `db:"number" json:"number"`
	Revision   int             `db:"revision" json:"revision"`
	Action     Action          `db:"action" json:"action"`
	OperatorID string          `db:"operator_id" json:"operatorId"`
	Snapshot   json.RawMessage `db:"snapshot" json:"snapshot"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Repository persists trail entries.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	ListByNumber(ctx context.Context, number string) ([]Entry, error)
}

// Trail records document snapshots.
type Trail struct {
	repo Repository
}

// NewTrail creates a revision trail.
func NewTrail(repo Repository) *Trail {
	return &Trail{repo: repo}
}

// Record snapshots doc as it was before action.
func (t *Trail) Record(ctx context.Context, action Action, doc *entity.Document, operatorID string) error {
	snapshot, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	entry := &Entry{
		ID:         id.New(),
		DocumentID: doc.ID,
		Number:     doc.Number,
		Revision:   doc.Revision,
		Action:     action,
		OperatorID: operatorID,
		Snapshot:   snapshot,
		CreatedAt:  time.Now().UTC(),
	}
	if err := t.repo.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// History returns the trail of a logical invoice, oldest first.
func (t *Trail) History(ctx context.Context, number string) ([]Entry, error) {
	return t.repo.ListByNumber(ctx, number)
}

// Decode restores the document captured by an entry.
func Decode(e Entry) (*entity.Document, error) {
	var doc entity.Document
	if err := json.Unmarshal(e.Snapshot, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &doc, nil
}
