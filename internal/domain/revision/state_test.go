package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
)

func TestCanTransition(t *testing.T) {
	next := id.New()

	tests := []struct {
		name     string
		status   entity.Status
		isReturn bool
		returned bool
		revised  bool
		posting  entity.PostingStatus
		want     []Action
	}{
		{name: "draft", status: entity.StatusDraft, posting: entity.PostingNone, want: []Action{ActionEdit, ActionFinalize, ActionVoid}},
		{name: "final head", status: entity.StatusFinal, posting: entity.PostingPosted, want: []Action{ActionAmend, ActionReturn, ActionVoid}},
		{name: "final head with returns", status: entity.StatusFinal, returned: true, posting: entity.PostingPosted, want: []Action{ActionReturn}},
		{name: "final return", status: entity.StatusFinal, isReturn: true, posting: entity.PostingPosted, want: []Action{ActionAmend, ActionVoid}},
		{name: "superseded", status: entity.StatusFinal, revised: true, posting: entity.PostingPosted, want: []Action{}},
		{name: "voided", status: entity.StatusVoided, posting: entity.PostingPosted, want: []Action{}},
		{name: "posting failed", status: entity.StatusFinal, posting: entity.PostingFailed, want: []Action{ActionAmend, ActionReturn, ActionVoid, ActionRepost}},
		{name: "superseded posting failed", status: entity.StatusFinal, revised: true, posting: entity.PostingFailed, want: []Action{ActionRepost}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := entity.NewDocument(entity.DocTypeSale, id.New(), "op")
			doc.Status = tt.status
			doc.IsReturn = tt.isReturn
			doc.PostingStatus = tt.posting
			if tt.revised {
				doc.RevisedToID = &next
			}
			assert.Equal(t, tt.want, CanTransition(doc, tt.returned))
		})
	}
}

func TestRequire(t *testing.T) {
	doc := entity.NewDocument(entity.DocTypeSale, id.New(), "op")
	doc.Status = entity.StatusFinal

	assert.NoError(t, Require(doc, false, ActionAmend))

	err := Require(doc, true, ActionAmend)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "amend", appErr.Details["action"])

	next := id.New()
	doc.RevisedToID = &next
	err = Require(doc, false, ActionReturn)
	appErr, _ = apperror.AsAppError(err)
	assert.Equal(t, "superseded", appErr.Details["status"])
}
