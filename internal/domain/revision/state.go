package revision

import (
	"slices"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
)

// Action is an operation a front end may offer on a document.
type Action string

const (
	ActionEdit     Action = "edit"
	ActionFinalize Action = "finalize"
	ActionAmend    Action = "amend"
	ActionReturn   Action = "return"
	ActionVoid     Action = "void"
	ActionRepost   Action = "repost"
)

// CanTransition returns the actions allowed on doc. hasActiveReturns reports
// whether a non-voided return references doc.
//
//	draft                     -> edit, finalize, void
//	final head, original      -> return, and amend/void unless returned
//	final head, return        -> amend, void
//	superseded or voided      -> nothing
//	posting failed (any)      -> repost
func CanTransition(doc *entity.Document, hasActiveReturns bool) []Action {
	actions := make([]Action, 0, 4)

	switch {
	case doc.Status == entity.StatusDraft:
		actions = append(actions, ActionEdit, ActionFinalize, ActionVoid)
	case doc.Status == entity.StatusFinal && doc.IsHead():
		if doc.IsReturn {
			actions = append(actions, ActionAmend, ActionVoid)
			break
		}
		if !hasActiveReturns {
			actions = append(actions, ActionAmend)
		}
		actions = append(actions, ActionReturn)
		if !hasActiveReturns {
			actions = append(actions, ActionVoid)
		}
	}

	if doc.PostingStatus == entity.PostingFailed {
		actions = append(actions, ActionRepost)
	}
	return actions
}

// Allowed reports whether action is in CanTransition(doc, hasActiveReturns).
func Allowed(doc *entity.Document, hasActiveReturns bool, action Action) bool {
	return slices.Contains(CanTransition(doc, hasActiveReturns), action)
}

// Require returns an InvalidTransition AppError unless action is allowed.
// A document blocked only by its active returns gets a business rule error naming them.
func Require(doc *entity.Document, hasActiveReturns bool, action Action) error {
	if Allowed(doc, hasActiveReturns, action) {
		return nil
	}
	if hasActiveReturns && Allowed(doc, false, action) {
		return apperror.NewBusinessRule(apperror.CodeInvalidTransition,
			"Document has active returns; void them first").
			WithDetail("action", string(action)).
			WithDetail("document_id", doc.ID.String())
	}
	state := string(doc.Status)
	if doc.Status == entity.StatusFinal && !doc.IsHead() {
		state = "superseded"
	}
	return apperror.NewInvalidTransition(string(action), state)
}
