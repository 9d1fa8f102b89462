// Package context provides request-scoped values: trace identifiers and the operator session.
package context

import (
	"context"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
)

// Session identifies who is acting and where. It is passed explicitly into every
// engine call; nothing in the engine resolves it from process-wide state.
type Session struct {
	OperatorID string
	LocationID id.ID // outlet or warehouse the terminal belongs to
	CounterID  string
}

// Validate checks the session carries the identity every write needs.
func (s Session) Validate() error {
	if s.OperatorID == "" {
		return apperror.NewValidation("operator is required").WithDetail("field", "operatorId")
	}
	if id.IsNil(s.LocationID) {
		return apperror.NewValidation("location is required").WithDetail("field", "locationId")
	}
	return nil
}

// LogFields returns key/value pairs for structured logging.
func (s Session) LogFields() []any {
	return []any{
		"operator_id", s.OperatorID,
		"location_id", s.LocationID,
		"counter_id", s.CounterID,
	}
}

type sessionKey struct{}

// WithSession attaches the session to ctx for log enrichment only.
// Engine operations take the session as an explicit argument.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// GetSession returns the session attached by WithSession.
func GetSession(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
