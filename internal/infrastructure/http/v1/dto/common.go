// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/settlement"
)

// --- Pagination ---

// PaginationRequest contains pagination parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults sets default pagination values.
func (p *PaginationRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = 50
	}
}

// --- Settlement ---

// TenderRequest carries what the operator collected or paid out for the call.
// The server never prompts; the till settles first and sends the tenders along.
type TenderRequest struct {
	Tenders []settlement.Tender `json:"tenders"`
	// Cancelled reports the operator backed out of the payment dialog
	Cancelled bool `json:"cancelled,omitempty"`
}

// Capture returns the tenders as a settlement capture.
func (r TenderRequest) Capture() settlement.Capture {
	return settlement.Prepared{Tenders: r.Tenders, Cancelled: r.Cancelled}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// parseID parses a UUID field, naming the field on failure.
func parseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id").WithDetail("field", field)
	}
	return v, nil
}

// parseOptionalID parses an optional UUID field.
func parseOptionalID(field string, raw *string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	v, err := parseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
