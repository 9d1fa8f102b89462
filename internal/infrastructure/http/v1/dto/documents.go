package dto

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/documents"
	"retailpos/internal/domain/revision"
)

// --- Request DTOs ---

// LineRequest is one line of a sale or purchase.
// A line without unitPrice is pre-filled from the catalog defaults.
type LineRequest struct {
	ItemID       string         `json:"itemId" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	UnitPrice    *types.Money   `json:"unitPrice,omitempty"`
	DiscountPct  types.Money    `json:"discountPct"`
	DiscountAmt  types.Money    `json:"discountAmt"`
	TaxRatePct   types.Money    `json:"taxRatePct"`
	TaxInclusive bool           `json:"taxInclusive"`
}

// ToLines converts request lines to document lines.
func ToLines(ctx context.Context, lookup catalog.Lookup, docType entity.DocType, reqs []LineRequest) ([]entity.Line, error) {
	lines := make([]entity.Line, 0, len(reqs))
	for i, r := range reqs {
		itemID, err := parseID(fmt.Sprintf("lines[%d].itemId", i), r.ItemID)
		if err != nil {
			return nil, err
		}

		if r.UnitPrice == nil {
			line, err := catalog.Prefill(ctx, lookup, docType, itemID, r.Quantity)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
			continue
		}

		lines = append(lines, entity.Line{
			ItemID:       itemID,
			Quantity:     r.Quantity,
			UnitPrice:    *r.UnitPrice,
			DiscountPct:  r.DiscountPct,
			DiscountAmt:  r.DiscountAmt,
			TaxRatePct:   r.TaxRatePct,
			TaxInclusive: r.TaxInclusive,
		})
	}
	return lines, nil
}

// CreateDocumentRequest creates a sale or purchase, optionally finalizing it.
type CreateDocumentRequest struct {
	Type               entity.DocType `json:"docType" binding:"required,oneof=sale purchase"`
	Date               *time.Time     `json:"date,omitempty"`
	PartyID            string         `json:"partyId,omitempty"`
	Comment            string         `json:"comment,omitempty"`
	InvoiceDiscountPct types.Money    `json:"invoiceDiscountPct"`
	InvoiceDiscountAmt types.Money    `json:"invoiceDiscountAmt"`
	Lines              []LineRequest  `json:"lines" binding:"required,min=1,dive"`
	Finalize           bool           `json:"finalize,omitempty"`
	TenderRequest
}

// ToRequest converts the DTO to a service request.
func (r *CreateDocumentRequest) ToRequest(ctx context.Context, lookup catalog.Lookup) (documents.CreateRequest, error) {
	lines, err := ToLines(ctx, lookup, r.Type, r.Lines)
	if err != nil {
		return documents.CreateRequest{}, err
	}
	h := documents.Header{
		PartyID:            r.PartyID,
		Comment:            r.Comment,
		InvoiceDiscountPct: r.InvoiceDiscountPct,
		InvoiceDiscountAmt: r.InvoiceDiscountAmt,
	}
	if r.Date != nil {
		h.Date = *r.Date
	}
	return documents.CreateRequest{Type: r.Type, Header: h, Lines: lines, Finalize: r.Finalize}, nil
}

// UpdateDraftRequest replaces header and lines of a draft.
type UpdateDraftRequest struct {
	Version            int           `json:"version" binding:"required,min=1"`
	Date               *time.Time    `json:"date,omitempty"`
	PartyID            string        `json:"partyId,omitempty"`
	Comment            string        `json:"comment,omitempty"`
	InvoiceDiscountPct types.Money   `json:"invoiceDiscountPct"`
	InvoiceDiscountAmt types.Money   `json:"invoiceDiscountAmt"`
	Lines              []LineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToRequest converts the DTO to a service request for the draft doc.
func (r *UpdateDraftRequest) ToRequest(ctx context.Context, lookup catalog.Lookup, doc *entity.Document) (documents.UpdateRequest, error) {
	lines, err := ToLines(ctx, lookup, doc.Type, r.Lines)
	if err != nil {
		return documents.UpdateRequest{}, err
	}
	h := documents.Header{
		PartyID:            r.PartyID,
		Comment:            r.Comment,
		InvoiceDiscountPct: r.InvoiceDiscountPct,
		InvoiceDiscountAmt: r.InvoiceDiscountAmt,
	}
	if r.Date != nil {
		h.Date = *r.Date
	}
	return documents.UpdateRequest{DocumentID: doc.ID, Version: r.Version, Header: h, Lines: lines}, nil
}

// AmendDocumentRequest creates the next revision of a finalized document.
// Omitted header fields keep their current value.
type AmendDocumentRequest struct {
	Version            int           `json:"version"`
	Date               *time.Time    `json:"date,omitempty"`
	PartyID            *string       `json:"partyId,omitempty"`
	Comment            *string       `json:"comment,omitempty"`
	InvoiceDiscountPct *types.Money  `json:"invoiceDiscountPct,omitempty"`
	InvoiceDiscountAmt *types.Money  `json:"invoiceDiscountAmt,omitempty"`
	Lines              []LineRequest `json:"lines" binding:"required,min=1,dive"`
	TenderRequest
}

// ToRequest converts the DTO to a revision request against prev.
func (r *AmendDocumentRequest) ToRequest(ctx context.Context, lookup catalog.Lookup, prev *entity.Document) (revision.AmendRequest, error) {
	lines, err := ToLines(ctx, lookup, prev.Type, r.Lines)
	if err != nil {
		return revision.AmendRequest{}, err
	}
	return revision.AmendRequest{
		DocumentID: prev.ID,
		Version:    r.Version,
		Lines:      lines,
		Header: revision.Header{
			Date:               r.Date,
			PartyID:            r.PartyID,
			Comment:            r.Comment,
			InvoiceDiscountPct: r.InvoiceDiscountPct,
			InvoiceDiscountAmt: r.InvoiceDiscountAmt,
		},
	}, nil
}

// ListDocumentsRequest filters the document list.
type ListDocumentsRequest struct {
	Type    string `form:"docType" binding:"omitempty,oneof=sale purchase"`
	Status  string `form:"status" binding:"omitempty,oneof=draft final voided"`
	Returns *bool  `form:"returns"`
	// AllRevisions includes superseded revisions
	AllRevisions bool   `form:"allRevisions"`
	Search       string `form:"search"`
	PaginationRequest
}

// ToFilter converts the query to a list filter.
func (r *ListDocumentsRequest) ToFilter() domain.ListFilter {
	r.Defaults()
	f := domain.DefaultListFilter()
	f.Type = entity.DocType(r.Type)
	f.Status = entity.Status(r.Status)
	f.Returns = r.Returns
	f.HeadsOnly = !r.AllRevisions
	f.Search = r.Search
	f.Limit = r.Limit
	f.Offset = r.Offset
	return f
}

// --- Response DTOs ---

// ChainResponse lists the revisions of one logical invoice.
type ChainResponse struct {
	Number    string             `json:"number"`
	HeadID    string             `json:"headId,omitempty"`
	Revisions []*entity.Document `json:"revisions"`
}

// NewChainResponse builds a ChainResponse from a chain ordered oldest first.
func NewChainResponse(number string, chain []*entity.Document) ChainResponse {
	resp := ChainResponse{Number: number, Revisions: chain}
	for _, d := range chain {
		if d.IsHead() {
			resp.HeadID = d.ID.String()
		}
	}
	return resp
}

// ActionsResponse lists the actions currently allowed on a document.
type ActionsResponse struct {
	DocumentID string            `json:"documentId"`
	Actions    []revision.Action `json:"actions"`
}
