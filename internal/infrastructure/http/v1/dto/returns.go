package dto

import (
	"fmt"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/returns"
)

// ReturnLineRequest is one line of a return.
// Against an invoice only originalLineId and quantity are read.
type ReturnLineRequest struct {
	OriginalLineID *string        `json:"originalLineId,omitempty"`
	Quantity       types.Quantity `json:"quantity"`

	ItemID       string      `json:"itemId,omitempty"`
	UnitPrice    types.Money `json:"unitPrice"`
	DiscountPct  types.Money `json:"discountPct"`
	DiscountAmt  types.Money `json:"discountAmt"`
	TaxRatePct   types.Money `json:"taxRatePct"`
	TaxInclusive bool        `json:"taxInclusive"`
}

func toReturnLines(reqs []ReturnLineRequest) ([]returns.LineRequest, error) {
	out := make([]returns.LineRequest, 0, len(reqs))
	for i, r := range reqs {
		origID, err := parseOptionalID(fmt.Sprintf("lines[%d].originalLineId", i), r.OriginalLineID)
		if err != nil {
			return nil, err
		}
		var itemID id.ID
		if r.ItemID != "" {
			if itemID, err = parseID(fmt.Sprintf("lines[%d].itemId", i), r.ItemID); err != nil {
				return nil, err
			}
		}
		out = append(out, returns.LineRequest{
			OriginalLineID: origID,
			Quantity:       r.Quantity,
			ItemID:         itemID,
			UnitPrice:      r.UnitPrice,
			DiscountPct:    r.DiscountPct,
			DiscountAmt:    r.DiscountAmt,
			TaxRatePct:     r.TaxRatePct,
			TaxInclusive:   r.TaxInclusive,
		})
	}
	return out, nil
}

// CreateReturnRequest accepts a return, with or without an original invoice.
type CreateReturnRequest struct {
	RefDocumentID *string             `json:"refDocumentId,omitempty"`
	Type          entity.DocType      `json:"docType,omitempty" binding:"omitempty,oneof=sale purchase"`
	PartyID       string              `json:"partyId,omitempty"`
	Comment       string              `json:"comment,omitempty"`
	Lines         []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
	TenderRequest
}

// ToRequest converts the DTO to a service request.
func (r *CreateReturnRequest) ToRequest() (returns.Request, error) {
	refID, err := parseOptionalID("refDocumentId", r.RefDocumentID)
	if err != nil {
		return returns.Request{}, err
	}
	lines, err := toReturnLines(r.Lines)
	if err != nil {
		return returns.Request{}, err
	}
	return returns.Request{
		RefDocumentID: refID,
		Type:          r.Type,
		PartyID:       r.PartyID,
		Comment:       r.Comment,
		Lines:         lines,
	}, nil
}

// AmendReturnRequest creates the next revision of an accepted return.
type AmendReturnRequest struct {
	Version int                 `json:"version"`
	Comment *string             `json:"comment,omitempty"`
	Lines   []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
	TenderRequest
}

// ToRequest converts the DTO to a service request for returnID.
func (r *AmendReturnRequest) ToRequest(returnID id.ID) (returns.AmendRequest, error) {
	lines, err := toReturnLines(r.Lines)
	if err != nil {
		return returns.AmendRequest{}, err
	}
	return returns.AmendRequest{ReturnID: returnID, Version: r.Version, Comment: r.Comment, Lines: lines}, nil
}
