package dto

import (
	"retailpos/internal/core/types"
	"retailpos/internal/domain/catalog"
)

// StockResponse is the on-hand of one register cell.
type StockResponse struct {
	ItemID     string         `json:"itemId"`
	LocationID string         `json:"locationId"`
	OnHand     types.Quantity `json:"onHand"`
}

// PutItemRequest creates or replaces a catalog item.
type PutItemRequest struct {
	SKU          string      `json:"sku" binding:"required"`
	Name         string      `json:"name" binding:"required"`
	Barcode      *string     `json:"barcode,omitempty"`
	Price        types.Money `json:"price"`
	Cost         types.Money `json:"cost"`
	TaxRatePct   types.Money `json:"taxRatePct"`
	TaxInclusive bool        `json:"taxInclusive"`
	DiscountPct  types.Money `json:"discountPct"`
	DiscountAmt  types.Money `json:"discountAmt"`
	IsActive     *bool       `json:"isActive,omitempty"`
}

// ToItem converts the DTO to a catalog item with the given id.
func (r *PutItemRequest) ToItem(itemID string) (catalog.Item, error) {
	parsed, err := parseID("id", itemID)
	if err != nil {
		return catalog.Item{}, err
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return catalog.Item{
		ID:           parsed,
		SKU:          r.SKU,
		Name:         r.Name,
		Barcode:      r.Barcode,
		Price:        r.Price,
		Cost:         r.Cost,
		TaxRatePct:   r.TaxRatePct,
		TaxInclusive: r.TaxInclusive,
		DiscountPct:  r.DiscountPct,
		DiscountAmt:  r.DiscountAmt,
		IsActive:     active,
	}, nil
}
