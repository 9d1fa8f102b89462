// Package catalog is the read-only item lookup the engine uses to pre-fill new lines.
// Master data is maintained elsewhere.
package catalog

import (
	"context"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Item is the catalog view of a sellable/purchasable item.
type Item struct {
	ID   id.ID  `db:"id" json:"id"`
	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`

	// Barcode is the item barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	// Default sale price and purchase cost per unit
	Price types.Money `db:"price" json:"price"`
	Cost  types.Money `db:"cost" json:"cost"`

	TaxRatePct   types.Money `db:"tax_rate_pct" json:"taxRatePct"`
	TaxInclusive bool        `db:"tax_inclusive" json:"taxInclusive"`

	// Default line discount; at most one is non-zero
	DiscountPct types.Money `db:"discount_pct" json:"discountPct"`
	DiscountAmt types.Money `db:"discount_amt" json:"discountAmt"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if i.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if i.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if i.Price.IsNegative() || i.Cost.IsNegative() {
		return apperror.NewValidation("price and cost must not be negative")
	}
	if i.TaxRatePct.IsNegative() {
		return apperror.NewValidation("tax rate must not be negative").WithDetail("field", "taxRatePct")
	}
	if !i.DiscountPct.IsZero() && !i.DiscountAmt.IsZero() {
		return apperror.NewValidation("only one of discountPct and discountAmt may be set")
	}
	return nil
}

// Lookup resolves items by id.
type Lookup interface {
	// GetItem returns the item or a not-found AppError.
	GetItem(ctx context.Context, itemID id.ID) (*Item, error)
}

// Store is a Lookup that also accepts items (seeding, back-office sync).
type Store interface {
	Lookup
	Put(ctx context.Context, item Item) error
}

// Prefill builds a new line from the item defaults. Sales take the price, purchases the cost.
func Prefill(ctx context.Context, lookup Lookup, docType entity.DocType, itemID id.ID, qty types.Quantity) (entity.Line, error) {
	item, err := lookup.GetItem(ctx, itemID)
	if err != nil {
		return entity.Line{}, err
	}
	if !item.IsActive {
		return entity.Line{}, apperror.NewValidation("item is not active").
			WithDetail("item_id", itemID.String())
	}

	price := item.Price
	if docType == entity.DocTypePurchase {
		price = item.Cost
	}

	return entity.Line{
		ID:           id.New(),
		ItemID:       item.ID,
		Quantity:     qty,
		UnitPrice:    price,
		DiscountPct:  item.DiscountPct,
		DiscountAmt:  item.DiscountAmt,
		TaxRatePct:   item.TaxRatePct,
		TaxInclusive: item.TaxInclusive,
	}, nil
}
