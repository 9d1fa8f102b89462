package entity

import (
	"time"

	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// RecordType defines movement direction in the stock register.
type RecordType string

const (
	// RecordTypeReceipt increases on-hand quantity
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases on-hand quantity
	RecordTypeExpense RecordType = "expense"
)

// MovementReason says which engine operation produced a movement.
type MovementReason string

const (
	ReasonDocument MovementReason = "document" // finalized original or return
	ReasonRevision MovementReason = "revision" // net delta of an amendment
	ReasonVoid     MovementReason = "void"     // reversal of a voided head
	ReasonOpening  MovementReason = "opening"  // seeded opening balance
)

// StockMovement is one append-only row of the stock register.
// Movements are never updated or deleted; corrections are new rows.
type StockMovement struct {
	// LineID is the unique identifier of this movement row (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the document revision that created this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the ledger type of the recorder (sale, purchase_return, ...)
	RecorderType string `db:"recorder_type" json:"recorderType"`

	Reason MovementReason `db:"reason" json:"reason"`

	// Period is the business date of the movement
	Period time.Time `db:"period" json:"period"`

	RecordType RecordType `db:"record_type" json:"recordType"`

	// Dimensions
	LocationID id.ID `db:"location_id" json:"locationId"`
	ItemID     id.ID `db:"item_id" json:"itemId"`

	// Resource; always positive, direction is carried by RecordType
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a movement from a signed on-hand delta.
func NewStockMovement(
	recorderID id.ID,
	recorderType string,
	reason MovementReason,
	period time.Time,
	locationID, itemID id.ID,
	delta types.Quantity,
) StockMovement {
	recordType := RecordTypeReceipt
	if delta.IsNegative() {
		recordType = RecordTypeExpense
	}
	return StockMovement{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Reason:       reason,
		Period:       period,
		RecordType:   recordType,
		LocationID:   locationID,
		ItemID:       itemID,
		Quantity:     delta.Abs(),
		CreatedAt:    time.Now().UTC(),
	}
}

// SignedQuantity returns quantity with sign based on record type.
// Receipt = positive, Expense = negative.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.RecordType == RecordTypeExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// StockKey identifies one stock register cell.
type StockKey struct {
	ItemID     id.ID
	LocationID id.ID
}

// StockBalance is the on-hand quantity of one item at one location.
type StockBalance struct {
	LocationID id.ID          `db:"location_id" json:"locationId"`
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
}
