package stockguard

import (
	"context"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
)

// Repository is the storage contract of the stock register.
// Implementations must run inside the transaction carried by ctx.
type Repository interface {
	// LockBalances serialises writers on the given cells until the transaction ends
	// and returns their on-hand quantity (sum of all movements). Keys absent from
	// the register map to zero.
	LockBalances(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]types.Quantity, error)

	// CreateMovements appends movements to the register.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorders returns all movements written by the given documents.
	GetMovementsByRecorders(ctx context.Context, recorderIDs []id.ID) ([]entity.StockMovement, error)

	// GetBalance returns current on-hand without locking (read path only).
	GetBalance(ctx context.Context, key entity.StockKey) (types.Quantity, error)
}
