// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; implementations live in
// infrastructure/storage (postgres for production, memory for tests and demos).
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn inside the transaction already carried by ctx,
	// guarded by a savepoint: an error from fn rolls back only fn's writes and is
	// returned to the caller, leaving the outer transaction usable.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}
