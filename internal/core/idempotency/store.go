// Package idempotency defines the contract for replaying responses of requests
// retried with the same key. Tills retry on timeouts, and a replayed finalize
// must not capture a second payment.
package idempotency

import (
	"context"
	"time"

	"retailpos/internal/core/apperror"
)

// Status is the state of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key blocks retries before it can be reclaimed
// (the request that took it most likely died).
const StaleAfter = time.Minute

// Record is a stored key.
type Record struct {
	Key         string    `db:"idempotency_key"`
	OperatorID  string    `db:"operator_id"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"`
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Replay is a cached response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists keys.
type Store interface {
	// AcquireKey takes the key for this request. It returns (nil, nil) when the
	// caller should execute the request, a Replay when the request already
	// completed, or an AppError when the key is busy or belongs to another request.
	AcquireKey(ctx context.Context, key, operatorID, operation, requestHash string) (*Replay, error)

	// CompleteKey stores the response of a finished request.
	CompleteKey(ctx context.Context, key string, status Status, resp Replay) error

	// ReleaseKey forgets the key so the request can be retried.
	ReleaseKey(ctx context.Context, key string) error
}

// Resolve decides what an existing record means for a new request with the same
// key. fresh reports whether the record was just created by this request.
func Resolve(rec *Record, fresh bool, operatorID, operation, requestHash string, now time.Time) (replay *Replay, reclaim bool, err error) {
	if fresh {
		return nil, false, nil
	}
	if rec.OperatorID != operatorID || rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, false, apperror.NewIdempotencyMismatch(rec.Key)
	}
	switch rec.Status {
	case StatusSuccess, StatusFailed:
		return &Replay{StatusCode: rec.StatusCode, ContentType: rec.ContentType, Body: rec.Response}, false, nil
	default:
		if now.Sub(rec.UpdatedAt) > StaleAfter {
			return nil, true, nil
		}
		return nil, false, ErrBusy(rec.Key)
	}
}

// ErrBusy is returned while another request holds the key.
func ErrBusy(key string) error {
	return apperror.NewIdempotencyConflict(key)
}
