package memory

import (
	"context"
	"sync"
	"time"

	"retailpos/internal/core/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore keeps keys in a map. Keys live outside business transactions,
// as they do in postgres.
type IdempotencyStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]*idempotency.Record
	now  func() time.Time
}

// NewIdempotencyStore creates an empty key store.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:  ttl,
		keys: make(map[string]*idempotency.Record),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// AcquireKey implements idempotency.Store.
func (s *IdempotencyStore) AcquireKey(_ context.Context, key, operatorID, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.keys[key]
	if !ok || now.After(rec.ExpiresAt) {
		s.keys[key] = &idempotency.Record{
			Key:         key,
			OperatorID:  operatorID,
			Operation:   operation,
			Status:      idempotency.StatusPending,
			RequestHash: requestHash,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	replay, reclaim, err := idempotency.Resolve(rec, false, operatorID, operation, requestHash, now)
	if err != nil {
		return nil, err
	}
	if reclaim {
		rec.UpdatedAt = now
	}
	return replay, nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(_ context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.keys[key]; ok {
		rec.Status = status
		rec.StatusCode = resp.StatusCode
		rec.ContentType = resp.ContentType
		rec.Response = append([]byte(nil), resp.Body...)
		rec.UpdatedAt = s.now()
	}
	return nil
}

// ReleaseKey implements idempotency.Store.
func (s *IdempotencyStore) ReleaseKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.keys[key]; ok && rec.Status == idempotency.StatusPending {
		delete(s.keys, key)
	}
	return nil
}

// PurgeExpired drops keys past their expiry.
func (s *IdempotencyStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, rec := range s.keys {
		if now.After(rec.ExpiresAt) {
			delete(s.keys, key)
			n++
		}
	}
	return n, nil
}
