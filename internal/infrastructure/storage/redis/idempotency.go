// Package redis keeps idempotency keys in Redis, for deployments where several
// API instances share keys without a database round trip.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"retailpos/internal/core/idempotency"
)

const keyPrefix = "retailpos:idempotency:"

// swapScript replaces the value only while it still equals ARGV[1].
const swapScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
  return 1
end
return 0
`

// releaseScript deletes the key only while it still equals ARGV[1].
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore stores each key as one JSON record that expires with its TTL.
type IdempotencyStore struct {
	client  *goredis.Client
	ttl     time.Duration
	swap    *goredis.Script
	release *goredis.Script
	now     func() time.Time
}

// Connect opens a client from a redis:// URL and pings it.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewIdempotencyStore creates a key store on client.
func NewIdempotencyStore(client *goredis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client:  client,
		ttl:     ttl,
		swap:    goredis.NewScript(swapScript),
		release: goredis.NewScript(releaseScript),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func storageKey(key string) string {
	return keyPrefix + key
}

// load returns the raw value and its decoded record; goredis.Nil when absent.
func (s *IdempotencyStore) load(ctx context.Context, key string) (string, *idempotency.Record, error) {
	raw, err := s.client.Get(ctx, storageKey(key)).Result()
	if err != nil {
		return "", nil, err
	}
	var rec idempotency.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return raw, &rec, nil
}

// AcquireKey implements idempotency.Store.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, operatorID, operation, requestHash string) (*idempotency.Replay, error) {
	now := s.now()
	payload, err := json.Marshal(idempotency.Record{
		Key:         key,
		OperatorID:  operatorID,
		Operation:   operation,
		Status:      idempotency.StatusPending,
		RequestHash: requestHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("encode idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, storageKey(key), payload, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, rec, err := s.load(ctx, key)
	if errors.Is(err, goredis.Nil) {
		// expired between SETNX and GET; the client retries
		return nil, idempotency.ErrBusy(key)
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	replay, reclaim, err := idempotency.Resolve(rec, false, operatorID, operation, requestHash, now)
	if err != nil || !reclaim {
		return replay, err
	}

	rec.UpdatedAt = now
	next, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode idempotency record: %w", err)
	}
	swapped, err := s.swap.Run(ctx, s.client, []string{storageKey(key)}, raw, next).Int()
	if err != nil {
		return nil, fmt.Errorf("reclaim stale key: %w", err)
	}
	if swapped == 0 {
		return nil, idempotency.ErrBusy(key)
	}
	return nil, nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	_, rec, err := s.load(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load idempotency key: %w", err)
	}

	rec.Status = status
	rec.StatusCode = resp.StatusCode
	rec.ContentType = resp.ContentType
	rec.Response = resp.Body
	rec.UpdatedAt = s.now()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}

	err = s.client.SetArgs(ctx, storageKey(key), payload, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// ReleaseKey implements idempotency.Store.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	raw, rec, err := s.load(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load idempotency key: %w", err)
	}
	if rec.Status != idempotency.StatusPending {
		return nil
	}
	if err := s.release.Run(ctx, s.client, []string{storageKey(key)}, raw).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis expires keys with their TTL.
func (s *IdempotencyStore) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}
