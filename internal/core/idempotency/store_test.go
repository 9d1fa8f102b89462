package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/core/apperror"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Record{
		Key:         "k1",
		OperatorID:  "op-1",
		Operation:   "POST /api/v1/documents",
		RequestHash: "h",
		Status:      StatusPending,
		UpdatedAt:   now.Add(-10 * time.Second),
	}

	t.Run("fresh key executes", func(t *testing.T) {
		replay, reclaim, err := Resolve(&base, true, "op-1", base.Operation, "h", now)
		require.NoError(t, err)
		assert.Nil(t, replay)
		assert.False(t, reclaim)
	})

	t.Run("pending key conflicts", func(t *testing.T) {
		_, _, err := Resolve(&base, false, "op-1", base.Operation, "h", now)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("stale pending key is reclaimed", func(t *testing.T) {
		rec := base
		rec.UpdatedAt = now.Add(-2 * StaleAfter)
		replay, reclaim, err := Resolve(&rec, false, "op-1", rec.Operation, "h", now)
		require.NoError(t, err)
		assert.Nil(t, replay)
		assert.True(t, reclaim)
	})

	t.Run("completed key replays", func(t *testing.T) {
		rec := base
		rec.Status = StatusSuccess
		rec.StatusCode = 201
		rec.ContentType = "application/json"
		rec.Response = []byte(`{"ok":true}`)
		replay, _, err := Resolve(&rec, false, "op-1", rec.Operation, "h", now)
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)
		assert.Equal(t, `{"ok":true}`, string(replay.Body))
	})

	t.Run("different body is rejected", func(t *testing.T) {
		rec := base
		rec.Status = StatusSuccess
		_, _, err := Resolve(&rec, false, "op-1", rec.Operation, "other", now)
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})
}
