// Package numerator provides postgres-backed gap-free document numbering.
// Counters live in sys_sequences and are bumped with UPSERT ... RETURNING inside
// the caller's transaction, so a rolled back save releases its number.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	corenum "retailpos/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for ctx (the active transaction or the pool).
type QuerierFunc func(ctx context.Context) Querier

// Service implements numerator.Generator on sys_sequences.
type Service struct {
	querier QuerierFunc
}

var _ corenum.Generator = (*Service)(nil)

// New creates a numerator service resolving its querier per call.
func New(querier QuerierFunc) *Service {
	return &Service{querier: querier}
}

// Next generates the next document number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., SAL-2026-00001)
func (s *Service) Next(ctx context.Context, cfg corenum.Config, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, cfg.Key(period)).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number %s: %w", cfg.Key(period), err)
	}

	return cfg.Format(period, num), nil
}

// SetNext sets the last issued value (for migrations from a legacy system).
func (s *Service) SetNext(ctx context.Context, cfg corenum.Config, period time.Time, value int64) error {
	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, cfg.Key(period), value).Scan(&result)
	if err != nil {
		return fmt.Errorf("set number %s: %w", cfg.Key(period), err)
	}
	return nil
}

// ParseNumber extracts numeric part from formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}
