package memory

import (
	"context"
	"time"

	"retailpos/internal/core/numerator"
)

var _ numerator.Generator = (*Numerator)(nil)

// Numerator implements numerator.Generator with counters kept in the store
// state, so a rolled back transaction returns its number.
type Numerator struct {
	store *Store
}

func (n *Numerator) Next(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	var num int64
	err := n.store.write(ctx, func(st *state) error {
		key := cfg.Key(period)
		st.sequences[key]++
		num = st.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}
