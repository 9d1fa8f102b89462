package memory

import (
	"context"
	"sort"

	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/domain"
)

var _ domain.PaymentRepository = (*PaymentRepo)(nil)

// PaymentRepo implements domain.PaymentRepository.
type PaymentRepo struct {
	store *Store
}

func (r *PaymentRepo) Create(ctx context.Context, payments []entity.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.store.write(ctx, func(st *state) error {
		st.payments = append(st.payments, payments...)
		return nil
	})
}

func (r *PaymentRepo) ListByDocument(ctx context.Context, docID id.ID) ([]entity.Payment, error) {
	var out []entity.Payment
	err := r.store.read(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.DocumentID == docID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}
