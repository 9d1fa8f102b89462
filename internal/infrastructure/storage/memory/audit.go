package memory

import (
	"context"
	"sort"

	"retailpos/internal/domain/audit"
)

var _ audit.Repository = (*AuditRepo)(nil)

// AuditRepo implements audit.Repository.
type AuditRepo struct {
	store *Store
}

func (r *AuditRepo) Record(ctx context.Context, entry *audit.Entry) error {
	return r.store.write(ctx, func(st *state) error {
		e := *entry
		e.Snapshot = append([]byte(nil), entry.Snapshot...)
		st.audit = append(st.audit, e)
		return nil
	})
}

func (r *AuditRepo) ListByNumber(ctx context.Context, number string) ([]audit.Entry, error) {
	var out []audit.Entry
	err := r.store.read(ctx, func(st *state) error {
		for _, e := range st.audit {
			if e.Number == number {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	return out, err
}
