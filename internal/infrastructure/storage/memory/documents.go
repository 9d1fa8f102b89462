package memory

import (
	"context"
	"sort"
	"strings"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/entity"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain"
)

var _ domain.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implements domain.DocumentRepository.
type DocumentRepo struct {
	store *Store
}

func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.docs[doc.ID]; ok {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		if doc.Number != "" {
			for _, d := range st.docs {
				if d.Number == doc.Number && d.Revision == doc.Revision {
					return apperror.NewConcurrentModification("document", doc.Number)
				}
			}
		}
		st.docs[doc.ID] = cloneDoc(doc)
		return nil
	})
}

func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	return r.store.write(ctx, func(st *state) error {
		stored, ok := st.docs[doc.ID]
		if !ok {
			return apperror.NewNotFound("document", doc.ID.String())
		}
		if stored.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}

		next := cloneDoc(doc)
		next.Lines = stored.Lines
		next.Version = stored.Version + 1
		st.docs[doc.ID] = next

		doc.Version = next.Version
		return nil
	})
}

func (r *DocumentRepo) ReplaceLines(ctx context.Context, doc *entity.Document) error {
	return r.store.write(ctx, func(st *state) error {
		stored, ok := st.docs[doc.ID]
		if !ok {
			return apperror.NewNotFound("document", doc.ID.String())
		}
		stored.Lines = cloneLines(doc.Lines)
		return nil
	})
}

func (r *DocumentRepo) SetPostingStatus(ctx context.Context, docID id.ID, status entity.PostingStatus) error {
	return r.store.write(ctx, func(st *state) error {
		stored, ok := st.docs[docID]
		if !ok {
			return apperror.NewNotFound("document", docID.String())
		}
		stored.PostingStatus = status
		return nil
	})
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*entity.Document, error) {
	var out *entity.Document
	err := r.store.read(ctx, func(st *state) error {
		stored, ok := st.docs[docID]
		if !ok {
			return apperror.NewNotFound("document", docID.String())
		}
		out = cloneDoc(stored)
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID: transactions are serialised, so every read inside one is locked.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *DocumentRepo) ListChain(ctx context.Context, number string) ([]*entity.Document, error) {
	var out []*entity.Document
	if number == "" {
		return out, nil
	}
	err := r.store.read(ctx, func(st *state) error {
		for _, d := range st.docs {
			if d.Number == number {
				out = append(out, cloneDoc(d))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	return out, err
}

func activeReturns(st *state, originalID id.ID) []*entity.Document {
	var out []*entity.Document
	for _, d := range st.docs {
		if d.IsReturn && d.RefDocumentID != nil && *d.RefDocumentID == originalID &&
			d.Status == entity.StatusFinal && d.IsHead() {
			out = append(out, d)
		}
	}
	return out
}

func (r *DocumentRepo) ListActiveReturns(ctx context.Context, originalID id.ID) ([]*entity.Document, error) {
	var out []*entity.Document
	err := r.store.read(ctx, func(st *state) error {
		for _, d := range activeReturns(st, originalID) {
			out = append(out, cloneDoc(d))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

func (r *DocumentRepo) ReturnedQuantities(ctx context.Context, originalID id.ID, excludeDocID *id.ID) (map[id.ID]types.Quantity, error) {
	out := make(map[id.ID]types.Quantity)
	err := r.store.read(ctx, func(st *state) error {
		for _, d := range activeReturns(st, originalID) {
			if excludeDocID != nil && d.ID == *excludeDocID {
				continue
			}
			for _, l := range d.Lines {
				if l.RefLineID == nil {
					continue
				}
				out[*l.RefLineID] += l.Quantity.Abs()
			}
		}
		return nil
	})
	return out, err
}

func (r *DocumentRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Document], error) {
	result := domain.ListResult[*entity.Document]{Limit: filter.Limit, Offset: filter.Offset}

	var matched []*entity.Document
	err := r.store.read(ctx, func(st *state) error {
		for _, d := range st.docs {
			if filter.Type != "" && d.Type != filter.Type {
				continue
			}
			if filter.Status != "" && d.Status != filter.Status {
				continue
			}
			if filter.Returns != nil && d.IsReturn != *filter.Returns {
				continue
			}
			if filter.HeadsOnly && !d.IsHead() {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToUpper(d.Number), strings.ToUpper(filter.Search)) {
				continue
			}
			header := cloneDoc(d)
			header.Lines = nil
			matched = append(matched, header)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	result.TotalCount = int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	result.Items = matched[start:end]
	return result, nil
}

