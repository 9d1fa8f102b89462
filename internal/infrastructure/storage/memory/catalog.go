package memory

import (
	"context"
	"sync"

	"retailpos/internal/core/apperror"
	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
)

var _ catalog.Lookup = (*Catalog)(nil)

// Catalog is an in-memory item lookup. It is not transactional: master data is read-only to the engine.
type Catalog struct {
	mu    sync.RWMutex
	items map[id.ID]catalog.Item
}

// NewCatalog creates a catalog holding items.
func NewCatalog(items ...catalog.Item) *Catalog {
	c := &Catalog{items: make(map[id.ID]catalog.Item, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// Put adds or replaces an item.
func (c *Catalog) Put(ctx context.Context, item catalog.Item) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
	return nil
}

func (c *Catalog) GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return &it, nil
}
