// Package cache provides caching infrastructure with PostgreSQL LISTEN/NOTIFY support.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/catalog"
	"retailpos/pkg/logger"
)

// ItemsChannel is notified by a cat_items trigger with the changed item id as payload.
const ItemsChannel = "cat_items_changed"

var _ catalog.Store = (*ItemCache)(nil)

// ItemCache is a read-through cache in front of the item catalog. Lines are
// pre-filled from it on every sale, while items change rarely and from the
// back office, so entries are kept until a NOTIFY invalidates them.
type ItemCache struct {
	store catalog.Store
	pool  *pgxpool.Pool

	mu    sync.RWMutex
	items map[id.ID]catalog.Item

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewItemCache creates a cache over store. pool may be nil; the cache then
// sees only the writes made through it.
func NewItemCache(store catalog.Store, pool *pgxpool.Pool) *ItemCache {
	return &ItemCache{
		store: store,
		pool:  pool,
		items: make(map[id.ID]catalog.Item),
	}
}

// GetItem implements catalog.Lookup.
func (c *ItemCache) GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error) {
	c.mu.RLock()
	item, ok := c.items[itemID]
	c.mu.RUnlock()
	if ok {
		return &item, nil
	}

	loaded, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[itemID] = *loaded
	c.mu.Unlock()
	return loaded, nil
}

// Put writes through to the store and drops the cached copy.
func (c *ItemCache) Put(ctx context.Context, item catalog.Item) error {
	if err := c.store.Put(ctx, item); err != nil {
		return err
	}
	c.Invalidate(item.ID.String())
	return nil
}

// Invalidate drops one item, or everything when payload is not an item id.
func (c *ItemCache) Invalidate(payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	itemID, err := id.Parse(strings.TrimSpace(payload))
	if err != nil {
		c.items = make(map[id.ID]catalog.Item)
		return
	}
	delete(c.items, itemID)
}

// Len returns the number of cached items.
func (c *ItemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Start begins listening for NOTIFY events. It is a no-op without a pool.
func (c *ItemCache) Start(ctx context.Context) {
	if c.pool == nil {
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "item cache started")
}

// Stop gracefully stops the cache listener.
func (c *ItemCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "item cache stopped")
}

func (c *ItemCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err = conn.Exec(c.ctx, "LISTEN "+ItemsChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		// Changes made while we were not listening are unknown.
		c.Invalidate("")
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *ItemCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				// timeout, keep listening
				continue
			}
			logger.Warn(c.ctx, "lost LISTEN connection", "error", err)
			return
		}

		logger.Debug(c.ctx, "item changed", "payload", notification.Payload)
		c.Invalidate(notification.Payload)
	}
}
