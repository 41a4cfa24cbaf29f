package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderArchive хранит последние снимки заказов в памяти.
type OrderArchive struct {
	mu        sync.RWMutex
	snapshots map[int64]domain.OrderSnapshot
}

// NewOrderArchive создаёт in-memory архив снимков.
func NewOrderArchive() *OrderArchive {
	return &OrderArchive{snapshots: make(map[int64]domain.OrderSnapshot)}
}

// Archive сохраняет снимок, заменяя предыдущий снимок того же заказа.
func (a *OrderArchive) Archive(ctx context.Context, snapshot domain.OrderSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots[snapshot.ID] = snapshot
	return nil
}

// Snapshot возвращает сохранённый снимок заказа.
func (a *OrderArchive) Snapshot(orderID int64) (domain.OrderSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[orderID]
	return snap, ok
}

var _ domain.OrderArchive = (*OrderArchive)(nil)
