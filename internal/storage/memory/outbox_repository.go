package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type outboxState uint8

const (
	outboxPending outboxState = iota
	outboxSent
	outboxFailed
)

// outboxEntry: событие заказа и его состояние доставки.
type outboxEntry struct {
	msg      domain.OutboxMessage
	state    outboxState
	attempts int
	queuedAt time.Time
}

// OutboxRepository: outbox событий заказов в памяти. Записи хранятся в порядке постановки.
type OutboxRepository struct {
	mu      sync.RWMutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
	now     func() time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		byID: make(map[string]*outboxEntry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue ставит событие в очередь; повтор с тем же ID ничего не меняет.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, dup := r.byID[msg.ID]; dup {
		return msg, nil
	}
	entry := &outboxEntry{msg: msg, queuedAt: r.now()}
	r.entries = append(r.entries, entry)
	r.byID[msg.ID] = entry
	return msg, nil
}

// PullPending: до limit ожидающих событий, старые первыми. limit <= 0 означает 100.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	batch := make([]domain.OutboxMessage, 0, min(limit, len(r.entries)))
	for _, entry := range r.entries {
		if len(batch) == limit {
			break
		}
		if entry.state == outboxPending {
			batch = append(batch, entry.msg)
		}
	}
	return batch, nil
}

func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, entry := range r.entries {
		if entry.state != outboxPending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = entry.queuedAt
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(id string) error { return r.settle(id, outboxSent) }

func (r *OutboxRepository) MarkFailed(id string) error { return r.settle(id, outboxFailed) }

// AllPending: все ожидающие события, для тестов и отладки.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	n := len(r.entries)
	r.mu.RUnlock()
	msgs, _ := r.PullPending(n + 1)
	return msgs
}

// Attempts: сколько раз воркер закрывал событие (sent или failed).
func (r *OutboxRepository) Attempts(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.byID[id]; ok {
		return entry.attempts
	}
	return 0
}

func (r *OutboxRepository) settle(id string, state outboxState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.state = state
	entry.attempts++
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
