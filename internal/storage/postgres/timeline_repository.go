package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	insertTimelineSQL = `INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1, $2, $3, $4)`
	listTimelineSQL   = `SELECT order_id, type, reason, occurred FROM timeline_events WHERE order_id = $1 ORDER BY occurred, id`
)

// TimelineRepository хранит историю событий заказа в timeline_events.
type TimelineRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{db: store.DB(), now: func() time.Time { return time.Now().UTC() }}
}

// Append записывает событие; без Occurred берётся текущее время.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, insertTimelineSQL, event.OrderID, event.Type, event.Reason, event.Occurred)
	if err != nil {
		return fmt.Errorf("order %d timeline %s: %w", event.OrderID, event.Type, err)
	}
	return nil
}

// List: события заказа от старых к новым; одинаковое время упорядочено по вставке.
func (r *TimelineRepository) List(orderID int64) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	events, err := collect(ctx, r.db, listTimelineSQL, scanTimelineEvent, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d timeline: %w", orderID, err)
	}
	return events, nil
}

func scanTimelineEvent(row rowScanner) (domain.TimelineEvent, error) {
	var event domain.TimelineEvent
	err := row.Scan(&event.OrderID, &event.Type, &event.Reason, &event.Occurred)
	event.Occurred = event.Occurred.UTC()
	return event, err
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
