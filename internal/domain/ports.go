package domain

import (
	"context"
	"time"
)

// Catalog отдаёт живые записи товаров: заказы меняют Stock по этим указателям.
type Catalog interface {
	// Product возвращает товар или ErrProductNotFound.
	Product(id int64) (*Product, error)
	// Products возвращает товары в порядке ID.
	Products() []*Product
	// Categories возвращает категории в порядке ID.
	Categories() []*Category
}

// CustomerDirectory хранит покупателей вместе с их историей заказов.
type CustomerDirectory interface {
	Customer(id int64) (*Customer, error)
	Customers() []*Customer
}

// OrderRepository хранит все оформленные (в том числе отменённые) заказы.
type OrderRepository interface {
	// Add сохраняет заказ; ErrOrderExists, если ID занят.
	Add(order *Order) error
	// Get возвращает заказ или ErrOrderNotFound.
	Get(id int64) (*Order, error)
	// List возвращает заказы в порядке ID.
	List() []*Order
	// ListByCustomer возвращает заказы покупателя, новые первыми.
	ListByCustomer(customerID int64) []*Order
}

// OrderArchive сохраняет снимки заказов во внешнее хранилище.
type OrderArchive interface {
	Archive(ctx context.Context, snapshot OrderSnapshot) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID int64) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
