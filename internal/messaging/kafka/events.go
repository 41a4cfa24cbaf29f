package kafka

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCompleted        EventType = "OrderCompleted"
	EventTypeOrderCancelled        EventType = "OrderCancelled"
	EventTypeOrderPaymentDeclined  EventType = "OrderPaymentDeclined"
	EventTypeOrderStockUnavailable EventType = "OrderStockUnavailable"
)

// AggregateTypeOrder: aggregate_type для событий заказа в outbox.
const AggregateTypeOrder = "order"

// Topics витрины: события заказов и записи о событиях, которые не удалось доставить.
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.order.events.dlq"
)

// Заголовки записей Kafka.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
)

// OrderLine: позиция заказа в событии.
type OrderLine struct {
	ProductID      int64 `json:"product_id"`
	Quantity       int   `json:"quantity"`
	UnitPriceMinor int64 `json:"unit_price_minor"`
}

// OrderEvent представляет событие заказа.
type OrderEvent struct {
	EventType     EventType   `json:"event_type"`
	OrderID       int64       `json:"order_id"`
	CustomerID    int64       `json:"customer_id"`
	Status        string      `json:"status"`
	PaymentKind   string      `json:"payment_kind,omitempty"`
	SubtotalMinor int64       `json:"subtotal_minor"`
	DiscountMinor int64       `json:"discount_minor"`
	TotalMinor    int64       `json:"total_minor"`
	Lines         []OrderLine `json:"lines,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewOrderEvent собирает событие из снимка заказа.
func NewOrderEvent(eventType EventType, snapshot domain.OrderSnapshot, reason string) *OrderEvent {
	lines := make([]OrderLine, 0, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		lines = append(lines, OrderLine{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceMinor: l.UnitPriceMinor,
		})
	}
	return &OrderEvent{
		EventType:     eventType,
		OrderID:       snapshot.ID,
		CustomerID:    snapshot.CustomerID,
		Status:        string(snapshot.Status),
		PaymentKind:   string(snapshot.PaymentKind),
		SubtotalMinor: snapshot.SubtotalMinor,
		DiscountMinor: snapshot.DiscountMinor,
		TotalMinor:    snapshot.TotalMinor,
		Lines:         lines,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
}

// OutboxMessage упаковывает событие в сообщение transactional outbox.
func (e *OrderEvent) OutboxMessage() (domain.OutboxMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return domain.OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(e.OrderID, 10),
		EventType:     string(e.EventType),
		Payload:       payload,
	}, nil
}
