package kafka

import (
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// HeaderOutboxID несёт ID записи outbox, по нему потребитель отсекает повторы.
const HeaderOutboxID = "x-outbox-id"

// TopicPublisher отправляет outbox-сообщения в один topic.
// Тело сообщения уходит без обёртки: для topic заказов это OrderEvent, для DLQ это запись воркера.
type TopicPublisher struct {
	producer *Producer
	topic    string
}

// NewTopicPublisher создаёт publisher; пустой topic означает TopicOrderEvents.
func NewTopicPublisher(producer *Producer, topic string) *TopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &TopicPublisher{producer: producer, topic: topic}
}

// Topic возвращает topic назначения.
func (p *TopicPublisher) Topic() string {
	return p.topic
}

// Publish использует ID заказа как ключ: все события заказа попадают в одну партицию.
func (p *TopicPublisher) Publish(msg domain.OutboxMessage) error {
	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.Send(Record{
		Topic: p.topic,
		Key:   key,
		Value: msg.Payload,
		Headers: map[string]string{
			HeaderEventType:     msg.EventType,
			HeaderAggregateType: msg.AggregateType,
			HeaderOutboxID:      msg.ID,
		},
	})
}

var _ domain.OutboxPublisher = (*TopicPublisher)(nil)
