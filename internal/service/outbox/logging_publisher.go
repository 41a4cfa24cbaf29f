package outbox

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// LoggingPublisher пишет события в лог; используется, когда брокеры не настроены.
type LoggingPublisher struct {
	logger *log.Entry
}

// NewLoggingPublisher создаёт publisher, который только логирует события.
func NewLoggingPublisher(logger *log.Entry) *LoggingPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
		"payload":        string(event.Payload),
	}).Info("order event")
	return nil
}

var _ domain.OutboxPublisher = (*LoggingPublisher)(nil)
