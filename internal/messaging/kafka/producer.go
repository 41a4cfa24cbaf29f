package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// ProducerConfig: параметры подключения витрины к Kafka.
type ProducerConfig struct {
	Brokers  []string
	ClientID string
}

// saramaConfig: синхронный идемпотентный producer; события одного заказа не переупорядочиваются.
func (c ProducerConfig) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Producer отправляет записи в Kafka через sarama.SyncProducer.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам.
func NewProducer(cfg ProducerConfig, logger *log.Entry) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	sync, err := sarama.NewSyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka: connect to %v: %w", cfg.Brokers, err)
	}
	return NewProducerFromSync(sync, logger), nil
}

// NewProducerFromSync оборачивает готовый SyncProducer (например, sarama/mocks).
func NewProducerFromSync(sync sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{sync: sync, logger: logger}
}

// Record: одна запись Kafka с заголовками.
type Record struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (r Record) message() *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic: r.Topic,
		Value: sarama.ByteEncoder(r.Value),
	}
	if r.Key != "" {
		msg.Key = sarama.StringEncoder(r.Key)
	}
	for name, value := range r.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(value)})
	}
	return msg
}

// Send дожидается подтверждения брокера.
func (p *Producer) Send(record Record) error {
	if p == nil || p.sync == nil {
		return fmt.Errorf("kafka: producer is not initialized")
	}
	partition, offset, err := p.sync.SendMessage(record.message())
	entry := p.logger.WithFields(log.Fields{"topic": record.Topic, "key": record.Key})
	if err != nil {
		entry.WithError(err).Warn("kafka send failed")
		return fmt.Errorf("kafka: send to %s: %w", record.Topic, err)
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka record sent")
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("kafka: close producer: %w", err)
	}
	return nil
}
