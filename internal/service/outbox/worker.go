// Package outbox доставляет события заказов витрины из transactional outbox в брокер.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Результаты доставки для метрики storefront_outbox_events_total.
const (
	resultSent       = "sent"
	resultRetried    = "retried"
	resultDeadLetter = "dead_lettered"
	resultLost       = "dlq_failed"
)

// RetryPolicy: экспоненциальный backoff между попытками публикации одного события.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy: три попытки, 100ms, 200ms и не больше 2s между ними.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Delay возвращает паузу после неудачной попытки attempt (с 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// DeadLetter: запись в DLQ о событии заказа, которое не удалось опубликовать.
type DeadLetter struct {
	OutboxID  string          `json:"outbox_id"`
	OrderID   int64           `json:"order_id,omitempty"`
	EventType string          `json:"event_type"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error"`
	FailedAt  time.Time       `json:"failed_at"`
	Event     json.RawMessage `json:"event,omitempty"`
}

func newDeadLetter(msg domain.OutboxMessage, attempts int, cause error, at time.Time) DeadLetter {
	letter := DeadLetter{
		OutboxID:  msg.ID,
		EventType: msg.EventType,
		Attempts:  attempts,
		Error:     cause.Error(),
		FailedAt:  at.UTC(),
	}
	if id, err := strconv.ParseInt(msg.AggregateID, 10, 64); err == nil {
		letter.OrderID = id
	}
	if json.Valid(msg.Payload) {
		letter.Event = msg.Payload
	}
	return letter
}

type workerMetrics struct {
	events    *prometheus.CounterVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
}

func newWorkerMetrics(registerer prometheus.Registerer) *workerMetrics {
	m := &workerMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Order events handled by the outbox worker by event type and result.",
		}, []string{"event_type", "result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_outbox_pending_records",
			Help: "Order events waiting in the outbox.",
		}),
		oldestAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest order event waiting in the outbox.",
		}),
	}
	if registerer != nil {
		m.events = register(registerer, m.events)
		m.pending = register(registerer, m.pending)
		m.oldestAge = register(registerer, m.oldestAge)
	}
	return m
}

// register переиспользует коллектор, если такой уже зарегистрирован (повторный старт в тестах).
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing
		}
	}
	log.WithError(err).Warn("outbox metrics registration failed")
	return collector
}

type settings struct {
	logger       *log.Entry
	dlq          domain.OutboxPublisher
	registerer   prometheus.Registerer
	pollInterval time.Duration
	batchSize    int
	retry        RetryPolicy
	now          func() time.Time
}

// Option настраивает Worker.
type Option func(*settings)

func WithLogger(logger *log.Entry) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDLQPublisher включает отправку DeadLetter после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(s *settings) { s.dlq = publisher }
}

// WithRegisterer задаёт registerer метрик; по умолчанию prometheus.DefaultRegisterer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = registerer }
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) { s.pollInterval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(s *settings) { s.batchSize = batchSize }
}

func WithMaxAttempts(maxAttempts int) Option {
	return func(s *settings) { s.retry.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу backoff; 0 отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(s *settings) { s.retry.BaseDelay = delay }
}

// WithRetryMaxDelay ограничивает рост паузы backoff.
func WithRetryMaxDelay(delay time.Duration) Option {
	return func(s *settings) { s.retry.MaxDelay = delay }
}

// Worker периодически забирает pending-события заказов и публикует их.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlq          domain.OutboxPublisher
	logger       *log.Entry
	metrics      *workerMetrics
	pollInterval time.Duration
	batchSize    int
	retry        RetryPolicy
	now          func() time.Time
}

// NewWorker создаёт воркер; некорректные значения опций заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	s := settings{
		registerer:   prometheus.DefaultRegisterer,
		pollInterval: time.Second,
		batchSize:    100,
		retry:        DefaultRetryPolicy(),
		now:          time.Now,
	}
	for _, option := range options {
		option(&s)
	}

	defaults := DefaultRetryPolicy()
	if s.logger == nil {
		s.logger = log.WithField("component", "outbox-worker")
	}
	if s.pollInterval <= 0 {
		s.pollInterval = time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.retry.MaxAttempts <= 0 {
		s.retry.MaxAttempts = defaults.MaxAttempts
	}
	if s.retry.BaseDelay < 0 {
		s.retry.BaseDelay = 0
	}

	return &Worker{
		repo:         repo,
		publisher:    publisher,
		dlq:          s.dlq,
		logger:       s.logger,
		metrics:      newWorkerMetrics(s.registerer),
		pollInterval: s.pollInterval,
		batchSize:    s.batchSize,
		retry:        s.retry,
		now:          s.now,
	}
}

// Run обрабатывает outbox сразу и затем каждые pollInterval, пока ctx не отменён.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if sent := w.ProcessOnce(ctx); sent > 0 {
			w.logger.WithField("sent", sent).Debug("order events published")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует один батч и возвращает число событий, помеченных sent.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	defer w.observeBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("pull pending order events failed")
		return 0
	}

	sent := 0
	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, msg) {
			sent++
		}
	}
	return sent
}

// deliver публикует событие с повторами; после последней неудачи отправляет его в DLQ и помечает failed.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) bool {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
		"order_id":   msg.AggregateID,
	})

	attempts, err := w.publish(ctx, msg)
	if err == nil {
		w.metrics.events.WithLabelValues(msg.EventType, resultSent).Inc()
		if err := w.repo.MarkSent(msg.ID); err != nil {
			entry.WithError(err).Warn("mark order event sent failed")
			return false
		}
		return true
	}
	if ctx.Err() != nil {
		// Событие остаётся pending до следующего запуска.
		return false
	}

	entry = entry.WithField("attempts", attempts)
	entry.WithError(err).Error("order event not published")
	if dlqErr := w.deadLetter(msg, attempts, err); dlqErr != nil {
		w.metrics.events.WithLabelValues(msg.EventType, resultLost).Inc()
		entry.WithError(dlqErr).Warn("dead letter publish failed")
	} else {
		w.metrics.events.WithLabelValues(msg.EventType, resultDeadLetter).Inc()
	}
	if err := w.repo.MarkFailed(msg.ID); err != nil {
		entry.WithError(err).Warn("mark order event failed")
	}
	return false
}

func (w *Worker) publish(ctx context.Context, msg domain.OutboxMessage) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			return attempt, nil
		}
		if attempt == w.retry.MaxAttempts {
			return attempt, lastErr
		}
		w.metrics.events.WithLabelValues(msg.EventType, resultRetried).Inc()

		if delay := w.retry.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return w.retry.MaxAttempts, lastErr
}

func (w *Worker) deadLetter(msg domain.OutboxMessage, attempts int, cause error) error {
	if w.dlq == nil {
		return nil
	}
	payload, err := json.Marshal(newDeadLetter(msg, attempts, cause, w.now()))
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	letter := msg
	letter.Payload = payload
	return w.dlq.Publish(letter)
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("read outbox backlog failed")
		return
	}
	w.metrics.pending.Set(float64(stats.PendingCount))

	var age float64
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = max(w.now().Sub(stats.OldestPendingAt).Seconds(), 0)
	}
	w.metrics.oldestAge.Set(age)
}
