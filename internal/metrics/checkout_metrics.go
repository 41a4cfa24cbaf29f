// Package metrics: prometheus-метрики оформления и отмены заказов витрины.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты оформления заказа для метки result.
const (
	ResultCompleted        = "completed"
	ResultPaymentDeclined  = "payment_declined"
	ResultStockUnavailable = "stock_unavailable"
	ResultRejected         = "rejected"
)

const namespace = "storefront"

// stepBuckets: шаги оформления идут в памяти или одним запросом в базу.
var stepBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// CheckoutMetrics содержит метрики оформления и отмены заказов.
type CheckoutMetrics struct {
	orders        *prometheus.CounterVec
	payments      *prometheus.CounterVec
	cancellations prometheus.Counter
	revenueMinor  prometheus.Counter

	checkoutDuration prometheus.Histogram
	stepDuration     *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEnqueued prometheus.Counter

	activeCheckouts prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return mustRegister(registerer, prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}))
	}

	return &CheckoutMetrics{
		orders: mustRegister(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"})),
		payments: mustRegister(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by payment method kind and result.",
		}, []string{"method", "result"})),
		cancellations:  counter("order_cancellations_total", "Orders cancelled after completion."),
		revenueMinor:   counter("revenue_minor_total", "Sum of completed order totals in kopecks."),
		timelineEvents: counter("timeline_events_total", "Order timeline events recorded."),
		outboxEnqueued: counter("outbox_enqueued_total", "Order events written to the outbox."),
		checkoutDuration: mustRegister(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Checkout duration from request to archived snapshot.",
			Buckets:   prometheus.DefBuckets,
		})),
		stepDuration: mustRegister(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_step_duration_seconds",
			Help:      "Duration of a single checkout step.",
			Buckets:   stepBuckets,
		}, []string{"step"})),
		activeCheckouts: mustRegister(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_checkouts",
			Help:      "Checkouts in progress.",
		})),
	}
}

// mustRegister возвращает уже зарегистрированный коллектор того же типа или паникует:
// конфликт имён метрик означает ошибку сборки сервиса.
func mustRegister[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
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
	panic(fmt.Sprintf("register checkout metric: %v", err))
}

// RecordCheckoutStarted отмечает начало оформления.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.activeCheckouts.Inc()
}

// RecordCheckoutFinished фиксирует результат и длительность оформления.
func (m *CheckoutMetrics) RecordCheckoutFinished(result string, duration time.Duration) {
	m.activeCheckouts.Dec()
	m.orders.WithLabelValues(result).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

func (m *CheckoutMetrics) RecordPayment(method string, approved bool) {
	result := "approved"
	if !approved {
		result = "declined"
	}
	m.payments.WithLabelValues(method, result).Inc()
}

// RecordRevenue учитывает только положительные суммы.
func (m *CheckoutMetrics) RecordRevenue(amountMinor int64) {
	if amountMinor > 0 {
		m.revenueMinor.Add(float64(amountMinor))
	}
}

func (m *CheckoutMetrics) RecordCancellation() { m.cancellations.Inc() }

func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

func (m *CheckoutMetrics) RecordTimelineEvent() { m.timelineEvents.Inc() }

func (m *CheckoutMetrics) RecordOutboxEvent() { m.outboxEnqueued.Inc() }
