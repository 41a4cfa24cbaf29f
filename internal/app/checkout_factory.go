package app

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
)

// newCheckoutService собирает сервис оформления поверх выбранных хранилищ
// и симулятора оплаты.
func newCheckoutService(cfg Config, deps runtimeDependencies, registerer prometheus.Registerer, logger *log.Entry) *checkout.Service {
	gateway := payment.NewSimulator(
		payment.NewRandomSource(cfg.PaymentSeed),
		logger.WithField("layer", "payment"),
	)

	return checkout.NewService(
		deps.catalog,
		deps.customers,
		deps.orders,
		gateway,
		checkout.WithOutbox(deps.outboxRepo),
		checkout.WithTimeline(deps.timelineRepo),
		checkout.WithArchive(deps.archive),
		checkout.WithIDSequence(deps.ids),
		checkout.WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(registerer)),
		checkout.WithLogger(logger.WithField("layer", "checkout")),
	)
}
