package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

// OrderLifecycleTestSuite проверяет путь заказа через собранные зависимости приложения.
type OrderLifecycleTestSuite struct {
	suite.Suite
	deps    runtimeDependencies
	service *checkout.Service
	worker  *outbox.Worker
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "lifecycle-test")

	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), logger)
	s.Require().NoError(err)
	s.deps = deps

	registry := prometheus.NewRegistry()
	s.service = newCheckoutService(DefaultConfig(), deps, registry, logger)

	publisher, _ := outboxPublishers(nil, logger)
	s.worker = outbox.NewWorker(deps.outboxRepo, publisher, outbox.WithRegisterer(registry), outbox.WithLogger(logger))
}

func (s *OrderLifecycleTestSuite) checkoutCash(customerID, productID int64, qty int) checkout.Result {
	result, err := s.service.Checkout(context.Background(), checkout.Request{
		CustomerID: customerID,
		Lines:      []checkout.Line{{ProductID: productID, Quantity: qty}},
		Payment:    domain.NewCashPayment(),
	})
	s.Require().NoError(err)
	s.Require().True(result.Completed(), "checkout failed: %v", result.Err)
	return result
}

func (s *OrderLifecycleTestSuite) stock(productID int64) int {
	product, err := s.service.Product(productID)
	s.Require().NoError(err)
	return product.Stock
}

func (s *OrderLifecycleTestSuite) TestCheckoutThenCancel() {
	ctx := context.Background()
	before := s.stock(2)

	result := s.checkoutCash(1, 2, 1)
	s.Equal(domain.OrderStatusCompleted, result.Order.Status)
	s.Equal(before-1, s.stock(2))

	cancelled, err := s.service.Cancel(ctx, result.Order.ID, "customer changed mind")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Equal(before, s.stock(2))

	// Повторная отмена запрещена.
	_, err = s.service.Cancel(ctx, result.Order.ID, "again")
	s.ErrorIs(err, domain.ErrOrderNotCancellable)

	events, err := s.service.Timeline(result.Order.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(len(events), 2)

	stats, err := s.deps.outboxRepo.Stats()
	s.Require().NoError(err)
	s.Equal(2, stats.PendingCount)

	s.Equal(2, s.worker.ProcessOnce(ctx))
	stats, err = s.deps.outboxRepo.Stats()
	s.Require().NoError(err)
	s.Zero(stats.PendingCount)
}

func (s *OrderLifecycleTestSuite) TestRegularCustomerDiscount() {
	lines := []checkout.Line{{ProductID: 4, Quantity: 1}}

	quote, err := s.service.Quote(2, lines)
	s.Require().NoError(err)
	s.Zero(quote.DiscountMinor)

	for range 3 {
		s.checkoutCash(2, 4, 1)
	}

	quote, err = s.service.Quote(2, lines)
	s.Require().NoError(err)
	s.Equal(quote.SubtotalMinor*5/100, quote.DiscountMinor)
	s.Equal(quote.SubtotalMinor-quote.DiscountMinor, quote.TotalMinor)

	history, err := s.service.History(2)
	s.Require().NoError(err)
	s.Len(history, 3)
}

func (s *OrderLifecycleTestSuite) TestInsufficientStockLeavesCatalogUntouched() {
	before := s.stock(2)

	_, err := s.service.Checkout(context.Background(), checkout.Request{
		CustomerID: 1,
		Lines:      []checkout.Line{{ProductID: 2, Quantity: before + 1}},
		Payment:    domain.NewCashPayment(),
	})
	s.ErrorIs(err, domain.ErrStockUnavailable)
	s.Equal(before, s.stock(2))

	history, err := s.service.History(1)
	s.Require().NoError(err)
	s.Empty(history)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
