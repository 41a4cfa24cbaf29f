// Package checkout оформляет и отменяет заказы поверх общего склада.
// Все изменения остатков проходят под мьютексом сервиса: домен сам по себе не синхронизирован.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Line: строка запроса на оформление.
type Line struct {
	ProductID int64
	Quantity  int
}

// Request: запрос на оформление заказа.
type Request struct {
	CustomerID int64
	Lines      []Line
	Payment    domain.PaymentMethod
}

// Result описывает оформленный заказ. Err != nil означает, что заказ сохранён, но отменён
// (ErrPaymentDeclined или ErrStockUnavailable).
type Result struct {
	Order domain.OrderSnapshot
	Info  string
	Err   error
}

// Completed сообщает, что заказ оплачен.
func (r Result) Completed() bool {
	return r.Err == nil && r.Order.Status == domain.OrderStatusCompleted
}

// Quote: предварительный расчёт суммы заказа без резерва.
type Quote struct {
	Items         int
	SubtotalMinor int64
	DiscountMinor int64
	TotalMinor    int64
}

// Summary: текст сводки для подтверждения заказа.
func (q Quote) Summary() string {
	return fmt.Sprintf("Items: %d\nSubtotal: %s\nDiscount: %s\nTotal: %s",
		q.Items, domain.FormatMinor(q.SubtotalMinor), domain.FormatMinor(q.DiscountMinor), domain.FormatMinor(q.TotalMinor))
}

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Archive  domain.OrderArchive
	Metrics  *metrics.CheckoutMetrics
	IDs      *domain.IDSequence
	Logger   *log.Entry
	Now      func() time.Time
}

// Option настраивает Service.
type Option func(*Options)

// WithOutbox включает публикацию событий через outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(o *Options) { o.Outbox = repo }
}

// WithTimeline включает запись timeline заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(o *Options) { o.Timeline = repo }
}

// WithArchive включает сохранение снимков заказов.
func WithArchive(archive domain.OrderArchive) Option {
	return func(o *Options) { o.Archive = archive }
}

// WithMetrics включает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithIDSequence задаёт генератор номеров заказов.
func WithIDSequence(ids *domain.IDSequence) Option {
	return func(o *Options) { o.IDs = ids }
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithClock задаёт источник времени для даты заказа.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// Service оформляет заказы: собирает позиции, резервирует склад, списывает оплату
// и фиксирует результат в репозиториях, timeline и outbox.
type Service struct {
	mu sync.Mutex

	catalog   domain.Catalog
	customers domain.CustomerDirectory
	orders    domain.OrderRepository
	gateway   domain.PaymentGateway

	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	archive  domain.OrderArchive
	metrics  *metrics.CheckoutMetrics
	ids      *domain.IDSequence
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис оформления заказов.
func NewService(
	catalog domain.Catalog,
	customers domain.CustomerDirectory,
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	options ...Option,
) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.IDs == nil {
		opts.IDs = domain.NewIDSequence(1)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "checkout")
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		catalog:   catalog,
		customers: customers,
		orders:    orders,
		gateway:   gateway,
		outbox:    opts.Outbox,
		timeline:  opts.Timeline,
		archive:   opts.Archive,
		metrics:   opts.Metrics,
		ids:       opts.IDs,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Checkout оформляет заказ. Ошибка означает, что заказ не создан
// (неизвестный покупатель или товар, неверные позиции или реквизиты оплаты).
// Отказ в оплате и нехватка склада на этапе обработки возвращаются в Result.Err:
// такой заказ сохраняется в статусе cancelled.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	outcome := metrics.ResultRejected
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() {
			s.metrics.RecordCheckoutFinished(outcome, time.Since(start))
		}()
	}

	if len(req.Lines) == 0 {
		return Result{}, domain.ErrOrderEmpty
	}
	if err := req.Payment.Validate(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, err := s.customers.Customer(req.CustomerID)
	if err != nil {
		return Result{}, err
	}

	buildStart := time.Now()
	order := domain.NewOrder(0, customer, s.now())
	for _, line := range req.Lines {
		product, err := s.catalog.Product(line.ProductID)
		if err != nil {
			return Result{}, fmt.Errorf("product %d: %w", line.ProductID, err)
		}
		if err := order.AddItem(product, line.Quantity); err != nil {
			return Result{}, err
		}
	}
	order.SetPayment(req.Payment)
	s.recordStep("build", buildStart)

	order.ID = s.ids.Next()
	logger := s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": customer.ID,
		"payment":     req.Payment.Kind,
	})

	processStart := time.Now()
	processErr := order.Process(s.gateway)
	s.recordStep("process", processStart)

	// Снимок до пополнения истории: скидка постоянного покупателя пересчитывается при каждом обращении.
	snapshot := order.Snapshot()
	info := order.Info()

	var eventType kafka.EventType
	switch {
	case processErr == nil:
		outcome = metrics.ResultCompleted
		eventType = kafka.EventTypeOrderCompleted
		customer.AddOrder(order)
		s.recordPayment(req.Payment, true)
		if s.metrics != nil {
			s.metrics.RecordRevenue(snapshot.TotalMinor)
		}
		logger.WithField("total_minor", snapshot.TotalMinor).Info("order completed")
	case errors.Is(processErr, domain.ErrPaymentDeclined):
		outcome = metrics.ResultPaymentDeclined
		eventType = kafka.EventTypeOrderPaymentDeclined
		s.recordPayment(req.Payment, false)
		logger.Warn("payment declined, order cancelled")
	case errors.Is(processErr, domain.ErrStockUnavailable):
		outcome = metrics.ResultStockUnavailable
		eventType = kafka.EventTypeOrderStockUnavailable
		logger.WithError(processErr).Warn("stock unavailable, order cancelled")
	default:
		return Result{}, processErr
	}

	if err := s.orders.Add(order); err != nil {
		logger.WithError(err).Error("failed to store order")
		return Result{}, err
	}

	// Склад и оплата уже изменены: отмена запроса не должна прерывать запись событий и архива.
	s.emit(context.WithoutCancel(ctx), logger, eventType, snapshot, reasonOf(processErr))

	return Result{Order: snapshot, Info: info, Err: processErr}, nil
}

// CheckoutCart оформляет содержимое корзины и очищает её после успешной оплаты.
func (s *Service) CheckoutCart(ctx context.Context, customerID int64, cart *Cart, payment domain.PaymentMethod) (Result, error) {
	if cart == nil || cart.IsEmpty() {
		return Result{}, domain.ErrOrderEmpty
	}
	result, err := s.Checkout(ctx, Request{CustomerID: customerID, Lines: cart.Lines(), Payment: payment})
	if err != nil {
		return result, err
	}
	if result.Completed() {
		cart.Clear()
	}
	return result, nil
}

// Quote считает подытог, скидку и итог. Остатки проверяются так же, как при оформлении, но не резервируются.
func (s *Service) Quote(customerID int64, lines []Line) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, domain.ErrOrderEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, err := s.customers.Customer(customerID)
	if err != nil {
		return Quote{}, err
	}

	order := domain.NewOrder(0, customer, s.now())
	items := 0
	for _, line := range lines {
		product, err := s.catalog.Product(line.ProductID)
		if err != nil {
			return Quote{}, fmt.Errorf("product %d: %w", line.ProductID, err)
		}
		if err := order.AddItem(product, line.Quantity); err != nil {
			return Quote{}, err
		}
		items += line.Quantity
	}

	return Quote{
		Items:         items,
		SubtotalMinor: order.SubtotalMinor(),
		DiscountMinor: order.DiscountMinor(),
		TotalMinor:    order.TotalMinor(),
	}, nil
}

// Cancel отменяет оплаченный заказ и возвращает товар на склад.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) (domain.OrderSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.OrderSnapshot{}, err
	}
	if err := order.Cancel(); err != nil {
		return order.Snapshot(), err
	}

	if s.metrics != nil {
		s.metrics.RecordCancellation()
	}
	logger := s.logger.WithField("order_id", order.ID)
	logger.Info("order cancelled")

	snapshot := order.Snapshot()
	s.emit(context.WithoutCancel(ctx), logger, kafka.EventTypeOrderCancelled, snapshot, reason)
	return snapshot, nil
}

// Order возвращает снимок заказа.
func (s *Service) Order(orderID int64) (domain.OrderSnapshot, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.OrderSnapshot{}, "", err
	}
	return order.Snapshot(), order.Details(), nil
}

// History возвращает заказы покупателя, новые первыми.
func (s *Service) History(customerID int64) ([]domain.OrderSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.customers.Customer(customerID); err != nil {
		return nil, err
	}

	orders := s.orders.ListByCustomer(customerID)
	result := make([]domain.OrderSnapshot, 0, len(orders))
	for _, order := range orders {
		result = append(result, order.Snapshot())
	}
	return result, nil
}

// HistorySummary: сводка по оплаченным заказам покупателя.
func (s *Service) HistorySummary(customerID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, err := s.customers.Customer(customerID)
	if err != nil {
		return "", err
	}
	return customer.Statistics(), nil
}

// Timeline возвращает события жизненного цикла заказа.
func (s *Service) Timeline(orderID int64) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(orderID)
}

// Products возвращает копии товаров с текущими остатками, отфильтрованные по категории и строке поиска.
func (s *Service) Products(categoryID int64, query string) []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := catalog.Filter(s.catalog.Products(), categoryID, query)
	result := make([]domain.Product, 0, len(filtered))
	for _, p := range filtered {
		result = append(result, *p)
	}
	return result
}

// Product возвращает копию товара.
func (s *Service) Product(id int64) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.catalog.Product(id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// Categories возвращает копии категорий.
func (s *Service) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := s.catalog.Categories()
	result := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		result = append(result, *c)
	}
	return result
}

// CustomerInfo: покупатель со статистикой заказов.
type CustomerInfo struct {
	ID              int64
	Name            string
	Email           string
	Phone           string
	Address         string
	TotalOrders     int
	TotalSpentMinor int64
	Regular         bool
}

// Customers возвращает покупателей со статистикой.
func (s *Service) Customers() []CustomerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := s.customers.Customers()
	result := make([]CustomerInfo, 0, len(customers))
	for _, c := range customers {
		result = append(result, CustomerInfo{
			ID:              c.ID,
			Name:            c.Name,
			Email:           c.Email,
			Phone:           c.Phone,
			Address:         c.Address,
			TotalOrders:     c.TotalOrders(),
			TotalSpentMinor: c.TotalSpentMinor(),
			Regular:         c.IsRegular(),
		})
	}
	return result
}

// emit пишет событие в timeline, outbox и архив. Сбои не откатывают заказ, только логируются.
func (s *Service) emit(ctx context.Context, logger *log.Entry, eventType kafka.EventType, snapshot domain.OrderSnapshot, reason string) {
	entry := logger.WithField("event", eventType)

	if s.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  snapshot.ID,
			Type:     string(eventType),
			Reason:   reason,
			Occurred: snapshot.UpdatedAt,
		}
		if err := s.timeline.Append(event); err != nil {
			entry.WithError(err).Warn("append timeline event failed")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}

	if s.outbox != nil {
		msg, err := kafka.NewOrderEvent(eventType, snapshot, reason).OutboxMessage()
		if err != nil {
			entry.WithError(err).Error("marshal event failed")
		} else if _, err := s.outbox.Enqueue(msg); err != nil {
			entry.WithError(err).Error("enqueue event failed")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}

	if s.archive != nil {
		archiveStart := time.Now()
		if err := s.archive.Archive(ctx, snapshot); err != nil {
			entry.WithError(err).Warn("archive order snapshot failed")
		}
		s.recordStep("archive", archiveStart)
	}
}

func (s *Service) recordStep(step string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStepDuration(step, time.Since(start))
	}
}

func (s *Service) recordPayment(method domain.PaymentMethod, approved bool) {
	if s.metrics != nil {
		s.metrics.RecordPayment(string(method.Kind), approved)
	}
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
