package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	svc      *Service
	catalog  memory.Catalog
	orders   domain.OrderRepository
	outbox   *memory.OutboxRepository
	timeline domain.TimelineRepository
	archive  *memory.OrderArchive
	gateway  *payment.MockGateway
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	data, err := seed.Build()
	require.NoError(t, err)

	f := &fixture{
		catalog:  memory.NewCatalog(data.Categories, data.Products),
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
		archive:  memory.NewOrderArchive(),
		gateway:  payment.NewMockGateway(),
		registry: prometheus.NewRegistry(),
	}

	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}

	f.svc = NewService(
		f.catalog,
		memory.NewCustomerDirectory(data.Customers),
		f.orders,
		f.gateway,
		WithOutbox(f.outbox),
		WithTimeline(f.timeline),
		WithArchive(f.archive),
		WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(f.registry)),
		WithClock(now),
	)
	return f
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	product, err := f.catalog.Product(productID)
	require.NoError(t, err)
	return product.Stock
}

func cash() domain.PaymentMethod { return domain.NewCashPayment() }

func card() domain.PaymentMethod {
	return domain.NewCardPayment(domain.CardDetails{Number: "4111111111111111", Holder: "IVAN IVANOV"})
}

func TestCheckout_Completed(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Checkout(context.Background(), Request{
		CustomerID: 1,
		Lines:      []Line{{ProductID: 4, Quantity: 2}},
		Payment:    cash(),
	})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.True(t, result.Completed())

	assert.Equal(t, int64(1), result.Order.ID)
	assert.Equal(t, domain.OrderStatusCompleted, result.Order.Status)
	assert.Equal(t, int64(99800), result.Order.TotalMinor)
	assert.Equal(t, int64(0), result.Order.DiscountMinor)
	assert.Equal(t, "Order #1 from 17.10.2026 - 998.00 (Completed)", result.Info)
	assert.Equal(t, 48, f.stock(t, 4))
	assert.Equal(t, []domain.StockLevel{{ProductID: 4, Stock: 48}}, result.Order.Stock)

	stored, err := f.orders.Get(1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)

	summary, err := f.svc.HistorySummary(1)
	require.NoError(t, err)
	assert.Equal(t, "Orders: 1 | Total spent: 998.00", summary)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	assert.Equal(t, string(kafka.EventTypeOrderCompleted), pending[0].EventType)
	assert.Equal(t, "1", pending[0].AggregateID)
	var event kafka.OrderEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	assert.Equal(t, int64(99800), event.TotalMinor)

	events, err := f.svc.Timeline(1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(kafka.EventTypeOrderCompleted), events[0].Type)

	snap, ok := f.archive.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCompleted, snap.Status)
}

func TestCheckout_LargeOrderDiscount(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Checkout(context.Background(), Request{
		CustomerID: 2,
		Lines:      []Line{{ProductID: 2, Quantity: 1}},
		Payment:    card(),
	})
	require.NoError(t, err)
	require.NoError(t, result.Err)

	assert.Equal(t, int64(5999900), result.Order.SubtotalMinor)
	assert.Equal(t, int64(599990), result.Order.DiscountMinor)
	assert.Equal(t, int64(5399910), result.Order.TotalMinor)
	assert.Equal(t, []int64{5399910}, f.gateway.Amounts)
}

func TestCheckout_PaymentDeclinedRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.gateway.Approve = false

	var stockDuringCharge int
	f.gateway.OnCharge = func(domain.PaymentMethod, int64) {
		stockDuringCharge = f.stock(t, 2)
	}

	result, err := f.svc.Checkout(context.Background(), Request{
		CustomerID: 1,
		Lines:      []Line{{ProductID: 2, Quantity: 3}},
		Payment:    card(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, domain.ErrPaymentDeclined)
	assert.False(t, result.Completed())
	assert.Equal(t, domain.OrderStatusCancelled, result.Order.Status)

	assert.Equal(t, 5, stockDuringCharge)
	assert.Equal(t, 8, f.stock(t, 2))

	stored, err := f.orders.Get(result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)

	summary, err := f.svc.HistorySummary(1)
	require.NoError(t, err)
	assert.Equal(t, "Orders: 0 | Total spent: 0.00", summary)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	assert.Equal(t, string(kafka.EventTypeOrderPaymentDeclined), pending[0].EventType)
}

func TestCheckout_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "unknown customer",
			req:     Request{CustomerID: 99, Lines: []Line{{ProductID: 1, Quantity: 1}}, Payment: cash()},
			wantErr: domain.ErrCustomerNotFound,
		},
		{
			name:    "unknown product",
			req:     Request{CustomerID: 1, Lines: []Line{{ProductID: 99, Quantity: 1}}, Payment: cash()},
			wantErr: domain.ErrProductNotFound,
		},
		{
			name:    "exceeds stock",
			req:     Request{CustomerID: 1, Lines: []Line{{ProductID: 2, Quantity: 9}}, Payment: cash()},
			wantErr: domain.ErrStockUnavailable,
		},
		{
			name: "exceeds stock across lines",
			req: Request{CustomerID: 1, Lines: []Line{
				{ProductID: 2, Quantity: 5},
				{ProductID: 2, Quantity: 4},
			}, Payment: cash()},
			wantErr: domain.ErrStockUnavailable,
		},
		{
			name:    "zero quantity",
			req:     Request{CustomerID: 1, Lines: []Line{{ProductID: 1, Quantity: 0}}, Payment: cash()},
			wantErr: domain.ErrInvalidQuantity,
		},
		{
			name:    "no lines",
			req:     Request{CustomerID: 1, Payment: cash()},
			wantErr: domain.ErrOrderEmpty,
		},
		{
			name: "card without holder",
			req: Request{CustomerID: 1, Lines: []Line{{ProductID: 1, Quantity: 1}},
				Payment: domain.NewCardPayment(domain.CardDetails{Number: "4111"})},
			wantErr: domain.ErrCardDetailsRequired,
		},
		{
			name: "wallet without phone",
			req: Request{CustomerID: 1, Lines: []Line{{ProductID: 1, Quantity: 1}},
				Payment: domain.NewWalletPayment(domain.WalletDetails{})},
			wantErr: domain.ErrWalletPhoneRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.Checkout(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			assert.Empty(t, f.orders.List())
			assert.Empty(t, f.outbox.AllPending())
			assert.Equal(t, 15, f.stock(t, 1))
			assert.Equal(t, 8, f.stock(t, 2))
			assert.Zero(t, f.gateway.Calls)
		})
	}
}

func TestCheckout_RegularCustomerDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := f.svc.Checkout(ctx, Request{CustomerID: 3, Lines: []Line{{ProductID: 6, Quantity: 1}}, Payment: cash()})
		require.NoError(t, err)
		require.NoError(t, result.Err)
		assert.Zero(t, result.Order.DiscountMinor)
	}

	quote, err := f.svc.Quote(3, []Line{{ProductID: 3, Quantity: 1}})
	require.NoError(t, err)
	// 10% за сумму больше 5000 и 5% постоянному покупателю.
	assert.Equal(t, int64(799900), quote.SubtotalMinor)
	assert.Equal(t, int64(119985), quote.DiscountMinor)

	result, err := f.svc.Checkout(ctx, Request{CustomerID: 3, Lines: []Line{{ProductID: 6, Quantity: 1}}, Payment: cash()})
	require.NoError(t, err)
	assert.Equal(t, int64(4995), result.Order.DiscountMinor)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Checkout(ctx, Request{CustomerID: 1, Lines: []Line{{ProductID: 10, Quantity: 2}}, Payment: cash()})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, 10, f.stock(t, 10))

	snap, err := f.svc.Cancel(ctx, result.Order.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, snap.Status)
	assert.Equal(t, 12, f.stock(t, 10))

	_, err = f.svc.Cancel(ctx, result.Order.ID, "")
	assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
	assert.Equal(t, 12, f.stock(t, 10))

	_, err = f.svc.Cancel(ctx, 404, "")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	events, err := f.svc.Timeline(result.Order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(kafka.EventTypeOrderCancelled), events[1].Type)
	assert.Equal(t, "changed my mind", events[1].Reason)

	archived, ok := f.archive.Snapshot(result.Order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCancelled, archived.Status)
}

func TestCancel_DeclinedOrderIsNotCancellable(t *testing.T) {
	f := newFixture(t)
	f.gateway.Approve = false

	result, err := f.svc.Checkout(context.Background(), Request{CustomerID: 1, Lines: []Line{{ProductID: 1, Quantity: 1}}, Payment: card()})
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, domain.ErrPaymentDeclined)

	_, err = f.svc.Cancel(context.Background(), result.Order.ID, "")
	assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
	assert.Equal(t, 15, f.stock(t, 1))
}

func TestHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, productID := range []int64{4, 5, 6} {
		_, err := f.svc.Checkout(ctx, Request{CustomerID: 2, Lines: []Line{{ProductID: productID, Quantity: 1}}, Payment: cash()})
		require.NoError(t, err)
	}
	_, err := f.svc.Checkout(ctx, Request{CustomerID: 1, Lines: []Line{{ProductID: 7, Quantity: 1}}, Payment: cash()})
	require.NoError(t, err)

	history, err := f.svc.History(2)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{history[0].ID, history[1].ID, history[2].ID})

	_, err = f.svc.History(42)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	snap, details, err := f.svc.Order(4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.CustomerID)
	assert.Contains(t, details, "Classic jeans x 1 = 2999.00")
}

func TestCheckout_ConcurrentBuyersNeverOversell(t *testing.T) {
	f := newFixture(t)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(customerID int64) {
			defer wg.Done()
			result, err := f.svc.Checkout(context.Background(), Request{
				CustomerID: customerID,
				Lines:      []Line{{ProductID: 2, Quantity: 1}},
				Payment:    cash(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && result.Completed():
				completed++
			case errors.Is(err, domain.ErrStockUnavailable):
				rejected++
			default:
				t.Errorf("unexpected outcome: result=%+v err=%v", result, err)
			}
		}(int64(i%3 + 1))
	}
	wg.Wait()

	assert.Equal(t, 8, completed)
	assert.Equal(t, buyers-8, rejected)
	assert.Equal(t, 0, f.stock(t, 2))
	assert.Len(t, f.orders.List(), 8)
}

func TestCheckoutCart(t *testing.T) {
	f := newFixture(t)

	product, err := f.catalog.Product(8)
	require.NoError(t, err)

	cart := NewCart()
	require.NoError(t, cart.Add(product))
	require.NoError(t, cart.Add(product))

	result, err := f.svc.CheckoutCart(context.Background(), 1, cart, cash())
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, int64(499800), result.Order.TotalMinor)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 33, f.stock(t, 8))

	_, err = f.svc.CheckoutCart(context.Background(), 1, cart, cash())
	assert.ErrorIs(t, err, domain.ErrOrderEmpty)
}

func TestCheckoutCart_KeepsCartOnDecline(t *testing.T) {
	f := newFixture(t)
	f.gateway.Approve = false

	product, err := f.catalog.Product(8)
	require.NoError(t, err)
	cart := NewCart()
	require.NoError(t, cart.Add(product))

	result, err := f.svc.CheckoutCart(context.Background(), 1, cart, card())
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, domain.ErrPaymentDeclined)
	assert.False(t, cart.IsEmpty())
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Quote(1, []Line{{ProductID: 1, Quantity: 1}, {ProductID: 4, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, quote.Items)
	assert.Equal(t, int64(3099700), quote.SubtotalMinor)
	assert.Equal(t, int64(309970), quote.DiscountMinor)
	assert.Equal(t, int64(2789730), quote.TotalMinor)
	assert.Equal(t, "Items: 3\nSubtotal: 30997.00\nDiscount: 3099.70\nTotal: 27897.30", quote.Summary())
	assert.Equal(t, 15, f.stock(t, 1))

	_, err = f.svc.Quote(1, nil)
	assert.ErrorIs(t, err, domain.ErrOrderEmpty)
	_, err = f.svc.Quote(1, []Line{{ProductID: 1, Quantity: 16}})
	assert.ErrorIs(t, err, domain.ErrStockUnavailable)
}

func TestCatalogViews(t *testing.T) {
	f := newFixture(t)

	assert.Len(t, f.svc.Categories(), 5)
	assert.Len(t, f.svc.Products(catalog.AllCategories, ""), 10)

	books := f.svc.Products(2, "")
	require.Len(t, books, 2)
	books[0].Stock = 0
	assert.Equal(t, 50, f.stock(t, 4), "returned products must be copies")

	_, err := f.svc.Product(404)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	customers := f.svc.Customers()
	require.Len(t, customers, 3)
	assert.False(t, customers[0].Regular)
}

func TestCheckout_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Checkout(ctx, Request{CustomerID: 1, Lines: []Line{{ProductID: 1, Quantity: 1}}, Payment: cash()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.orders.List())
}

func TestCheckout_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, Request{CustomerID: 1, Lines: []Line{{ProductID: 4, Quantity: 1}}, Payment: cash()})
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, Request{CustomerID: 1, Lines: []Line{{ProductID: 4, Quantity: 0}}, Payment: cash()})
	require.Error(t, err)

	families, err := f.registry.Gather()
	require.NoError(t, err)

	results := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "storefront_orders_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			results[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{metrics.ResultCompleted: 1, metrics.ResultRejected: 1}, results)
}

func TestCheckout_RequestCancelledAfterChargeStillArchives(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Клиент отключается, когда деньги уже списаны.
	f.gateway.OnCharge = func(domain.PaymentMethod, int64) { cancel() }

	result, err := f.svc.Checkout(ctx, Request{
		CustomerID: 1,
		Lines:      []Line{{ProductID: 4, Quantity: 2}},
		Payment:    cash(),
	})
	require.NoError(t, err)
	require.True(t, result.Completed())
	assert.Equal(t, 48, f.stock(t, 4))

	snap, ok := f.archive.Snapshot(result.Order.ID)
	require.True(t, ok, "completed order must be archived")
	assert.Equal(t, []domain.StockLevel{{ProductID: 4, Stock: 48}}, snap.Stock)
	assert.Len(t, f.outbox.AllPending(), 1)

	events, err := f.timeline.List(result.Order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// cancellingTimeline отменяет контекст запроса при записи события.
type cancellingTimeline struct {
	domain.TimelineRepository
	cancel context.CancelFunc
}

func (c cancellingTimeline) Append(event domain.TimelineEvent) error {
	c.cancel()
	return c.TimelineRepository.Append(event)
}

func TestCancel_RequestCancelledDuringEventsStillArchives(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Checkout(context.Background(), Request{
		CustomerID: 1,
		Lines:      []Line{{ProductID: 4, Quantity: 2}},
		Payment:    cash(),
	})
	require.NoError(t, err)
	require.True(t, result.Completed())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(
		f.catalog,
		memory.NewCustomerDirectory(nil),
		f.orders,
		f.gateway,
		WithTimeline(cancellingTimeline{TimelineRepository: f.timeline, cancel: cancel}),
		WithArchive(f.archive),
	)

	snap, err := svc.Cancel(ctx, result.Order.ID, "customer request")
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	archived, ok := f.archive.Snapshot(result.Order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCancelled, archived.Status)
	assert.Equal(t, snap.Stock, archived.Stock)
	assert.Equal(t, 50, f.stock(t, 4))
}
