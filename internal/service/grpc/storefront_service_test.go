package grpcsvc_test

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const bufSize = 1024 * 1024

type testEnv struct {
	client  *grpcsvc.Client
	gateway *payment.MockGateway
	catalog memory.Catalog
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	data, err := seed.Build()
	require.NoError(t, err)

	logger := loggerForTests()
	env := &testEnv{
		gateway: payment.NewMockGateway(),
		catalog: memory.NewCatalog(data.Categories, data.Products),
	}
	svc := checkout.NewService(
		env.catalog,
		memory.NewCustomerDirectory(data.Customers),
		memory.NewOrderRepository(),
		env.gateway,
		checkout.WithTimeline(memory.NewTimelineRepository()),
		checkout.WithLogger(logger),
	)

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	grpcsvc.RegisterStorefrontServer(server, grpcsvc.NewStorefrontService(svc, logger))
	go func() {
		if err := server.Serve(listener); err != nil {
			logger.WithError(err).Error("grpc serve failed")
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	env.client = grpcsvc.NewClient(conn)
	return env
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func cashCheckout(customerID int64, lines ...map[string]any) map[string]any {
	items := make([]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, l)
	}
	return map[string]any{
		"customer_id": customerID,
		"lines":       items,
		"payment":     map[string]any{"kind": "cash"},
	}
}

func line(productID int64, qty int) map[string]any {
	return map[string]any{"product_id": productID, "quantity": qty}
}

func number(t *testing.T, s *structpb.Struct, name string) int64 {
	t.Helper()
	v, ok := s.GetFields()[name]
	require.True(t, ok, "field %s is missing", name)
	return int64(v.GetNumberValue())
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected grpc status, got %v", err)
	assert.Equal(t, want, st.Code(), st.Message())
}

func TestStorefront_CatalogQueries(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	categories, err := env.client.Call(ctx, grpcsvc.MethodListCategories, nil)
	require.NoError(t, err)
	assert.Len(t, categories.GetFields()["categories"].GetListValue().GetValues(), 5)

	products, err := env.client.CallMap(ctx, grpcsvc.MethodListProducts, map[string]any{"query": "laptop"})
	require.NoError(t, err)
	list := products.GetFields()["products"].GetListValue().GetValues()
	require.Len(t, list, 1)
	laptop := list[0].GetStructValue()
	assert.Equal(t, int64(2), number(t, laptop, "id"))
	assert.Equal(t, int64(5999900), number(t, laptop, "price_minor"))
	assert.Equal(t, "59999.00", laptop.GetFields()["price"].GetStringValue())

	product, err := env.client.CallMap(ctx, grpcsvc.MethodGetProduct, map[string]any{"product_id": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(50), number(t, product.GetFields()["product"].GetStructValue(), "stock"))
	assert.NotEmpty(t, product.GetFields()["details"].GetStringValue())

	customers, err := env.client.Call(ctx, grpcsvc.MethodListCustomers, nil)
	require.NoError(t, err)
	assert.Len(t, customers.GetFields()["customers"].GetListValue().GetValues(), 3)

	_, err = env.client.CallMap(ctx, grpcsvc.MethodGetProduct, map[string]any{"product_id": 999})
	requireCode(t, err, codes.NotFound)

	_, err = env.client.CallMap(ctx, grpcsvc.MethodGetProduct, map[string]any{"product_id": 1.5})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.CallMap(ctx, grpcsvc.MethodListProducts, map[string]any{"category_id": -1})
	requireCode(t, err, codes.InvalidArgument)
}

func TestStorefront_QuoteAndCheckout(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	quote, err := env.client.CallMap(ctx, grpcsvc.MethodQuote, map[string]any{
		"customer_id": 1,
		"lines":       []any{line(2, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(599990), number(t, quote, "discount_minor"))
	assert.Equal(t, int64(5399910), number(t, quote, "total_minor"))

	resp, err := env.client.CallMap(ctx, grpcsvc.MethodCheckout, cashCheckout(1, line(2, 1), line(4, 2)))
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["completed"].GetBoolValue())
	order := resp.GetFields()["order"].GetStructValue()
	orderID := number(t, order, "id")
	assert.Equal(t, "completed", order.GetFields()["status"].GetStringValue())
	assert.Len(t, order.GetFields()["lines"].GetListValue().GetValues(), 2)
	assert.NotEmpty(t, resp.GetFields()["info"].GetStringValue())

	laptop, err := env.catalog.Product(2)
	require.NoError(t, err)
	assert.Equal(t, 7, laptop.Stock)

	got, err := env.client.CallMap(ctx, grpcsvc.MethodGetOrder, map[string]any{"order_id": orderID})
	require.NoError(t, err)
	assert.Contains(t, got.GetFields()["details"].GetStringValue(), "ASUS laptop")
	assert.NotEmpty(t, got.GetFields()["timeline"].GetListValue().GetValues())

	history, err := env.client.CallMap(ctx, grpcsvc.MethodListOrders, map[string]any{"customer_id": 1})
	require.NoError(t, err)
	assert.Len(t, history.GetFields()["orders"].GetListValue().GetValues(), 1)
	assert.Contains(t, history.GetFields()["summary"].GetStringValue(), "Orders: 1")

	cancelled, err := env.client.CallMap(ctx, grpcsvc.MethodCancelOrder, map[string]any{"order_id": orderID, "reason": "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.GetFields()["order"].GetStructValue().GetFields()["status"].GetStringValue())
	assert.Equal(t, 8, laptop.Stock)

	_, err = env.client.CallMap(ctx, grpcsvc.MethodCancelOrder, map[string]any{"order_id": orderID})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestStorefront_CheckoutDeclinedIsStoredCancelled(t *testing.T) {
	env := newTestServer(t)
	env.gateway.Decline = map[domain.PaymentKind]bool{domain.PaymentKindCash: true}

	resp, err := env.client.CallMap(context.Background(), grpcsvc.MethodCheckout, cashCheckout(2, line(4, 1)))
	require.NoError(t, err)
	assert.False(t, resp.GetFields()["completed"].GetBoolValue())
	assert.Equal(t, domain.ErrPaymentDeclined.Error(), resp.GetFields()["reason"].GetStringValue())
	assert.Equal(t, "cancelled", resp.GetFields()["order"].GetStructValue().GetFields()["status"].GetStringValue())

	book, err := env.catalog.Product(4)
	require.NoError(t, err)
	assert.Equal(t, 50, book.Stock)
}

func TestStorefront_CheckoutRejections(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  map[string]any
		want codes.Code
	}{
		{name: "missing customer", req: map[string]any{"lines": []any{line(4, 1)}}, want: codes.InvalidArgument},
		{name: "unknown customer", req: cashCheckout(42, line(4, 1)), want: codes.NotFound},
		{name: "empty lines", req: cashCheckout(1), want: codes.InvalidArgument},
		{name: "zero quantity", req: cashCheckout(1, line(4, 0)), want: codes.InvalidArgument},
		{name: "unknown product", req: cashCheckout(1, line(404, 1)), want: codes.NotFound},
		{name: "not enough stock", req: cashCheckout(1, line(2, 9)), want: codes.FailedPrecondition},
		{
			name: "missing payment",
			req:  map[string]any{"customer_id": 1, "lines": []any{line(4, 1)}},
			want: codes.InvalidArgument,
		},
		{
			name: "unknown payment kind",
			req: map[string]any{
				"customer_id": 1,
				"lines":       []any{line(4, 1)},
				"payment":     map[string]any{"kind": "barter"},
			},
			want: codes.InvalidArgument,
		},
		{
			name: "card without holder",
			req: map[string]any{
				"customer_id": 1,
				"lines":       []any{line(4, 1)},
				"payment":     map[string]any{"kind": "card", "card_number": "4111111111111111"},
			},
			want: codes.InvalidArgument,
		},
		{
			name: "line is not an object",
			req:  map[string]any{"customer_id": 1, "lines": []any{"4"}},
			want: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.CallMap(ctx, grpcsvc.MethodCheckout, tt.req)
			requireCode(t, err, tt.want)
		})
	}

	assert.Zero(t, env.gateway.Calls)
}

func TestStorefront_OrderLookups(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	_, err := env.client.CallMap(ctx, grpcsvc.MethodGetOrder, map[string]any{"order_id": 77})
	requireCode(t, err, codes.NotFound)

	_, err = env.client.Call(ctx, grpcsvc.MethodGetOrder, nil)
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.CallMap(ctx, grpcsvc.MethodListOrders, map[string]any{"customer_id": 77})
	requireCode(t, err, codes.NotFound)

	empty, err := env.client.CallMap(ctx, grpcsvc.MethodListOrders, map[string]any{"customer_id": 3})
	require.NoError(t, err)
	assert.Empty(t, empty.GetFields()["orders"].GetListValue().GetValues())
}
