package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

// StorefrontService реализует gRPC API поверх сервиса оформления заказов.
type StorefrontService struct {
	checkout *checkout.Service
	logger   *log.Entry
}

// NewStorefrontService конструирует сервис с зависимостями.
func NewStorefrontService(svc *checkout.Service, logger *log.Entry) *StorefrontService {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return &StorefrontService{checkout: svc, logger: logger}
}

var _ StorefrontServer = (*StorefrontService)(nil)

func (s *StorefrontService) respond(operation string, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Error("failed to encode response")
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// ListCategories возвращает категории каталога.
func (s *StorefrontService) ListCategories(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	categories := s.checkout.Categories()
	items := make([]any, 0, len(categories))
	for _, c := range categories {
		items = append(items, categoryFields(c))
	}
	return s.respond("ListCategories", map[string]any{"categories": items})
}

// ListProducts фильтрует товары по category_id и строке query.
func (s *StorefrontService) ListProducts(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	categoryID, _, err := requestInt(req, "category_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if categoryID < catalog.AllCategories {
		return nil, status.Error(codes.InvalidArgument, "category_id must be non-negative")
	}

	products := s.checkout.Products(categoryID, requestString(req, "query"))
	items := make([]any, 0, len(products))
	for _, p := range products {
		items = append(items, productFields(p))
	}
	return s.respond("ListProducts", map[string]any{"products": items})
}

// GetProduct возвращает товар по product_id.
func (s *StorefrontService) GetProduct(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredID(req, "product_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	product, err := s.checkout.Product(id)
	if err != nil {
		return nil, toStatus(s.logger, "GetProduct", err)
	}
	return s.respond("GetProduct", map[string]any{
		"product": productFields(product),
		"details": product.Details(),
	})
}

// ListCustomers возвращает покупателей со статистикой заказов.
func (s *StorefrontService) ListCustomers(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	customers := s.checkout.Customers()
	items := make([]any, 0, len(customers))
	for _, c := range customers {
		items = append(items, customerFields(c))
	}
	return s.respond("ListCustomers", map[string]any{"customers": items})
}

// Quote считает суммы заказа без резерва.
func (s *StorefrontService) Quote(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	customerID, err := requiredID(req, "customer_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lines, err := requestLines(req)
	if err != nil {
		return nil, toStatus(s.logger, "Quote", invalidArgument(err))
	}

	quote, err := s.checkout.Quote(customerID, lines)
	if err != nil {
		return nil, toStatus(s.logger, "Quote", err)
	}
	return s.respond("Quote", map[string]any{
		"items":          quote.Items,
		"subtotal_minor": quote.SubtotalMinor,
		"discount_minor": quote.DiscountMinor,
		"total_minor":    quote.TotalMinor,
		"summary":        quote.Summary(),
	})
}

// Checkout оформляет заказ. Отклонённый платёж не считается ошибкой вызова:
// заказ сохранён отменённым, причина приходит в поле reason.
func (s *StorefrontService) Checkout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	customerID, err := requiredID(req, "customer_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lines, err := requestLines(req)
	if err != nil {
		return nil, toStatus(s.logger, "Checkout", invalidArgument(err))
	}
	payment, err := requestPayment(req)
	if err != nil {
		return nil, toStatus(s.logger, "Checkout", err)
	}

	result, err := s.checkout.Checkout(ctx, checkout.Request{
		CustomerID: customerID,
		Lines:      lines,
		Payment:    payment,
	})
	if err != nil {
		return nil, toStatus(s.logger, "Checkout", err)
	}

	fields := map[string]any{
		"order":     orderFields(result.Order),
		"info":      result.Info,
		"completed": result.Completed(),
	}
	if result.Err != nil {
		fields["reason"] = result.Err.Error()
	}
	return s.respond("Checkout", fields)
}

// CancelOrder отменяет заказ и возвращает товар на склад.
func (s *StorefrontService) CancelOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := requiredID(req, "order_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snapshot, err := s.checkout.Cancel(ctx, orderID, requestString(req, "reason"))
	if err != nil {
		return nil, toStatus(s.logger, "CancelOrder", err)
	}
	return s.respond("CancelOrder", map[string]any{"order": orderFields(snapshot)})
}

// GetOrder возвращает заказ, его текстовое описание и таймлайн.
func (s *StorefrontService) GetOrder(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := requiredID(req, "order_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snapshot, details, err := s.checkout.Order(orderID)
	if err != nil {
		return nil, toStatus(s.logger, "GetOrder", err)
	}
	events, err := s.checkout.Timeline(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to load order timeline")
	}

	return s.respond("GetOrder", map[string]any{
		"order":    orderFields(snapshot),
		"details":  details,
		"timeline": timelineFields(events),
	})
}

// ListOrders возвращает историю покупателя, новые заказы первыми.
func (s *StorefrontService) ListOrders(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	customerID, err := requiredID(req, "customer_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	history, err := s.checkout.History(customerID)
	if err != nil {
		return nil, toStatus(s.logger, "ListOrders", err)
	}
	summary, err := s.checkout.HistorySummary(customerID)
	if err != nil {
		return nil, toStatus(s.logger, "ListOrders", err)
	}

	orders := make([]any, 0, len(history))
	for _, snap := range history {
		orders = append(orders, orderFields(snap))
	}
	return s.respond("ListOrders", map[string]any{
		"orders":  orders,
		"summary": summary,
	})
}
