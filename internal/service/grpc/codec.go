package grpcsvc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

// requestInt читает целое поле; отсутствующее поле даёт 0 и ok=false.
func requestInt(req *structpb.Struct, name string) (int64, bool, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, true, fmt.Errorf("%s must be an integer", name)
		}
		return int64(n), true, nil
	case *structpb.Value_NullValue:
		return 0, false, nil
	default:
		return 0, true, fmt.Errorf("%s must be a number", name)
	}
}

func requiredID(req *structpb.Struct, name string) (int64, error) {
	id, ok, err := requestInt(req, name)
	if err != nil {
		return 0, err
	}
	if !ok || id <= 0 {
		return 0, fmt.Errorf("%s is required", name)
	}
	return id, nil
}

func requestString(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func requestLines(req *structpb.Struct) ([]checkout.Line, error) {
	list := req.GetFields()["lines"].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return nil, domain.ErrOrderEmpty
	}

	lines := make([]checkout.Line, 0, len(list.GetValues()))
	for idx, v := range list.GetValues() {
		item := v.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("lines[%d] must be an object", idx)
		}
		productID, err := requiredID(item, "product_id")
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", idx, err)
		}
		qty, _, err := requestInt(item, "quantity")
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", idx, err)
		}
		lines = append(lines, checkout.Line{ProductID: productID, Quantity: int(qty)})
	}
	return lines, nil
}

// requestPayment собирает способ оплаты; проверку реквизитов делает сервис оформления.
func requestPayment(req *structpb.Struct) (domain.PaymentMethod, error) {
	payment := req.GetFields()["payment"].GetStructValue()
	if payment == nil {
		return domain.PaymentMethod{}, domain.ErrPaymentMethodRequired
	}

	kind, err := domain.ParsePaymentKind(requestString(payment, "kind"))
	if err != nil {
		return domain.PaymentMethod{}, err
	}

	switch kind {
	case domain.PaymentKindCard:
		return domain.NewCardPayment(domain.CardDetails{
			Number: requestString(payment, "card_number"),
			Holder: requestString(payment, "card_holder"),
			Expiry: requestString(payment, "card_expiry"),
			CVV:    requestString(payment, "card_cvv"),
		}), nil
	case domain.PaymentKindEWallet:
		return domain.NewWalletPayment(domain.WalletDetails{
			Provider: requestString(payment, "wallet_provider"),
			Phone:    requestString(payment, "wallet_phone"),
		}), nil
	default:
		return domain.NewCashPayment(), nil
	}
}

func categoryFields(c domain.Category) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"name":          c.Name,
		"description":   c.Description,
		"product_count": c.ProductCount,
		"popular":       c.IsPopular(),
	}
}

func productFields(p domain.Product) map[string]any {
	fields := map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"price_minor": p.PriceMinor,
		"price":       domain.FormatMinor(p.PriceMinor),
		"stock":       p.Stock,
		"description": p.Description,
		"category":    p.CategoryName(),
	}
	if p.Category != nil {
		fields["category_id"] = p.Category.ID
	}
	return fields
}

func customerFields(c checkout.CustomerInfo) map[string]any {
	return map[string]any{
		"id":                c.ID,
		"name":              c.Name,
		"email":             c.Email,
		"phone":             c.Phone,
		"address":           c.Address,
		"total_orders":      c.TotalOrders,
		"total_spent_minor": c.TotalSpentMinor,
		"regular":           c.Regular,
	}
}

func orderFields(snap domain.OrderSnapshot) map[string]any {
	lines := make([]any, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		lines = append(lines, map[string]any{
			"product_id":       line.ProductID,
			"product_name":     line.ProductName,
			"quantity":         line.Quantity,
			"unit_price_minor": line.UnitPriceMinor,
			"total_minor":      line.TotalMinor,
		})
	}
	return map[string]any{
		"id":             snap.ID,
		"customer_id":    snap.CustomerID,
		"status":         string(snap.Status),
		"status_text":    snap.Status.Description(),
		"payment_kind":   string(snap.PaymentKind),
		"payment_name":   snap.PaymentName,
		"subtotal_minor": snap.SubtotalMinor,
		"discount_minor": snap.DiscountMinor,
		"total_minor":    snap.TotalMinor,
		"total":          domain.FormatMinor(snap.TotalMinor),
		"lines":          lines,
		"created_at":     snap.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":     snap.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func timelineFields(events []domain.TimelineEvent) []any {
	result := make([]any, 0, len(events))
	for _, e := range events {
		result = append(result, map[string]any{
			"type":     e.Type,
			"reason":   e.Reason,
			"occurred": e.Occurred.UTC().Format(time.RFC3339),
		})
	}
	return result
}
