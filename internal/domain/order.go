package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// OrderStatusPending: заказ собирается, склад не тронут.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing: зарезервирован для расширений, ядро в него не переводит.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted: товар списан со склада, оплата прошла.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled: заказ отменён, склад восстановлен.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusShipped: зарезервирован для доставки.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusPaymentFailed: зарезервирован; отказ оплаты сейчас ведёт в cancelled.
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
)

// Description возвращает человекочитаемый статус.
func (s OrderStatus) Description() string {
	switch s {
	case OrderStatusPending:
		return "Awaiting processing"
	case OrderStatusProcessing:
		return "Processing"
	case OrderStatusCompleted:
		return "Completed"
	case OrderStatusCancelled:
		return "Cancelled"
	case OrderStatusShipped:
		return "Shipped"
	case OrderStatusPaymentFailed:
		return "Payment failed"
	default:
		return "Unknown status"
	}
}

// Параметры скидки в минимальных единицах и процентах.
const (
	largeOrderThresholdMinor int64 = 5000_00
	largeOrderDiscountPct    int64 = 10
	regularDiscountPct       int64 = 5
	maxDiscountPct           int64 = 30
)

// Order: агрегат заказа: позиции, покупатель, способ оплаты и статус.
// Доступ к агрегату не синхронизирован: сериализацию обеспечивает вызывающий.
type Order struct {
	ID        int64
	Customer  *Customer
	Status    OrderStatus
	Payment   *PaymentMethod
	CreatedAt time.Time
	UpdatedAt time.Time

	items []*OrderItem
}

// NewOrder создаёт пустой заказ в статусе pending.
func NewOrder(id int64, customer *Customer, now time.Time) *Order {
	return &Order{
		ID:        id,
		Customer:  customer,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Items возвращает копию списка позиций.
func (o *Order) Items() []*OrderItem {
	result := make([]*OrderItem, len(o.items))
	copy(result, o.items)
	return result
}

// Item возвращает позицию по товару.
func (o *Order) Item(productID int64) (*OrderItem, bool) {
	for _, item := range o.items {
		if item.ProductID() == productID {
			return item, true
		}
	}
	return nil, false
}

// SetPayment прикрепляет способ оплаты.
func (o *Order) SetPayment(method PaymentMethod) {
	o.Payment = &method
}

// AddItem добавляет qty единиц товара. Склад только проверяется, списание происходит в Process.
// Проверка учитывает количество, уже лежащее в позиции этого товара.
func (o *Order) AddItem(product *Product, qty int) error {
	if o.Status != OrderStatusPending {
		return ErrOrderNotPending
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if product == nil {
		return ErrProductRequired
	}

	existing, ok := o.Item(product.ID)
	requested := qty
	if ok {
		requested += existing.Quantity
	}
	if product.Stock < requested {
		return fmt.Errorf("%w: product %d has %d, requested %d", ErrStockUnavailable, product.ID, product.Stock, requested)
	}

	if ok {
		existing.Increase(qty)
		return nil
	}
	o.items = append(o.items, &OrderItem{Product: product, Quantity: qty})
	return nil
}

// RemoveItem удаляет позицию товара и сообщает, было ли что удалять.
func (o *Order) RemoveItem(productID int64) bool {
	if o.Status != OrderStatusPending {
		return false
	}
	for idx, item := range o.items {
		if item.ProductID() == productID {
			o.items = append(o.items[:idx], o.items[idx+1:]...)
			return true
		}
	}
	return false
}

// SubtotalMinor: сумма позиций без скидки.
func (o *Order) SubtotalMinor() int64 {
	var sum int64
	for _, item := range o.items {
		sum += item.TotalMinor()
	}
	return sum
}

// DiscountMinor вычисляется при каждом обращении:
// 10% для заказа дороже 5000, ещё 5% постоянному покупателю, но не больше 30% от суммы.
func (o *Order) DiscountMinor() int64 {
	subtotal := o.SubtotalMinor()
	if subtotal <= 0 {
		return 0
	}

	var pct int64
	if subtotal > largeOrderThresholdMinor {
		pct += largeOrderDiscountPct
	}
	if o.Customer.IsRegular() {
		pct += regularDiscountPct
	}
	if pct > maxDiscountPct {
		pct = maxDiscountPct
	}
	return subtotal * pct / 100
}

// TotalMinor: итог к оплате, никогда не отрицательный.
func (o *Order) TotalMinor() int64 {
	return o.SubtotalMinor() - o.DiscountMinor()
}

// CanBeCancelled сообщает, допустима ли отмена с возвратом товара на склад.
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusProcessing
}

// Process выполняет проверку склада, резерв, оплату и фиксацию либо откат.
// Любой выход с ошибкой оставляет склад в исходном состоянии.
// Проверка и резерв не атомарны относительно других заказов на тех же товарах.
func (o *Order) Process(gateway PaymentGateway) error {
	if o.Status != OrderStatusPending {
		return ErrOrderNotPending
	}
	if len(o.items) == 0 {
		return ErrOrderEmpty
	}
	if o.Payment == nil || gateway == nil {
		return ErrPaymentMethodRequired
	}
	if err := o.Payment.Validate(); err != nil {
		return err
	}

	for _, item := range o.items {
		if item.Product == nil || item.Product.Stock < item.Quantity {
			o.setStatus(OrderStatusCancelled)
			return fmt.Errorf("%w: product %d", ErrStockUnavailable, item.ProductID())
		}
	}

	o.reserve()

	if gateway.Charge(*o.Payment, o.TotalMinor()) {
		o.setStatus(OrderStatusCompleted)
		return nil
	}

	o.release()
	o.setStatus(OrderStatusCancelled)
	return ErrPaymentDeclined
}

// Cancel отменяет завершённый заказ и возвращает товар на склад.
func (o *Order) Cancel() error {
	if !o.CanBeCancelled() {
		return fmt.Errorf("%w: status %s", ErrOrderNotCancellable, o.Status)
	}
	o.release()
	o.setStatus(OrderStatusCancelled)
	return nil
}

func (o *Order) reserve() {
	for _, item := range o.items {
		item.Product.Stock -= item.Quantity
	}
}

func (o *Order) release() {
	for _, item := range o.items {
		if item.Product != nil {
			item.Product.Stock += item.Quantity
		}
	}
}

func (o *Order) setStatus(status OrderStatus) {
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
}

// PaymentName: название способа оплаты или "not selected".
func (o *Order) PaymentName() string {
	if o.Payment == nil {
		return "not selected"
	}
	return o.Payment.DisplayName()
}

// Info: однострочная сводка заказа.
func (o *Order) Info() string {
	return fmt.Sprintf("Order #%d from %s - %s (%s)",
		o.ID, o.CreatedAt.Format("02.01.2006"), FormatMinor(o.TotalMinor()), o.Status.Description())
}

// Details: полная карточка заказа.
func (o *Order) Details() string {
	lines := make([]string, 0, len(o.items))
	for _, item := range o.items {
		lines = append(lines, "  "+item.DisplayInfo())
	}
	customer := ""
	if o.Customer != nil {
		customer = o.Customer.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d\n", o.ID)
	fmt.Fprintf(&b, "Date: %s\n", o.CreatedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Status: %s\n", o.Status.Description())
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Payment: %s\n\n", o.PaymentName())
	fmt.Fprintf(&b, "Items:\n%s\n\n", strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "Subtotal: %s\n", FormatMinor(o.SubtotalMinor()))
	fmt.Fprintf(&b, "Discount: %s\n", FormatMinor(o.DiscountMinor()))
	fmt.Fprintf(&b, "Total: %s", FormatMinor(o.TotalMinor()))
	return b.String()
}

func (o *Order) String() string {
	return o.Info()
}
