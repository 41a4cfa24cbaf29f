package domain

import "time"

// OrderLineSnapshot: позиция заказа в виде значения.
type OrderLineSnapshot struct {
	ProductID      int64
	ProductName    string
	Quantity       int
	UnitPriceMinor int64
	TotalMinor     int64
}

// StockLevel: остаток товара на момент снимка.
type StockLevel struct {
	ProductID int64
	Stock     int
}

// OrderSnapshot: копия заказа без ссылок на живые объекты; её сохраняют архивы и отдают наружу.
type OrderSnapshot struct {
	ID            int64
	CustomerID    int64
	Status        OrderStatus
	PaymentKind   PaymentKind
	PaymentName   string
	SubtotalMinor int64
	DiscountMinor int64
	TotalMinor    int64
	Lines         []OrderLineSnapshot
	Stock         []StockLevel
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot фиксирует текущие значения заказа, включая остатки затронутых товаров.
func (o *Order) Snapshot() OrderSnapshot {
	snap := OrderSnapshot{
		ID:            o.ID,
		Status:        o.Status,
		PaymentName:   o.PaymentName(),
		SubtotalMinor: o.SubtotalMinor(),
		DiscountMinor: o.DiscountMinor(),
		TotalMinor:    o.TotalMinor(),
		Lines:         make([]OrderLineSnapshot, 0, len(o.items)),
		Stock:         make([]StockLevel, 0, len(o.items)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Customer != nil {
		snap.CustomerID = o.Customer.ID
	}
	if o.Payment != nil {
		snap.PaymentKind = o.Payment.Kind
	}
	for _, item := range o.items {
		line := OrderLineSnapshot{
			ProductID:      item.ProductID(),
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor(),
			TotalMinor:     item.TotalMinor(),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			snap.Stock = append(snap.Stock, StockLevel{ProductID: item.Product.ID, Stock: item.Product.Stock})
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap
}
