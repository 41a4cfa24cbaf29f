package domain

import "fmt"

// OrderItem связывает товар (по ссылке, не владея им) с количеством.
type OrderItem struct {
	Product  *Product
	Quantity int
}

// NewOrderItem создаёт позицию; qty должен быть не меньше одного.
func NewOrderItem(product *Product, qty int) (*OrderItem, error) {
	if product == nil {
		return nil, ErrProductRequired
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &OrderItem{Product: product, Quantity: qty}, nil
}

// ProductID возвращает идентификатор товара или 0.
func (i *OrderItem) ProductID() int64 {
	if i.Product == nil {
		return 0
	}
	return i.Product.ID
}

// UnitPriceMinor: цена единицы товара; 0, если товар не задан.
func (i *OrderItem) UnitPriceMinor() int64 {
	if i.Product == nil {
		return 0
	}
	return i.Product.PriceMinor
}

// TotalMinor: стоимость позиции.
func (i *OrderItem) TotalMinor() int64 {
	return i.UnitPriceMinor() * int64(i.Quantity)
}

// Increase увеличивает количество на n (n <= 0 игнорируется).
func (i *OrderItem) Increase(n int) {
	if n <= 0 {
		return
	}
	i.Quantity += n
}

// Decrease уменьшает количество на n, не допуская значения меньше одного.
func (i *OrderItem) Decrease(n int) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	if i.Quantity-n < 1 {
		return ErrQuantityBelowMinimum
	}
	i.Quantity -= n
	return nil
}

// DisplayInfo: строка вида "Name x 2 = 10.00".
func (i *OrderItem) DisplayInfo() string {
	return fmt.Sprintf("%s x %d = %s", i.productName(), i.Quantity, FormatMinor(i.TotalMinor()))
}

// Details: многострочное описание позиции.
func (i *OrderItem) Details() string {
	return fmt.Sprintf("%s\nQuantity: %d\nPrice: %s\nTotal: %s",
		i.productName(), i.Quantity, FormatMinor(i.UnitPriceMinor()), FormatMinor(i.TotalMinor()))
}

func (i *OrderItem) productName() string {
	if i.Product == nil {
		return ""
	}
	return i.Product.Name
}
