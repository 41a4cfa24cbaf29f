package checkout

import (
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Cart: корзина покупателя до оформления. Корзина только сверяется со складом и никогда его не меняет.
type Cart struct {
	items []*domain.OrderItem
}

// NewCart создаёт пустую корзину.
func NewCart() *Cart {
	return &Cart{}
}

// Add кладёт в корзину одну единицу товара.
func (c *Cart) Add(product *domain.Product) error {
	if product == nil {
		return domain.ErrProductRequired
	}
	if item, ok := c.find(product.ID); ok {
		if item.Quantity >= product.Stock {
			return fmt.Errorf("%w: product %d has %d", domain.ErrStockUnavailable, product.ID, product.Stock)
		}
		item.Increase(1)
		return nil
	}
	if product.Stock <= 0 {
		return fmt.Errorf("%w: product %d is out of stock", domain.ErrStockUnavailable, product.ID)
	}
	c.items = append(c.items, &domain.OrderItem{Product: product, Quantity: 1})
	return nil
}

// Increase добавляет единицу к существующей позиции, не превышая остаток.
func (c *Cart) Increase(productID int64) error {
	item, ok := c.find(productID)
	if !ok {
		return domain.ErrProductNotFound
	}
	return c.Add(item.Product)
}

// Decrease убирает единицу из позиции; количество не опускается ниже одной.
func (c *Cart) Decrease(productID int64) error {
	item, ok := c.find(productID)
	if !ok {
		return domain.ErrProductNotFound
	}
	return item.Decrease(1)
}

// Remove удаляет позицию и сообщает, была ли она в корзине.
func (c *Cart) Remove(productID int64) bool {
	for idx, item := range c.items {
		if item.ProductID() == productID {
			c.items = append(c.items[:idx], c.items[idx+1:]...)
			return true
		}
	}
	return false
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	c.items = nil
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Items возвращает копии позиций.
func (c *Cart) Items() []domain.OrderItem {
	result := make([]domain.OrderItem, 0, len(c.items))
	for _, item := range c.items {
		result = append(result, *item)
	}
	return result
}

// Lines переводит корзину в строки запроса на оформление.
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.items))
	for _, item := range c.items {
		lines = append(lines, Line{ProductID: item.ProductID(), Quantity: item.Quantity})
	}
	return lines
}

// TotalQuantity: число единиц товара в корзине.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalMinor: сумма корзины без скидок.
func (c *Cart) TotalMinor() int64 {
	var total int64
	for _, item := range c.items {
		total += item.TotalMinor()
	}
	return total
}

// Summary: строка вида "3 items for 1500.00".
func (c *Cart) Summary() string {
	return fmt.Sprintf("%d items for %s", c.TotalQuantity(), domain.FormatMinor(c.TotalMinor()))
}

func (c *Cart) find(productID int64) (*domain.OrderItem, bool) {
	for _, item := range c.items {
		if item.ProductID() == productID {
			return item, true
		}
	}
	return nil, false
}
