package domain

import "fmt"

// regularCustomerOrders: с этого числа заказов покупатель считается постоянным.
const regularCustomerOrders = 3

// Customer: покупатель и его история заказов.
// История хранит ссылки на заказы, созданные в другом месте, и только дополняется.
type Customer struct {
	ID      int64
	Name    string
	Email   string
	Phone   string
	Address string

	history []*Order
}

// AddOrder добавляет заказ в историю.
func (c *Customer) AddOrder(order *Order) {
	if order == nil {
		return
	}
	c.history = append(c.history, order)
}

// Orders возвращает копию истории в порядке добавления.
func (c *Customer) Orders() []*Order {
	result := make([]*Order, len(c.history))
	copy(result, c.history)
	return result
}

// TotalOrders: количество заказов в истории.
func (c *Customer) TotalOrders() int {
	return len(c.history)
}

// TotalSpentMinor: сумма TotalMinor по всей истории.
func (c *Customer) TotalSpentMinor() int64 {
	var sum int64
	for _, o := range c.history {
		sum += o.TotalMinor()
	}
	return sum
}

// IsRegular сообщает, что у покупателя три и более заказов.
func (c *Customer) IsRegular() bool {
	return c != nil && c.TotalOrders() >= regularCustomerOrders
}

// Statistics: сводка по истории заказов.
func (c *Customer) Statistics() string {
	return fmt.Sprintf("Orders: %d | Total spent: %s", c.TotalOrders(), FormatMinor(c.TotalSpentMinor()))
}

func (c *Customer) String() string {
	return fmt.Sprintf("%s (%s) - %s", c.Name, c.Email, c.Statistics())
}
