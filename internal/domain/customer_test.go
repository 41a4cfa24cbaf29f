package domain

import (
	"testing"
	"time"
)

func TestCustomer_HistoryAggregates(t *testing.T) {
	customer := &Customer{ID: 1, Name: "Alexey", Email: "alex@mail.ru"}
	if customer.IsRegular() {
		t.Fatal("new customer must not be regular")
	}

	product := &Product{ID: 1, PriceMinor: 100_00, Stock: 100}
	for i := 0; i < 3; i++ {
		order := NewOrder(int64(i+1), customer, time.Now())
		if err := order.AddItem(product, 1); err != nil {
			t.Fatalf("add: %v", err)
		}
		customer.AddOrder(order)
	}
	customer.AddOrder(nil)

	if customer.TotalOrders() != 3 {
		t.Fatalf("expected 3 orders, got %d", customer.TotalOrders())
	}
	if !customer.IsRegular() {
		t.Fatal("customer with 3 orders must be regular")
	}
	// Три заказа по 100.00, у постоянного покупателя скидка 5%.
	if got := customer.TotalSpentMinor(); got != 3*95_00 {
		t.Fatalf("expected total spent 285.00, got %d", got)
	}

	orders := customer.Orders()
	orders[0] = nil
	if customer.Orders()[0] == nil {
		t.Fatal("Orders must return a copy")
	}
}

func TestCustomer_NilIsNotRegular(t *testing.T) {
	var customer *Customer
	if customer.IsRegular() {
		t.Fatal("nil customer must not be regular")
	}
}
