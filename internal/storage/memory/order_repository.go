package memory

import (
	"cmp"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderBook хранит заказы витрины и индекс заказов по покупателю.
type orderBook struct {
	mu         sync.RWMutex
	byID       map[int64]*domain.Order
	byCustomer map[int64][]*domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderBook{
		byID:       make(map[int64]*domain.Order),
		byCustomer: make(map[int64][]*domain.Order),
	}
}

func (b *orderBook) Add(order *domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, taken := b.byID[order.ID]; taken {
		return domain.ErrOrderExists
	}
	b.byID[order.ID] = order
	if order.Customer != nil {
		b.byCustomer[order.Customer.ID] = append(b.byCustomer[order.Customer.ID], order)
	}
	return nil
}

func (b *orderBook) Get(id int64) (*domain.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if order, ok := b.byID[id]; ok {
		return order, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (b *orderBook) List() []*domain.Order {
	b.mu.RLock()
	orders := make([]*domain.Order, 0, len(b.byID))
	for _, order := range b.byID {
		orders = append(orders, order)
	}
	b.mu.RUnlock()

	slices.SortFunc(orders, func(x, y *domain.Order) int { return cmp.Compare(x.ID, y.ID) })
	return orders
}

// ListByCustomer: заказы покупателя, новые первыми; при равном времени больший ID раньше.
func (b *orderBook) ListByCustomer(customerID int64) []*domain.Order {
	b.mu.RLock()
	orders := slices.Clone(b.byCustomer[customerID])
	b.mu.RUnlock()

	slices.SortFunc(orders, func(x, y *domain.Order) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(y.ID, x.ID)
	})
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders
}

var _ domain.OrderRepository = (*orderBook)(nil)
