package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// customerDirectoryInMemory: справочник покупателей; история заказов живёт в самих Customer.
type customerDirectoryInMemory struct {
	mu        sync.RWMutex
	customers map[int64]*domain.Customer
}

// NewCustomerDirectory возвращает in-memory справочник покупателей.
func NewCustomerDirectory(customers []*domain.Customer) domain.CustomerDirectory {
	d := &customerDirectoryInMemory{customers: make(map[int64]*domain.Customer, len(customers))}
	for _, c := range customers {
		d.customers[c.ID] = c
	}
	return d
}

func (d *customerDirectoryInMemory) Customer(id int64) (*domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	customer, ok := d.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (d *customerDirectoryInMemory) Customers() []*domain.Customer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*domain.Customer, 0, len(d.customers))
	for _, c := range d.customers {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

var _ domain.CustomerDirectory = (*customerDirectoryInMemory)(nil)
