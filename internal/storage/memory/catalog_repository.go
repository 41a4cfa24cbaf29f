package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// catalogInMemory хранит живые записи товаров: заказы меняют Stock по выданным указателям.
type catalogInMemory struct {
	mu         sync.RWMutex
	products   map[int64]*domain.Product
	categories map[int64]*domain.Category
}

// Catalog: in-memory каталог с возможностью наложить остатки из внешнего хранилища.
type Catalog interface {
	domain.Catalog
	// ApplyStock перезаписывает остатки известных товаров и возвращает число обновлённых.
	ApplyStock(levels []domain.StockLevel) int
	// StockLevels возвращает текущие остатки в порядке ID.
	StockLevels() []domain.StockLevel
}

// NewCatalog создаёт каталог из готовых категорий и товаров.
func NewCatalog(categories []*domain.Category, products []*domain.Product) Catalog {
	c := &catalogInMemory{
		products:   make(map[int64]*domain.Product, len(products)),
		categories: make(map[int64]*domain.Category, len(categories)),
	}
	for _, category := range categories {
		c.categories[category.ID] = category
	}
	for _, product := range products {
		c.products[product.ID] = product
	}
	return c
}

// Product возвращает товар или ErrProductNotFound.
func (c *catalogInMemory) Product(id int64) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

// Products возвращает товары в порядке ID.
func (c *catalogInMemory) Products() []*domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*domain.Product, 0, len(c.products))
	for _, p := range c.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Categories возвращает категории в порядке ID.
func (c *catalogInMemory) Categories() []*domain.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*domain.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		result = append(result, cat)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (c *catalogInMemory) ApplyStock(levels []domain.StockLevel) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := 0
	for _, level := range levels {
		product, ok := c.products[level.ProductID]
		if !ok || level.Stock < 0 {
			continue
		}
		product.Stock = level.Stock
		updated++
	}
	return updated
}

func (c *catalogInMemory) StockLevels() []domain.StockLevel {
	products := c.Products()
	levels := make([]domain.StockLevel, 0, len(products))
	for _, p := range products {
		levels = append(levels, domain.StockLevel{ProductID: p.ID, Stock: p.Stock})
	}
	return levels
}

var _ domain.Catalog = (*catalogInMemory)(nil)
