package domain

import "fmt"

// popularCategoryThreshold: категория считается популярной, если в ней больше товаров.
const popularCategoryThreshold = 10

// Category: раздел каталога.
type Category struct {
	ID          int64
	Name        string
	Description string
	// ProductCount пересчитывается каталогом через RecountCategories.
	ProductCount int
}

// IsPopular сообщает, что в категории больше десяти товаров.
func (c *Category) IsPopular() bool {
	return c.ProductCount > popularCategoryThreshold
}

func (c *Category) String() string {
	return fmt.Sprintf("%s (%d products)", c.Name, c.ProductCount)
}

// Product: товар каталога. Stock изменяется при резервировании и возврате заказов.
type Product struct {
	ID          int64
	Name        string
	PriceMinor  int64
	Stock       int
	Category    *Category
	Description string
}

// Available сообщает, хватает ли на складе qty единиц.
func (p *Product) Available(qty int) bool {
	return p != nil && qty > 0 && p.Stock >= qty
}

// CategoryName возвращает имя категории или пустую строку.
func (p *Product) CategoryName() string {
	if p == nil || p.Category == nil {
		return ""
	}
	return p.Category.Name
}

// DisplayInfo: короткая строка для списка товаров.
func (p *Product) DisplayInfo() string {
	return fmt.Sprintf("%s - %s (in stock: %d)", p.Name, FormatMinor(p.PriceMinor), p.Stock)
}

// Details: подробное описание товара.
func (p *Product) Details() string {
	return fmt.Sprintf("%s\nPrice: %s\nIn stock: %d\nCategory: %s\nDescription: %s",
		p.Name, FormatMinor(p.PriceMinor), p.Stock, p.CategoryName(), p.Description)
}

// RecountCategories пересчитывает ProductCount по ссылкам товаров на категории.
func RecountCategories(categories []*Category, products []*Product) {
	counts := make(map[int64]int, len(categories))
	for _, p := range products {
		if p == nil || p.Category == nil {
			continue
		}
		counts[p.Category.ID]++
	}
	for _, c := range categories {
		c.ProductCount = counts[c.ID]
	}
}

// FormatMinor печатает сумму в минимальных единицах как 1234.56.
func FormatMinor(amountMinor int64) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d", sign, amountMinor/100, amountMinor%100)
}
