package catalog

import (
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// AllCategories: значение categoryID, отключающее фильтр по категории.
const AllCategories int64 = 0

// Filter отбирает товары по категории и подстроке в названии или описании (без учёта регистра).
func Filter(products []*domain.Product, categoryID int64, query string) []*domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))

	result := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		if categoryID != AllCategories && (p.Category == nil || p.Category.ID != categoryID) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		result = append(result, p)
	}
	return result
}
