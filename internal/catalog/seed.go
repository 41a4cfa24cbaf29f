// Package catalog загружает стартовые данные витрины и фильтрует товары.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedCategory: категория в YAML.
type SeedCategory struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SeedProduct: товар в YAML; цена задаётся строкой вида "1299.90".
type SeedProduct struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Price       string `yaml:"price"`
	Stock       int    `yaml:"stock"`
	CategoryID  int64  `yaml:"category_id"`
	Description string `yaml:"description"`
}

// SeedCustomer: покупатель в YAML.
type SeedCustomer struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
}

// Seed: стартовый набор данных.
type Seed struct {
	Categories []SeedCategory `yaml:"categories"`
	Products   []SeedProduct  `yaml:"products"`
	Customers  []SeedCustomer `yaml:"customers"`
}

// Data: собранные доменные объекты, готовые для in-memory хранилищ.
type Data struct {
	Categories []*domain.Category
	Products   []*domain.Product
	Customers  []*domain.Customer
}

// DefaultSeed возвращает встроенный каталог.
func DefaultSeed() (Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed читает каталог из файла; пустой путь означает встроенный каталог.
func LoadSeed(path string) (Seed, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSeed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed разбирает YAML и проверяет ссылочную целостность.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// Validate проверяет уникальность ID, ссылки на категории, цены и остатки.
func (s Seed) Validate() error {
	var errs []error

	categories := make(map[int64]struct{}, len(s.Categories))
	for _, c := range s.Categories {
		if c.ID <= 0 {
			errs = append(errs, fmt.Errorf("category %q: id must be positive", c.Name))
			continue
		}
		if _, dup := categories[c.ID]; dup {
			errs = append(errs, fmt.Errorf("category %d: duplicate id", c.ID))
		}
		categories[c.ID] = struct{}{}
	}

	products := make(map[int64]struct{}, len(s.Products))
	for _, p := range s.Products {
		if p.ID <= 0 {
			errs = append(errs, fmt.Errorf("product %q: id must be positive", p.Name))
			continue
		}
		if _, dup := products[p.ID]; dup {
			errs = append(errs, fmt.Errorf("product %d: duplicate id", p.ID))
		}
		products[p.ID] = struct{}{}
		if _, err := ParsePrice(p.Price); err != nil {
			errs = append(errs, fmt.Errorf("product %d: %w", p.ID, err))
		}
		if p.Stock < 0 {
			errs = append(errs, fmt.Errorf("product %d: stock must be non-negative", p.ID))
		}
		if p.CategoryID != 0 {
			if _, ok := categories[p.CategoryID]; !ok {
				errs = append(errs, fmt.Errorf("product %d: unknown category %d", p.ID, p.CategoryID))
			}
		}
	}

	customers := make(map[int64]struct{}, len(s.Customers))
	for _, c := range s.Customers {
		if c.ID <= 0 {
			errs = append(errs, fmt.Errorf("customer %q: id must be positive", c.Name))
			continue
		}
		if _, dup := customers[c.ID]; dup {
			errs = append(errs, fmt.Errorf("customer %d: duplicate id", c.ID))
		}
		customers[c.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

// Build превращает Seed в доменные объекты и пересчитывает количество товаров в категориях.
func (s Seed) Build() (Data, error) {
	if err := s.Validate(); err != nil {
		return Data{}, err
	}

	data := Data{
		Categories: make([]*domain.Category, 0, len(s.Categories)),
		Products:   make([]*domain.Product, 0, len(s.Products)),
		Customers:  make([]*domain.Customer, 0, len(s.Customers)),
	}

	byID := make(map[int64]*domain.Category, len(s.Categories))
	for _, c := range s.Categories {
		category := &domain.Category{ID: c.ID, Name: c.Name, Description: c.Description}
		byID[c.ID] = category
		data.Categories = append(data.Categories, category)
	}

	for _, p := range s.Products {
		price, _ := ParsePrice(p.Price)
		data.Products = append(data.Products, &domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			PriceMinor:  price,
			Stock:       p.Stock,
			Category:    byID[p.CategoryID],
			Description: p.Description,
		})
	}

	for _, c := range s.Customers {
		data.Customers = append(data.Customers, &domain.Customer{
			ID:      c.ID,
			Name:    c.Name,
			Email:   c.Email,
			Phone:   c.Phone,
			Address: c.Address,
		})
	}

	domain.RecountCategories(data.Categories, data.Products)
	return data, nil
}

// ParsePrice переводит "1299.9" в минимальные единицы (129990). Допускается не больше двух знаков после точки.
func ParsePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("price is required")
	}
	if strings.HasPrefix(raw, "-") {
		return 0, fmt.Errorf("price %q must be non-negative", raw)
	}

	whole, frac, _ := strings.Cut(raw, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("price %q has more than two decimal places", raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", raw, err)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", raw, err)
	}
	return units*100 + cents, nil
}
