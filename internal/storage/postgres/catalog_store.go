package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SeedCatalog записывает категории, товары и покупателей. Для уже существующих товаров
// обновляются описательные поля и цена, но не остаток: склад в базе главнее стартовых данных.
func (s *Store) SeedCatalog(ctx context.Context, data catalog.Data) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range data.Categories {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, name, description)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name, description = EXCLUDED.description
			`, c.ID, c.Name, c.Description); err != nil {
				return fmt.Errorf("seed category %d: %w", c.ID, err)
			}
		}

		for _, p := range data.Products {
			var categoryID sql.NullInt64
			if p.Category != nil {
				categoryID = sql.NullInt64{Int64: p.Category.ID, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO products (id, name, price_minor, stock, category_id, description, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, NOW())
				ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name,
				    price_minor = EXCLUDED.price_minor,
				    category_id = EXCLUDED.category_id,
				    description = EXCLUDED.description
			`, p.ID, p.Name, p.PriceMinor, p.Stock, categoryID, p.Description); err != nil {
				return fmt.Errorf("seed product %d: %w", p.ID, err)
			}
		}

		for _, c := range data.Customers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO customers (id, name, email, phone, address)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name, email = EXCLUDED.email,
				    phone = EXCLUDED.phone, address = EXCLUDED.address
			`, c.ID, c.Name, c.Email, c.Phone, c.Address); err != nil {
				return fmt.Errorf("seed customer %d: %w", c.ID, err)
			}
		}

		return nil
	})
}

// LoadStock возвращает сохранённые остатки всех товаров.
func (s *Store) LoadStock(ctx context.Context) ([]domain.StockLevel, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, stock FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	levels := make([]domain.StockLevel, 0)
	for rows.Next() {
		var level domain.StockLevel
		if err := rows.Scan(&level.ProductID, &level.Stock); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock rows: %w", err)
	}

	return levels, nil
}

// MaxOrderID возвращает наибольший сохранённый номер заказа (0, если заказов нет).
func (s *Store) MaxOrderID(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM orders`).Scan(&id); err != nil {
		return 0, fmt.Errorf("query max order id: %w", err)
	}
	return id, nil
}
