package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// OrderArchive сохраняет снимки заказов вместе с остатками затронутых товаров.
type OrderArchive struct {
	store *Store
}

// NewOrderArchive создаёт PostgreSQL-реализацию OrderArchive.
func NewOrderArchive(store *Store) *OrderArchive {
	return &OrderArchive{store: store}
}

// Archive записывает заказ, его позиции и остатки товаров одной транзакцией.
// Повторный снимок того же заказа перезаписывает статус, суммы и позиции.
func (a *OrderArchive) Archive(ctx context.Context, snap domain.OrderSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := a.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, customer_id, status, payment_kind, payment_name,
				subtotal_minor, discount_minor, total_minor, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status,
			    payment_kind = EXCLUDED.payment_kind,
			    payment_name = EXCLUDED.payment_name,
			    subtotal_minor = EXCLUDED.subtotal_minor,
			    discount_minor = EXCLUDED.discount_minor,
			    total_minor = EXCLUDED.total_minor,
			    updated_at = EXCLUDED.updated_at
		`,
			snap.ID, snap.CustomerID, string(snap.Status), string(snap.PaymentKind), snap.PaymentName,
			snap.SubtotalMinor, snap.DiscountMinor, snap.TotalMinor, snap.CreatedAt, snap.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert order %d: %w", snap.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, snap.ID); err != nil {
			return fmt.Errorf("clear order items %d: %w", snap.ID, err)
		}
		for _, line := range snap.Lines {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_minor, total_minor)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, snap.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPriceMinor, line.TotalMinor); err != nil {
				return fmt.Errorf("insert order item %d/%d: %w", snap.ID, line.ProductID, err)
			}
		}

		for _, level := range snap.Stock {
			if _, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1
			`, level.ProductID, level.Stock); err != nil {
				return fmt.Errorf("update stock %d: %w", level.ProductID, err)
			}
		}

		return nil
	})
	return classifyArchiveError(err)
}

// classifyArchiveError переводит нарушения ограничений в доменные ошибки.
func classifyArchiveError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		if pgErr.ConstraintName == "orders_customer_id_fkey" {
			return fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, pgErr.Message)
		}
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, pgErr.Message)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrStockUnavailable, pgErr.Message)
	default:
		return err
	}
}

// ListByCustomer читает архивные заказы покупателя, новые первыми.
func (a *OrderArchive) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.OrderSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := a.store.db.QueryContext(ctx, `
		SELECT id, customer_id, status, payment_kind, payment_name,
		       subtotal_minor, discount_minor, total_minor, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived orders: %w", err)
	}
	defer rows.Close()

	result := make([]domain.OrderSnapshot, 0)
	for rows.Next() {
		var (
			snap        domain.OrderSnapshot
			status      string
			paymentKind string
		)
		if err := rows.Scan(
			&snap.ID, &snap.CustomerID, &status, &paymentKind, &snap.PaymentName,
			&snap.SubtotalMinor, &snap.DiscountMinor, &snap.TotalMinor, &snap.CreatedAt, &snap.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archived order: %w", err)
		}
		snap.Status = domain.OrderStatus(status)
		snap.PaymentKind = domain.PaymentKind(paymentKind)
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived orders: %w", err)
	}

	return result, nil
}

var _ domain.OrderArchive = (*OrderArchive)(nil)
