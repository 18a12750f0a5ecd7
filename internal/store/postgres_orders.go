package store

import (
	"context"
	"database/sql"
	"fmt"

	"order-ledger/internal/models"
)

// CreateOrderWithItems writes the order row and every item row inside one
// transaction. Readers never observe the order without its items.
func (s *Postgres) CreateOrderWithItems(ctx context.Context, o *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (customer_id, total_amount, order_status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, o, query, o.CustomerID, o.TotalAmount, o.Status); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	for i := range items {
		items[i].OrderID = o.ID
		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Postgres) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	err := s.db.GetContext(ctx, &o, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Postgres) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

func (s *Postgres) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY id")
	return orders, err
}

func (s *Postgres) ListOrderItems(ctx context.Context) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, "SELECT * FROM order_items ORDER BY id")
	return items, err
}

// TransitionOrderStatus compares-and-sets the status in one statement.
func (s *Postgres) TransitionOrderStatus(ctx context.Context, orderID int64, expected, next string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET order_status = $1 WHERE id = $2 AND order_status = $3",
		next, orderID, expected)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.GetContext(ctx, &current, "SELECT order_status FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("order %d is %s, expected %s: %w", orderID, current, expected, ErrConflict)
}
