package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/retroryan/shopledger/internal/model"
)

// InsertOrder writes an order row and its item snapshot.
func InsertOrder(ctx context.Context, q Querier, o model.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_cents, shipping_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, string(o.Status), int64(o.Total), o.ShippingAddress,
		toNanos(o.CreatedAt), toNanos(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	for _, it := range o.Items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents)
			VALUES (?, ?, ?, ?, ?, ?)
		`, o.ID, it.ProductID, it.ProductName, it.Quantity, int64(it.UnitPrice), int64(it.Subtotal))
		if err != nil {
			return fmt.Errorf("insert order item %s/%s: %w", o.ID, it.ProductID, err)
		}
	}
	return nil
}

// GetOrder returns an order with its items or ErrNotFound. An empty userID
// skips the ownership filter (administrative access).
func GetOrder(ctx context.Context, q Querier, userID, orderID string) (model.Order, error) {
	query := `
		SELECT id, user_id, status, total_cents, shipping_address, created_at, updated_at
		FROM orders WHERE id = ?`
	args := []any{orderID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}

	items, err := OrderItems(ctx, q, o.ID)
	if err != nil {
		return model.Order{}, err
	}
	o.Items = items
	return o, nil
}

// ListOrders returns a user's orders, newest first, optionally filtered by
// status. Items are populated.
func ListOrders(ctx context.Context, q Querier, userID string, status *model.OrderStatus) ([]model.Order, error) {
	query := `
		SELECT id, user_id, status, total_cents, shipping_address, created_at, updated_at
		FROM orders WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", userID, err)
	}

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list orders for %s: scan: %w", userID, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list orders for %s: %w", userID, err)
	}
	// Close before issuing the item queries: the pool has a single connection.
	rows.Close()

	for i := range orders {
		items, err := OrderItems(ctx, q, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// OrderItems returns the frozen item snapshot of an order.
func OrderItems(ctx context.Context, q Querier, orderID string) ([]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id = ?
		ORDER BY rowid ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items %s: %w", orderID, err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var (
			it             model.OrderItem
			unit, subtotal int64
		)
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &unit, &subtotal); err != nil {
			return nil, fmt.Errorf("order items %s: scan: %w", orderID, err)
		}
		it.UnitPrice = model.Money(unit)
		it.Subtotal = model.Money(subtotal)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order items %s: %w", orderID, err)
	}
	return items, nil
}

// SetOrderStatus moves an order from one status to another, guarded on the
// current status (ErrConflict if it changed underneath).
func SetOrderStatus(ctx context.Context, q Querier, orderID string, from, to model.OrderStatus, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), toNanos(at), orderID, string(from))
	if err != nil {
		return fmt.Errorf("set order %s status: %w", orderID, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("set order %s status %s -> %s: %w", orderID, from, to, err)
	}
	return nil
}

// OrderCounts aggregates a user's orders per status together with the
// summed totals.
func OrderCounts(ctx context.Context, q Querier, userID string) (map[model.OrderStatus]int, map[model.OrderStatus]model.Money, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM orders WHERE user_id = ?
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("order counts for %s: %w", userID, err)
	}
	defer rows.Close()

	counts := make(map[model.OrderStatus]int)
	totals := make(map[model.OrderStatus]model.Money)
	for rows.Next() {
		var (
			status string
			n      int
			sum    int64
		)
		if err := rows.Scan(&status, &n, &sum); err != nil {
			return nil, nil, fmt.Errorf("order counts for %s: scan: %w", userID, err)
		}
		counts[model.OrderStatus(status)] = n
		totals[model.OrderStatus(status)] = model.Money(sum)
	}
	return counts, totals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (model.Order, error) {
	var (
		o                model.Order
		status           string
		total            int64
		created, updated int64
	)
	if err := r.Scan(&o.ID, &o.UserID, &status, &total, &o.ShippingAddress, &created, &updated); err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.Total = model.Money(total)
	o.CreatedAt = fromNanos(created)
	o.UpdatedAt = fromNanos(updated)
	return o, nil
}
