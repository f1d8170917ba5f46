package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/retroryan/shopledger/internal/model"
)

// UpsertProduct inserts or refreshes a product's catalog copy. The created_at
// stamp of an existing row is preserved.
func UpsertProduct(ctx context.Context, q Querier, p model.Product) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO products (id, name, price_cents, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price_cents = excluded.price_cents
	`, p.ID, p.Name, int64(p.Price), toNanos(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// GetProduct returns a product or ErrNotFound.
func GetProduct(ctx context.Context, q Querier, id string) (model.Product, error) {
	var (
		p       model.Product
		price   int64
		created int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, price_cents, created_at FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &price, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	p.Price = model.Money(price)
	p.CreatedAt = fromNanos(created)
	return p, nil
}

// InventoryRow joins a product with its inventory record.
type InventoryRow struct {
	Product   model.Product
	Inventory model.InventoryRecord
}

// GetInventory returns the inventory record for a product or ErrNotFound.
func GetInventory(ctx context.Context, q Querier, productID string) (model.InventoryRecord, error) {
	var (
		r         model.InventoryRecord
		restocked int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT product_id, stock_quantity, reserved_quantity, last_restocked
		FROM inventory WHERE product_id = ?
	`, productID).Scan(&r.ProductID, &r.Stock, &r.Reserved, &restocked)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryRecord{}, ErrNotFound
	}
	if err != nil {
		return model.InventoryRecord{}, fmt.Errorf("get inventory %s: %w", productID, err)
	}
	r.LastRestocked = fromNanos(restocked)
	return r, nil
}

// InsertInventory creates an inventory row. An existing row is left
// untouched and reported via the returned bool.
func InsertInventory(ctx context.Context, q Querier, productID string, stock int, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO inventory (product_id, stock_quantity, reserved_quantity, last_restocked)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(product_id) DO NOTHING
	`, productID, stock, toNanos(at))
	if err != nil {
		return false, fmt.Errorf("insert inventory %s: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert inventory %s: rows affected: %w", productID, err)
	}
	return n > 0, nil
}

// ListInventory returns every product with its inventory, ordered by id.
func ListInventory(ctx context.Context, q Querier) ([]InventoryRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.name, p.price_cents, p.created_at,
		       i.stock_quantity, i.reserved_quantity, i.last_restocked
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		ORDER BY p.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var (
			r                  InventoryRow
			price              int64
			created, restocked int64
		)
		if err := rows.Scan(&r.Product.ID, &r.Product.Name, &price, &created,
			&r.Inventory.Stock, &r.Inventory.Reserved, &restocked); err != nil {
			return nil, fmt.Errorf("list inventory: scan: %w", err)
		}
		r.Product.Price = model.Money(price)
		r.Product.CreatedAt = fromNanos(created)
		r.Inventory.ProductID = r.Product.ID
		r.Inventory.LastRestocked = fromNanos(restocked)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return out, nil
}

// ActiveReservations sums line quantities across active carts, per product.
// Products with no active lines are absent from the map.
func ActiveReservations(ctx context.Context, q Querier) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.product_id, SUM(ci.quantity)
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.status = 'active'
		GROUP BY ci.product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("active reservations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id  string
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("active reservations: scan: %w", err)
		}
		out[id] = qty
	}
	return out, rows.Err()
}
