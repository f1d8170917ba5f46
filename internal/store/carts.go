package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/retroryan/shopledger/internal/model"
)

// ActiveCart returns the user's active cart with its lines, or ErrNotFound.
func ActiveCart(ctx context.Context, q Querier, userID string) (model.Cart, error) {
	var (
		c                model.Cart
		status           string
		created, updated int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, status, created_at, updated_at
		FROM carts WHERE user_id = ? AND status = 'active'
	`, userID).Scan(&c.ID, &c.UserID, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cart{}, ErrNotFound
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("active cart for %s: %w", userID, err)
	}
	c.Status = model.CartStatus(status)
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)

	items, err := CartItems(ctx, q, c.ID)
	if err != nil {
		return model.Cart{}, err
	}
	c.Items = items
	return c, nil
}

// InsertCart creates a cart row. The partial unique index rejects a second
// active cart for the same user.
func InsertCart(ctx context.Context, q Querier, c model.Cart) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.UserID, string(c.Status), toNanos(c.CreatedAt), toNanos(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert cart %s: %w", c.ID, err)
	}
	return nil
}

// TouchCart stamps updated_at on an active cart.
func TouchCart(ctx context.Context, q Querier, cartID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE carts SET updated_at = ? WHERE id = ? AND status = 'active'
	`, toNanos(at), cartID)
	if err != nil {
		return fmt.Errorf("touch cart %s: %w", cartID, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("touch cart %s: %w", cartID, err)
	}
	return nil
}

// SetCartStatus moves a cart from one status to another. The update is
// guarded on the current status; a cart that already left it yields
// ErrConflict.
func SetCartStatus(ctx context.Context, q Querier, cartID string, from, to model.CartStatus, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE carts SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), toNanos(at), cartID, string(from))
	if err != nil {
		return fmt.Errorf("set cart %s status: %w", cartID, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("set cart %s status %s -> %s: %w", cartID, from, to, err)
	}
	return nil
}

// CartItems returns the lines of a cart ordered by insertion time.
func CartItems(ctx context.Context, q Querier, cartID string) ([]model.CartItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, ci.price_at_add
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ?
		ORDER BY ci.added_at ASC, ci.product_id ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart items %s: %w", cartID, err)
	}
	defer rows.Close()

	items := []model.CartItem{}
	for rows.Next() {
		var (
			it    model.CartItem
			price int64
		)
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("cart items %s: scan: %w", cartID, err)
		}
		it.PriceAtAdd = model.Money(price)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart items %s: %w", cartID, err)
	}
	return items, nil
}

// UpsertCartItem writes the single line for a product, replacing quantity and
// price if the line exists.
func UpsertCartItem(ctx context.Context, q Querier, cartID string, item model.CartItem, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, price_at_add, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cart_id, product_id) DO UPDATE SET
			quantity = excluded.quantity,
			price_at_add = excluded.price_at_add
	`, cartID, item.ProductID, item.Quantity, int64(item.PriceAtAdd), toNanos(at))
	if err != nil {
		return fmt.Errorf("upsert cart item %s/%s: %w", cartID, item.ProductID, err)
	}
	return nil
}

// DeleteCartItem removes one line.
func DeleteCartItem(ctx context.Context, q Querier, cartID, productID string) error {
	res, err := q.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?
	`, cartID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item %s/%s: %w", cartID, productID, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("delete cart item %s/%s: %w", cartID, productID, err)
	}
	return nil
}

// DeleteCartItems removes every line of a cart and returns how many went.
func DeleteCartItems(ctx context.Context, q Querier, cartID string) (int, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	if err != nil {
		return 0, fmt.Errorf("delete cart items %s: %w", cartID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cart items %s: rows affected: %w", cartID, err)
	}
	return int(n), nil
}

// StaleActiveCarts returns ids of active carts last updated before cutoff,
// oldest first.
func StaleActiveCarts(ctx context.Context, q Querier, cutoff time.Time) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM carts
		WHERE status = 'active' AND updated_at < ?
		ORDER BY updated_at ASC, id ASC
	`, toNanos(cutoff))
	if err != nil {
		return nil, fmt.Errorf("stale carts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("stale carts: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCart returns any cart by id regardless of status, with its lines.
func GetCart(ctx context.Context, q Querier, cartID string) (model.Cart, error) {
	var (
		c                model.Cart
		status           string
		created, updated int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, status, created_at, updated_at FROM carts WHERE id = ?
	`, cartID).Scan(&c.ID, &c.UserID, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cart{}, ErrNotFound
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("get cart %s: %w", cartID, err)
	}
	c.Status = model.CartStatus(status)
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	items, err := CartItems(ctx, q, c.ID)
	if err != nil {
		return model.Cart{}, err
	}
	c.Items = items
	return c, nil
}
