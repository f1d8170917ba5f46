// Package ledger implements per-product stock and reservation bookkeeping.
//
// Every primitive that checks availability does so inside a single
// conditional UPDATE, never as a read followed by a write, so two concurrent
// callers cannot both pass the check. Primitives take a store.Querier and are
// meant to run inside the caller's transaction; the ledger never opens one.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

// Ledger holds no state of its own; it exists to carry a logger.
type Ledger struct {
	logger *slog.Logger
}

// New creates a ledger. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger}
}

// Reserve increases reserved_quantity by qty iff stock - reserved >= qty.
// A false result with a nil error is the normal "insufficient stock" outcome.
func (l *Ledger) Reserve(ctx context.Context, q store.Querier, productID string, qty int) (bool, error) {
	if err := validate(productID, qty); err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET reserved_quantity = reserved_quantity + ?
		WHERE product_id = ? AND stock_quantity - reserved_quantity >= ?
	`, qty, productID, qty)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", productID, err)
	}
	ok, err := changed(res)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", productID, err)
	}
	l.logger.Debug("reserve", "product_id", productID, "qty", qty, "ok", ok)
	return ok, nil
}

// Rereserve swaps an existing reservation of oldQty for one of newQty in a
// single conditional update: the old hold is released (clamped at 0) and the
// new one taken only if the stock not held by anyone else covers newQty. On
// a false result the old reservation is untouched.
func (l *Ledger) Rereserve(ctx context.Context, q store.Querier, productID string, oldQty, newQty int) (bool, error) {
	if err := validate(productID, newQty); err != nil {
		return false, err
	}
	if oldQty < 0 {
		return false, model.InvalidInput("old_quantity", "must not be negative, got %d", oldQty)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET reserved_quantity = MAX(reserved_quantity - ?, 0) + ?
		WHERE product_id = ? AND stock_quantity - MAX(reserved_quantity - ?, 0) >= ?
	`, oldQty, newQty, productID, oldQty, newQty)
	if err != nil {
		return false, fmt.Errorf("rereserve %s: %w", productID, err)
	}
	ok, err := changed(res)
	if err != nil {
		return false, fmt.Errorf("rereserve %s: %w", productID, err)
	}
	l.logger.Debug("rereserve", "product_id", productID, "from", oldQty, "to", newQty, "ok", ok)
	return ok, nil
}

// Release decreases reserved_quantity by qty, clamped at 0.
func (l *Ledger) Release(ctx context.Context, q store.Querier, productID string, qty int) error {
	if err := validate(productID, qty); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET reserved_quantity = MAX(reserved_quantity - ?, 0)
		WHERE product_id = ?
	`, qty, productID)
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	ok, err := changed(res)
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	if !ok {
		return unknownProduct(productID)
	}
	l.logger.Debug("release", "product_id", productID, "qty", qty)
	return nil
}

// Commit converts qty reserved units into consumed stock. Both counters must
// cover qty; otherwise nothing changes and false is returned.
func (l *Ledger) Commit(ctx context.Context, q store.Querier, productID string, qty int) (bool, error) {
	if err := validate(productID, qty); err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET stock_quantity = stock_quantity - ?,
		    reserved_quantity = reserved_quantity - ?
		WHERE product_id = ? AND reserved_quantity >= ? AND stock_quantity >= ?
	`, qty, qty, productID, qty, qty)
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", productID, err)
	}
	ok, err := changed(res)
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", productID, err)
	}
	l.logger.Debug("commit", "product_id", productID, "qty", qty, "ok", ok)
	return ok, nil
}

// Restore returns qty units to the sellable pool without creating a
// reservation. Used by cancellation and approved returns.
func (l *Ledger) Restore(ctx context.Context, q store.Querier, productID string, qty int) error {
	if err := validate(productID, qty); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory SET stock_quantity = stock_quantity + ? WHERE product_id = ?
	`, qty, productID)
	if err != nil {
		return fmt.Errorf("restore %s: %w", productID, err)
	}
	ok, err := changed(res)
	if err != nil {
		return fmt.Errorf("restore %s: %w", productID, err)
	}
	if !ok {
		return unknownProduct(productID)
	}
	l.logger.Debug("restore", "product_id", productID, "qty", qty)
	return nil
}

// Restock adds newly received units and stamps last_restocked.
func (l *Ledger) Restock(ctx context.Context, q store.Querier, productID string, qty int, at time.Time) error {
	if err := validate(productID, qty); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE inventory
		SET stock_quantity = stock_quantity + ?, last_restocked = ?
		WHERE product_id = ?
	`, qty, at.UTC().UnixNano(), productID)
	if err != nil {
		return fmt.Errorf("restock %s: %w", productID, err)
	}
	ok, err := changed(res)
	if err != nil {
		return fmt.Errorf("restock %s: %w", productID, err)
	}
	if !ok {
		return unknownProduct(productID)
	}
	l.logger.Info("restocked", "product_id", productID, "qty", qty)
	return nil
}

// Status returns {stock, reserved, available} for a product.
func (l *Ledger) Status(ctx context.Context, q store.Querier, productID string) (model.InventoryStatus, error) {
	if err := model.RequireID("product_id", productID); err != nil {
		return model.InventoryStatus{}, err
	}
	rec, err := store.GetInventory(ctx, q, productID)
	if errors.Is(err, store.ErrNotFound) {
		return model.InventoryStatus{}, unknownProduct(productID)
	}
	if err != nil {
		return model.InventoryStatus{}, err
	}
	return model.StatusOf(rec), nil
}

// Initialize copies a catalog entry into the store: the product row is
// upserted (name and price refreshed) and an inventory row with the given
// stock is created if none exists yet. It reports whether inventory was
// created; existing stock and reservations are never overwritten.
func (l *Ledger) Initialize(ctx context.Context, q store.Querier, p model.Product, stock int, at time.Time) (bool, error) {
	if err := model.RequireID("product_id", p.ID); err != nil {
		return false, err
	}
	if stock < 0 {
		return false, model.InvalidInput("stock", "must not be negative, got %d", stock)
	}
	if p.Price < 0 {
		return false, model.InvalidInput("price", "must not be negative, got %s", p.Price)
	}
	p.Name = model.NormalizeText(p.Name)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = at
	}
	if err := store.UpsertProduct(ctx, q, p); err != nil {
		return false, err
	}
	created, err := store.InsertInventory(ctx, q, p.ID, stock, at)
	if err != nil {
		return false, err
	}
	l.logger.Debug("initialized product", "product_id", p.ID, "stock", stock, "created", created)
	return created, nil
}

func validate(productID string, qty int) error {
	if err := model.RequireID("product_id", productID); err != nil {
		return err
	}
	return model.RequirePositive("quantity", qty)
}

func unknownProduct(productID string) error {
	return model.Rejectf(model.CodeProductNotFound, "product %s not found", productID).
		With("product_id", productID)
}

func changed(res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
