// Package report provides read-only projections over the store. Results may
// be slightly stale relative to concurrent writers.
package report

import (
	"context"
	"database/sql"

	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

// Reporter runs projections against a store.
type Reporter struct {
	store *store.Store
}

// New creates a reporter.
func New(st *store.Store) *Reporter {
	return &Reporter{store: st}
}

// InventoryLine is one product in the inventory listing.
type InventoryLine struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	Price     model.Money `json:"price"`
	Stock     int         `json:"stock"`
	Reserved  int         `json:"reserved"`
	Available int         `json:"available"`
}

// Inventory lists every product with its stock figures, ordered by id.
func (r *Reporter) Inventory(ctx context.Context) ([]InventoryLine, error) {
	rows, err := store.ListInventory(ctx, r.store.DB())
	if err != nil {
		return nil, err
	}
	out := make([]InventoryLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, InventoryLine{
			ProductID: row.Product.ID,
			Name:      row.Product.Name,
			Price:     row.Product.Price,
			Stock:     row.Inventory.Stock,
			Reserved:  row.Inventory.Reserved,
			Available: row.Inventory.Available(),
		})
	}
	return out, nil
}

// LowStock lists products whose available quantity is at or below threshold.
func (r *Reporter) LowStock(ctx context.Context, threshold int) ([]InventoryLine, error) {
	if threshold < 0 {
		return nil, model.InvalidInput("threshold", "must not be negative, got %d", threshold)
	}
	all, err := r.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	out := []InventoryLine{}
	for _, line := range all {
		if line.Available <= threshold {
			out = append(out, line)
		}
	}
	return out, nil
}

// OrderStats summarises a user's orders.
type OrderStats struct {
	UserID     string                    `json:"user_id"`
	OrderCount int                       `json:"order_count"`
	ByStatus   map[model.OrderStatus]int `json:"by_status"`
	TotalSpent model.Money               `json:"total_spent"`
}

// Orders aggregates a user's orders. Cancelled orders count towards
// OrderCount and ByStatus but not TotalSpent.
func (r *Reporter) Orders(ctx context.Context, userID string) (OrderStats, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return OrderStats{}, err
	}
	counts, totals, err := store.OrderCounts(ctx, r.store.DB(), userID)
	if err != nil {
		return OrderStats{}, err
	}
	stats := OrderStats{UserID: userID, ByStatus: make(map[model.OrderStatus]int)}
	for _, st := range model.OrderStatuses {
		n := counts[st]
		stats.ByStatus[st] = n
		stats.OrderCount += n
		if st != model.OrderCancelled {
			stats.TotalSpent += totals[st]
		}
	}
	return stats, nil
}

// ReservationLine compares the ledger's reserved figure with what active
// carts actually hold.
type ReservationLine struct {
	ProductID  string `json:"product_id"`
	Reserved   int    `json:"reserved"`
	InCarts    int    `json:"in_active_carts"`
	Consistent bool   `json:"consistent"`
}

// Reservations checks reservation conservation for every product.
func (r *Reporter) Reservations(ctx context.Context) ([]ReservationLine, error) {
	var (
		rows []store.InventoryRow
		held map[string]int
	)
	// both reads see one snapshot
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rows, err = store.ListInventory(ctx, tx); err != nil {
			return err
		}
		held, err = store.ActiveReservations(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]ReservationLine, 0, len(rows))
	for _, row := range rows {
		inCarts := held[row.Product.ID]
		out = append(out, ReservationLine{
			ProductID:  row.Product.ID,
			Reserved:   row.Inventory.Reserved,
			InCarts:    inCarts,
			Consistent: inCarts == row.Inventory.Reserved,
		})
	}
	return out, nil
}
