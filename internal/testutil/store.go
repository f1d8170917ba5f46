package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

// Product is a catalog row for SeedProducts.
type Product struct {
	ID    string
	Name  string
	Price model.Money
	Stock int
}

// OpenStore returns a fresh in-memory store closed at test cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// SeedProducts writes products and their inventory directly, bypassing the
// ledger.
func SeedProducts(t *testing.T, st *store.Store, products ...Product) {
	t.Helper()
	ctx := context.Background()
	for _, p := range products {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		require.NoError(t, store.UpsertProduct(ctx, st.DB(), model.Product{
			ID: p.ID, Name: name, Price: p.Price, CreatedAt: Epoch,
		}))
		_, err := store.InsertInventory(ctx, st.DB(), p.ID, p.Stock, Epoch)
		require.NoError(t, err)
	}
}

// Inventory reads a product's stock and reserved counters.
func Inventory(t *testing.T, st *store.Store, productID string) (stock, reserved int) {
	t.Helper()
	rec, err := store.GetInventory(context.Background(), st.DB(), productID)
	require.NoError(t, err)
	return rec.Stock, rec.Reserved
}

// Backdate moves a cart's updated_at into the past, simulating idleness.
func Backdate(t *testing.T, st *store.Store, cartID string, at time.Time) {
	t.Helper()
	_, err := st.DB().Exec(`UPDATE carts SET updated_at = ? WHERE id = ?`, at.UTC().UnixNano(), cartID)
	require.NoError(t, err)
}
