package report

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/cart"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/order"
	"github.com/retroryan/shopledger/internal/store"
	"github.com/retroryan/shopledger/internal/testutil"
)

type fixture struct {
	reporter *Reporter
	carts    *cart.Service
	orders   *order.Service
	store    *store.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := testutil.OpenStore(t)
	testutil.SeedProducts(t, st,
		testutil.Product{ID: "widget", Name: "Widget", Price: 2500, Stock: 10},
		testutil.Product{ID: "gadget", Name: "Gadget", Price: 5000, Stock: 4},
		testutil.Product{ID: "gizmo", Name: "Gizmo", Price: 1250, Stock: 0},
	)
	clock := testutil.NewFakeClock()
	logger := slog.New(slog.DiscardHandler)
	led := ledger.New(logger)
	return fixture{
		reporter: New(st),
		carts:    cart.New(st, led, cart.Options{Clock: clock, IDs: testutil.NewSequentialIDs("cart"), Logger: logger}),
		orders:   order.New(st, led, order.Options{Clock: clock, IDs: testutil.NewSequentialIDs("order"), Logger: logger}),
		store:    st,
	}
}

func TestInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "u1", "gadget", 3)
	require.NoError(t, err)

	lines, err := f.reporter.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"gadget", "gizmo", "widget"}, []string{lines[0].ProductID, lines[1].ProductID, lines[2].ProductID})
	assert.Equal(t, InventoryLine{
		ProductID: "gadget", Name: "Gadget", Price: 5000, Stock: 4, Reserved: 3, Available: 1,
	}, lines[0])
}

func TestLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "u1", "gadget", 3)
	require.NoError(t, err)

	low, err := f.reporter.LowStock(ctx, 1)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "gadget", low[0].ProductID)
	assert.Equal(t, "gizmo", low[1].ProductID)

	none, err := f.reporter.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, none, 1)
	assert.Equal(t, "gizmo", none[0].ProductID)

	_, err = f.reporter.LowStock(ctx, -1)
	assert.Equal(t, model.CodeInvalidInput, model.CodeOf(err))
}

func TestOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "u1", "widget", 2)
	require.NoError(t, err)
	kept, err := f.orders.Checkout(ctx, "u1", "1 Main St")
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, "u1", "gadget", 1)
	require.NoError(t, err)
	dropped, err := f.orders.Checkout(ctx, "u1", "1 Main St")
	require.NoError(t, err)
	_, err = f.orders.Cancel(ctx, "u1", dropped.ID)
	require.NoError(t, err)

	stats, err := f.reporter.Orders(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OrderCount)
	assert.Equal(t, 1, stats.ByStatus[model.OrderPending])
	assert.Equal(t, 1, stats.ByStatus[model.OrderCancelled])
	assert.Equal(t, 0, stats.ByStatus[model.OrderShipped])
	assert.Equal(t, kept.Total, stats.TotalSpent, "cancelled orders are not spend")

	empty, err := f.reporter.Orders(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.OrderCount)
	assert.Len(t, empty.ByStatus, len(model.OrderStatuses))
}

func TestReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "u1", "widget", 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, "u2", "widget", 3)
	require.NoError(t, err)

	lines, err := f.reporter.Reservations(ctx)
	require.NoError(t, err)
	for _, line := range lines {
		assert.True(t, line.Consistent, line.ProductID)
	}

	// Drift between the ledger and the carts is reported, not hidden
	_, err = f.store.DB().Exec(`UPDATE inventory SET reserved_quantity = 4 WHERE product_id = 'widget'`)
	require.NoError(t, err)

	lines, err = f.reporter.Reservations(ctx)
	require.NoError(t, err)
	for _, line := range lines {
		if line.ProductID == "widget" {
			assert.False(t, line.Consistent)
			assert.Equal(t, 4, line.Reserved)
			assert.Equal(t, 5, line.InCarts)
		}
	}
}

func TestReservations_ConsistentUnderConcurrentCarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := f.carts.AddItem(ctx, "u1", "widget", 2); err != nil {
				t.Error(err)
				return
			}
			if _, err := f.carts.RemoveItem(ctx, "u1", "widget", nil); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		lines, err := f.reporter.Reservations(ctx)
		require.NoError(t, err)
		for _, line := range lines {
			assert.True(t, line.Consistent, "%+v", line)
		}
	}
	wg.Wait()
}
