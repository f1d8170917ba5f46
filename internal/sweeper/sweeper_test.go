package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/cart"
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
	"github.com/retroryan/shopledger/internal/testutil"
)

type fixture struct {
	sweeper  *Sweeper
	carts    *cart.Service
	store    *store.Store
	clock    *testutil.FakeClock
	recorder *events.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := testutil.OpenStore(t)
	testutil.SeedProducts(t, st,
		testutil.Product{ID: "widget", Price: 2500, Stock: 10},
		testutil.Product{ID: "gadget", Price: 5000, Stock: 10},
	)
	clock := testutil.NewFakeClock()
	logger := slog.New(slog.DiscardHandler)
	led := ledger.New(logger)
	rec := &events.Recorder{}
	return fixture{
		sweeper: New(st, led, Options{Clock: clock, Logger: logger, Publisher: rec}),
		carts: cart.New(st, led, cart.Options{
			Clock:  clock,
			IDs:    testutil.NewSequentialIDs("cart"),
			Logger: logger,
		}),
		store:    st,
		clock:    clock,
		recorder: rec,
	}
}

func (f fixture) add(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func TestCleanup_AbandonsStaleCarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "old", "widget", 3)
	f.add(t, "old", "gadget", 1)
	f.clock.Advance(2 * time.Hour)
	f.add(t, "fresh", "widget", 2)

	rep, err := f.sweeper.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CartsAbandoned)
	assert.Equal(t, 2, rep.ItemsReleased)
	assert.Equal(t, 4, rep.UnitsReleased)
	assert.Equal(t, []string{"cart-1"}, rep.CartIDs)
	assert.Equal(t, testutil.Epoch.Add(time.Hour), rep.Cutoff)

	_, reserved := testutil.Inventory(t, f.store, "widget")
	assert.Equal(t, 2, reserved, "the fresh cart keeps its hold")
	_, reserved = testutil.Inventory(t, f.store, "gadget")
	assert.Equal(t, 0, reserved)

	c, err := store.GetCart(ctx, f.store.DB(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, model.CartAbandoned, c.Status)
	assert.Len(t, c.Items, 2, "lines stay on the abandoned cart")

	abandoned := f.recorder.OfType(events.CartsAbandoned)
	require.Len(t, abandoned, 1)
	var payload Report
	require.NoError(t, events.Decode(abandoned[0], &payload))
	assert.Equal(t, 4, payload.UnitsReleased)
}

func TestCleanup_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "u1", "widget", 3)
	f.clock.Advance(3 * time.Hour)

	rep, err := f.sweeper.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CartsAbandoned)

	rep, err = f.sweeper.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.CartsAbandoned)
	assert.Equal(t, 0, rep.UnitsReleased)
	assert.Empty(t, rep.CartIDs)

	_, reserved := testutil.Inventory(t, f.store, "widget")
	assert.Equal(t, 0, reserved)
	assert.Len(t, f.recorder.OfType(events.CartsAbandoned), 1, "empty sweeps publish nothing")
}

func TestCleanup_ActivityResetsIdleTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "u1", "widget", 1)
	f.clock.Advance(50 * time.Minute)
	f.add(t, "u1", "widget", 1)
	f.clock.Advance(50 * time.Minute)

	rep, err := f.sweeper.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.CartsAbandoned)
}

func TestCleanup_UserGetsNewCartAfterAbandonment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "u1", "widget", 1)
	f.clock.Advance(25 * time.Hour)
	_, err := f.sweeper.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)

	ch, err := f.carts.AddItem(ctx, "u1", "widget", 1)
	require.NoError(t, err)
	assert.Equal(t, "cart-2", ch.Cart.ID)
	assert.Equal(t, 1, ch.Cart.ItemCount())
}

func TestCleanup_InvalidWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.sweeper.Cleanup(context.Background(), 0)
	assert.Equal(t, model.CodeInvalidInput, model.CodeOf(err))
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.add(t, "u1", "widget", 2)
	testutil.Backdate(t, f.store, "cart-1", testutil.Epoch.Add(-48*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu      sync.Mutex
		reports []Report
	)
	done := make(chan error, 1)
	go func() {
		done <- f.sweeper.Run(ctx, 5*time.Millisecond, time.Hour, func(rep Report) {
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, reports[0].CartsAbandoned)
	assert.Equal(t, 0, reports[1].CartsAbandoned)
}

func TestRun_InvalidArguments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Error(t, f.sweeper.Run(ctx, 0, time.Hour, nil))
	assert.Error(t, f.sweeper.Run(ctx, time.Minute, 0, nil))
}
