// Package shop is the engine facade: one method per operation, each
// returning the uniform result.Result shape. Request handlers (the CLI, the
// scenario harness) talk to this package only.
package shop

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/retroryan/shopledger/internal/cart"
	"github.com/retroryan/shopledger/internal/clock"
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/ids"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/order"
	"github.com/retroryan/shopledger/internal/report"
	"github.com/retroryan/shopledger/internal/result"
	"github.com/retroryan/shopledger/internal/returns"
	"github.com/retroryan/shopledger/internal/store"
	"github.com/retroryan/shopledger/internal/sweeper"
)

// Options configures an Engine. Nil fields get production defaults.
type Options struct {
	Clock     clock.Clock
	Logger    *slog.Logger
	Publisher events.Publisher

	CartIDs   ids.Generator
	OrderIDs  ids.Generator
	ReturnIDs ids.Generator
}

// Engine wires the ledger, cart, order, returns, sweeper and report
// components over one store.
type Engine struct {
	store   *store.Store
	clock   clock.Clock
	logger  *slog.Logger
	Ledger  *ledger.Ledger
	Carts   *cart.Service
	Orders  *order.Service
	Returns *returns.Processor
	Sweeper *sweeper.Sweeper
	Reports *report.Reporter
}

// New creates an engine over st.
func New(st *store.Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}

	led := ledger.New(opts.Logger.With("component", "ledger"))
	return &Engine{
		store:  st,
		clock:  opts.Clock,
		logger: opts.Logger,
		Ledger: led,
		Carts: cart.New(st, led, cart.Options{
			Clock:  opts.Clock,
			IDs:    opts.CartIDs,
			Logger: opts.Logger.With("component", "cart"),
		}),
		Orders: order.New(st, led, order.Options{
			Clock:     opts.Clock,
			IDs:       opts.OrderIDs,
			Logger:    opts.Logger.With("component", "order"),
			Publisher: opts.Publisher,
		}),
		Returns: returns.New(st, led, returns.Options{
			Clock:     opts.Clock,
			IDs:       opts.ReturnIDs,
			Logger:    opts.Logger.With("component", "returns"),
			Publisher: opts.Publisher,
		}),
		Sweeper: sweeper.New(st, led, sweeper.Options{
			Clock:     opts.Clock,
			Logger:    opts.Logger.With("component", "sweeper"),
			Publisher: opts.Publisher,
		}),
		Reports: report.New(st),
	}
}

// Store exposes the underlying store (read-only use).
func (e *Engine) Store() *store.Store {
	return e.store
}

// CatalogEntry is what the external catalog provider supplies per product.
type CatalogEntry struct {
	ID    string
	Name  string
	Price model.Money
	Stock int
}

// Seeded reports the outcome of InitializeCatalog.
type Seeded struct {
	Products int      `json:"products"`
	Created  []string `json:"inventory_created"`
	Kept     []string `json:"inventory_kept"`
}

// InitializeCatalog copies catalog scalars into the store in one transaction.
// Products that already have inventory keep their stock and reservations.
func (e *Engine) InitializeCatalog(ctx context.Context, entries []CatalogEntry) result.Result {
	out := Seeded{Created: []string{}, Kept: []string{}}
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		now := e.clock.Now()
		for _, entry := range entries {
			p := model.Product{ID: entry.ID, Name: entry.Name, Price: entry.Price}
			created, err := e.Ledger.Initialize(ctx, tx, p, entry.Stock, now)
			if err != nil {
				return err
			}
			if created {
				out.Created = append(out.Created, entry.ID)
			} else {
				out.Kept = append(out.Kept, entry.ID)
			}
		}
		out.Products = len(entries)
		return nil
	})
	if err == nil {
		e.logger.Info("catalog initialized", "products", out.Products, "created", len(out.Created))
	}
	return result.From(out, err)
}

// InventoryStatus returns {stock, reserved, available} for a product.
func (e *Engine) InventoryStatus(ctx context.Context, productID string) result.Result {
	return result.From(e.Ledger.Status(ctx, e.store.DB(), productID))
}

// Restock adds received units to a product.
func (e *Engine) Restock(ctx context.Context, productID string, qty int) result.Result {
	var st model.InventoryStatus
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Ledger.Restock(ctx, tx, productID, qty, e.clock.Now()); err != nil {
			return err
		}
		var err error
		st, err = e.Ledger.Status(ctx, tx, productID)
		return err
	})
	return result.From(st, err)
}

// GetCart returns the user's active cart (an empty view if none exists).
func (e *Engine) GetCart(ctx context.Context, userID string) result.Result {
	c, err := e.Carts.Get(ctx, userID)
	return result.From(cartView(c), err)
}

// AddItem adds qty units of productID to the user's cart.
func (e *Engine) AddItem(ctx context.Context, userID, productID string, qty int) result.Result {
	ch, err := e.Carts.AddItem(ctx, userID, productID, qty)
	return result.From(changeView(ch), err)
}

// UpdateItem sets a line's quantity; zero removes the line.
func (e *Engine) UpdateItem(ctx context.Context, userID, productID string, qty int) result.Result {
	ch, err := e.Carts.UpdateItem(ctx, userID, productID, qty)
	return result.From(changeView(ch), err)
}

// RemoveItem removes a line, or qty units of it when qty is non-nil.
func (e *Engine) RemoveItem(ctx context.Context, userID, productID string, qty *int) result.Result {
	ch, err := e.Carts.RemoveItem(ctx, userID, productID, qty)
	return result.From(changeView(ch), err)
}

// ClearCart empties the user's cart and marks it cleared.
func (e *Engine) ClearCart(ctx context.Context, userID string) result.Result {
	return result.From(e.Carts.Clear(ctx, userID))
}

// Checkout converts the user's cart into an order.
func (e *Engine) Checkout(ctx context.Context, userID, shippingAddress string) result.Result {
	return result.From(e.Orders.Checkout(ctx, userID, shippingAddress))
}

// UpdateOrderStatus moves an order through its lifecycle.
func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID, status string) result.Result {
	return result.From(e.Orders.UpdateStatus(ctx, orderID, status))
}

// CancelOrder cancels one of the user's orders.
func (e *Engine) CancelOrder(ctx context.Context, userID, orderID string) result.Result {
	return result.From(e.Orders.Cancel(ctx, userID, orderID))
}

// GetOrder returns one of the user's orders.
func (e *Engine) GetOrder(ctx context.Context, userID, orderID string) result.Result {
	return result.From(e.Orders.Get(ctx, userID, orderID))
}

// ListOrders returns the user's orders, optionally filtered by status.
func (e *Engine) ListOrders(ctx context.Context, userID, status string) result.Result {
	return result.From(e.Orders.List(ctx, userID, status))
}

// CreateReturn opens a return for one line of a shipped/delivered order.
func (e *Engine) CreateReturn(ctx context.Context, userID, orderID, itemID, reason string) result.Result {
	return result.From(e.Returns.Create(ctx, userID, orderID, itemID, reason))
}

// ProcessReturn approves or rejects a pending return.
func (e *Engine) ProcessReturn(ctx context.Context, returnID string, approve bool) result.Result {
	return result.From(e.Returns.Process(ctx, returnID, approve))
}

// GetReturn returns one of the user's return requests.
func (e *Engine) GetReturn(ctx context.Context, userID, returnID string) result.Result {
	return result.From(e.Returns.Get(ctx, userID, returnID))
}

// ListReturns returns the user's return requests.
func (e *Engine) ListReturns(ctx context.Context, userID string) result.Result {
	return result.From(e.Returns.List(ctx, userID))
}

// Cleanup abandons carts idle for longer than hours.
func (e *Engine) Cleanup(ctx context.Context, hours float64) result.Result {
	return result.From(e.Sweeper.Cleanup(ctx, Hours(hours)))
}

// InventoryReport lists every product with its stock figures.
func (e *Engine) InventoryReport(ctx context.Context) result.Result {
	return result.From(e.Reports.Inventory(ctx))
}

// LowStockReport lists products with available <= threshold.
func (e *Engine) LowStockReport(ctx context.Context, threshold int) result.Result {
	return result.From(e.Reports.LowStock(ctx, threshold))
}

// OrderStats summarises a user's orders.
func (e *Engine) OrderStats(ctx context.Context, userID string) result.Result {
	return result.From(e.Reports.Orders(ctx, userID))
}

// ReservationReport compares ledger reservations with active cart contents.
func (e *Engine) ReservationReport(ctx context.Context) result.Result {
	return result.From(e.Reports.Reservations(ctx))
}

// Hours converts a fractional hour count to a duration.
func Hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
