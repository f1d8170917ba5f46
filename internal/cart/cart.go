// Package cart manages each user's active cart and its reservation
// side-effects on the ledger.
//
// Every mutating operation runs in one store transaction spanning both the
// ledger call(s) and the line-item write, so a failure at any step leaves
// neither a partial reservation nor a partial line update.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/retroryan/shopledger/internal/clock"
	"github.com/retroryan/shopledger/internal/ids"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

var tracer = otel.Tracer("github.com/retroryan/shopledger/internal/cart")

// Options carries the optional collaborators of a Service.
type Options struct {
	Clock  clock.Clock
	IDs    ids.Generator
	Logger *slog.Logger
}

// Service is the cart store.
type Service struct {
	store  *store.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	ids    ids.Generator
	logger *slog.Logger
}

// New creates a cart service. Zero-valued options get production defaults.
func New(st *store.Store, led *ledger.Ledger, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.IDs == nil {
		opts.IDs = ids.Prefixed{Prefix: "cart", Next: ids.UUIDv7Generator{}}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:  st,
		ledger: led,
		clock:  opts.Clock,
		ids:    opts.IDs,
		logger: opts.Logger,
	}
}

// Change describes the outcome of a successful mutation.
type Change struct {
	Cart        model.Cart `json:"cart"`
	ProductID   string     `json:"product_id,omitempty"`
	Quantity    int        `json:"quantity"`
	Released    int        `json:"released,omitempty"`
	LineRemoved bool       `json:"line_removed,omitempty"`
}

// GetOrCreateActive returns the user's active cart, creating it if needed.
// It must run inside the caller's transaction.
func (s *Service) GetOrCreateActive(ctx context.Context, q store.Querier, userID string) (model.Cart, error) {
	c, err := store.ActiveCart(ctx, q, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Cart{}, err
	}

	now := s.clock.Now()
	c = model.Cart{
		ID:        s.ids.Generate(),
		UserID:    userID,
		Status:    model.CartActive,
		Items:     []model.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.InsertCart(ctx, q, c); err != nil {
		return model.Cart{}, err
	}
	s.logger.Debug("created cart", "user_id", userID, "cart_id", c.ID)
	return c, nil
}

// Get returns the user's active cart without creating one. A user with no
// active cart gets an empty, unsaved view.
func (s *Service) Get(ctx context.Context, userID string) (model.Cart, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return model.Cart{}, err
	}
	c, err := store.ActiveCart(ctx, s.store.DB(), userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Cart{UserID: userID, Status: model.CartActive, Items: []model.CartItem{}}, nil
	}
	return c, err
}

// AddItem adds qty units of a product. If the product already has a line the
// old reservation is swapped for the combined quantity in one step; if that
// fails the old reservation and line stay as they were.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (Change, error) {
	ctx, span := tracer.Start(ctx, "cart.add_item", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", qty),
	))
	defer span.End()

	if err := validateLine(userID, productID); err != nil {
		return Change{}, err
	}
	if err := model.RequirePositive("quantity", qty); err != nil {
		return Change{}, err
	}

	var out Change
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		product, err := lookupProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		c, err := s.GetOrCreateActive(ctx, tx, userID)
		if err != nil {
			return err
		}

		newQty := qty
		var ok bool
		if existing, found := c.Item(productID); found {
			newQty = existing.Quantity + qty
			ok, err = s.ledger.Rereserve(ctx, tx, productID, existing.Quantity, newQty)
		} else {
			ok, err = s.ledger.Reserve(ctx, tx, productID, qty)
		}
		if err != nil {
			return err
		}
		if !ok {
			return s.insufficient(ctx, tx, productID, qty)
		}

		now := s.clock.Now()
		line := model.CartItem{ProductID: productID, Quantity: newQty, PriceAtAdd: product.Price}
		if err := store.UpsertCartItem(ctx, tx, c.ID, line, now); err != nil {
			return err
		}
		if err := store.TouchCart(ctx, tx, c.ID, now); err != nil {
			return err
		}

		c, err = store.ActiveCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = Change{Cart: c, ProductID: productID, Quantity: newQty}
		return nil
	})
	if err != nil {
		recordErr(span, err)
		return Change{}, err
	}

	s.logger.Info("added to cart", "user_id", userID, "product_id", productID, "qty", qty, "line_qty", out.Quantity)
	return out, nil
}

// UpdateItem sets a line to newQty. Zero delegates to RemoveItem; otherwise
// the old reservation is swapped for newQty, and on failure the line keeps
// its quantity.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, newQty int) (Change, error) {
	if newQty == 0 {
		return s.RemoveItem(ctx, userID, productID, nil)
	}

	ctx, span := tracer.Start(ctx, "cart.update_item", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", newQty),
	))
	defer span.End()

	if err := validateLine(userID, productID); err != nil {
		return Change{}, err
	}
	if err := model.RequirePositive("quantity", newQty); err != nil {
		return Change{}, err
	}

	var out Change
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		product, err := lookupProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		c, existing, err := s.activeLine(ctx, tx, userID, productID)
		if err != nil {
			return err
		}

		ok, err := s.ledger.Rereserve(ctx, tx, productID, existing.Quantity, newQty)
		if err != nil {
			return err
		}
		if !ok {
			return s.insufficient(ctx, tx, productID, newQty).
				With("current_quantity", existing.Quantity)
		}

		now := s.clock.Now()
		line := model.CartItem{ProductID: productID, Quantity: newQty, PriceAtAdd: product.Price}
		if err := store.UpsertCartItem(ctx, tx, c.ID, line, now); err != nil {
			return err
		}
		if err := store.TouchCart(ctx, tx, c.ID, now); err != nil {
			return err
		}

		c, err = store.ActiveCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = Change{Cart: c, ProductID: productID, Quantity: newQty}
		return nil
	})
	if err != nil {
		recordErr(span, err)
		return Change{}, err
	}

	s.logger.Info("updated cart line", "user_id", userID, "product_id", productID, "qty", newQty)
	return out, nil
}

// RemoveItem removes a line (qty == nil) or reduces it by *qty, releasing
// exactly the removed units. A reduction that reaches zero removes the line.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string, qty *int) (Change, error) {
	ctx, span := tracer.Start(ctx, "cart.remove_item", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	))
	defer span.End()

	if err := validateLine(userID, productID); err != nil {
		return Change{}, err
	}
	if qty != nil {
		if err := model.RequirePositive("quantity", *qty); err != nil {
			return Change{}, err
		}
	}

	var out Change
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, existing, err := s.activeLine(ctx, tx, userID, productID)
		if err != nil {
			return err
		}

		release := existing.Quantity
		if qty != nil && *qty < existing.Quantity {
			release = *qty
		}
		remaining := existing.Quantity - release

		if err := s.ledger.Release(ctx, tx, productID, release); err != nil {
			return err
		}

		now := s.clock.Now()
		if remaining == 0 {
			if err := store.DeleteCartItem(ctx, tx, c.ID, productID); err != nil {
				return err
			}
		} else {
			existing.Quantity = remaining
			if err := store.UpsertCartItem(ctx, tx, c.ID, existing, now); err != nil {
				return err
			}
		}
		if err := store.TouchCart(ctx, tx, c.ID, now); err != nil {
			return err
		}

		c, err = store.ActiveCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = Change{
			Cart:        c,
			ProductID:   productID,
			Quantity:    remaining,
			Released:    release,
			LineRemoved: remaining == 0,
		}
		return nil
	})
	if err != nil {
		recordErr(span, err)
		return Change{}, err
	}

	s.logger.Info("removed from cart", "user_id", userID, "product_id", productID,
		"released", out.Released, "line_removed", out.LineRemoved)
	return out, nil
}

// Cleared reports what Clear did.
type Cleared struct {
	CartID       string `json:"cart_id,omitempty"`
	ItemsRemoved int    `json:"items_removed"`
	Released     int    `json:"units_released"`
}

// Clear releases every line's reservation individually, removes the lines
// and marks the cart cleared. A user without an active cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID string) (Cleared, error) {
	ctx, span := tracer.Start(ctx, "cart.clear", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := model.RequireID("user_id", userID); err != nil {
		return Cleared{}, err
	}

	var out Cleared
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := store.ActiveCart(ctx, tx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, item := range c.Items {
			if err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			out.Released += item.Quantity
		}
		n, err := store.DeleteCartItems(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if !c.Status.CanTransition(model.CartCleared) {
			return fmt.Errorf("clear cart %s: status %s", c.ID, c.Status)
		}
		if err := store.SetCartStatus(ctx, tx, c.ID, c.Status, model.CartCleared, s.clock.Now()); err != nil {
			return err
		}
		out.CartID = c.ID
		out.ItemsRemoved = n
		return nil
	})
	if err != nil {
		recordErr(span, err)
		return Cleared{}, err
	}

	s.logger.Info("cleared cart", "user_id", userID, "cart_id", out.CartID, "items", out.ItemsRemoved)
	return out, nil
}

// activeLine loads the user's active cart and the line for productID.
func (s *Service) activeLine(ctx context.Context, q store.Querier, userID, productID string) (model.Cart, model.CartItem, error) {
	c, err := store.ActiveCart(ctx, q, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Cart{}, model.CartItem{}, notInCart(productID)
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, err
	}
	item, ok := c.Item(productID)
	if !ok {
		return model.Cart{}, model.CartItem{}, notInCart(productID)
	}
	return c, item, nil
}

// insufficient builds the rejection for a failed reservation, naming the
// stock currently available.
func (s *Service) insufficient(ctx context.Context, q store.Querier, productID string, requested int) *model.Error {
	e := model.Rejectf(model.CodeInsufficientStock, "insufficient stock for %s", productID).
		With("product_id", productID).
		With("requested_quantity", requested)
	if st, err := s.ledger.Status(ctx, q, productID); err == nil {
		e.With("available_stock", st.Available)
		e.Message = fmt.Sprintf("insufficient stock for %s: requested %d, available %d", productID, requested, st.Available)
	}
	return e
}

func lookupProduct(ctx context.Context, q store.Querier, productID string) (model.Product, error) {
	p, err := store.GetProduct(ctx, q, productID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Product{}, model.Rejectf(model.CodeProductNotFound, "product %s not found", productID).
			With("product_id", productID)
	}
	return p, err
}

func validateLine(userID, productID string) error {
	if err := model.RequireID("user_id", userID); err != nil {
		return err
	}
	return model.RequireID("product_id", productID)
}

func notInCart(productID string) error {
	return model.Rejectf(model.CodeItemNotInCart, "product %s is not in the cart", productID).
		With("product_id", productID)
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(model.CodeOf(err)))
}
