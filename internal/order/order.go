// Package order turns checked-out carts into immutable orders and drives the
// order lifecycle.
package order

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/retroryan/shopledger/internal/clock"
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/ids"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

var tracer = otel.Tracer("github.com/retroryan/shopledger/internal/order")

// Options carries the optional collaborators of a Service.
type Options struct {
	Clock     clock.Clock
	IDs       ids.Generator
	Logger    *slog.Logger
	Publisher events.Publisher
}

// Service is the order store.
type Service struct {
	store     *store.Store
	ledger    *ledger.Ledger
	clock     clock.Clock
	ids       ids.Generator
	logger    *slog.Logger
	publisher events.Publisher
}

// New creates an order service. Zero-valued options get production defaults.
func New(st *store.Store, led *ledger.Ledger, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.IDs == nil {
		opts.IDs = ids.Prefixed{Prefix: "ord", Next: ids.UUIDv7Generator{}}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &Service{
		store:     st,
		ledger:    led,
		clock:     opts.Clock,
		ids:       opts.IDs,
		logger:    opts.Logger,
		publisher: opts.Publisher,
	}
}

// Checkout converts the user's active cart into a pending order. For each
// line the reservation is committed and a frozen item snapshot recorded; a
// single failed commit aborts the whole checkout with nothing persisted.
//
// Quantity is re-checked here (through the commit), price is not: lines
// keep the price frozen when they were added.
func (s *Service) Checkout(ctx context.Context, userID, shippingAddress string) (model.Order, error) {
	ctx, span := tracer.Start(ctx, "order.checkout", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := model.RequireID("user_id", userID); err != nil {
		return model.Order{}, err
	}
	address := model.NormalizeText(shippingAddress)
	if address == "" {
		return model.Order{}, model.InvalidInput("shipping_address", "is required")
	}

	var o model.Order
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := store.ActiveCart(ctx, tx, userID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && len(c.Items) == 0) {
			return model.Rejectf(model.CodeCartEmpty, "cart is empty")
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		o = model.Order{
			ID:              s.ids.Generate(),
			UserID:          userID,
			Status:          model.OrderPending,
			ShippingAddress: address,
			Items:           make([]model.OrderItem, 0, len(c.Items)),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		for _, line := range c.Items {
			ok, err := s.ledger.Commit(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return model.Rejectf(model.CodeCommitFailed,
					"could not commit %d x %s; checkout aborted", line.Quantity, line.ProductID).
					With("product_id", line.ProductID).
					With("requested_quantity", line.Quantity)
			}

			product, err := store.GetProduct(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			item := model.OrderItem{
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.PriceAtAdd,
				Subtotal:    line.Subtotal(),
			}
			o.Items = append(o.Items, item)
			o.Total += item.Subtotal
		}

		if err := store.InsertOrder(ctx, tx, o); err != nil {
			return err
		}
		if _, err := store.DeleteCartItems(ctx, tx, c.ID); err != nil {
			return err
		}
		return store.SetCartStatus(ctx, tx, c.ID, c.Status, model.CartCheckedOut, now)
	})
	if err != nil {
		recordErr(span, err)
		return model.Order{}, err
	}

	span.SetAttributes(attribute.String("order.id", o.ID), attribute.Int64("order.total_cents", int64(o.Total)))
	s.logger.Info("checked out", "user_id", userID, "order_id", o.ID, "items", len(o.Items), "total", o.Total.String())
	s.publish(ctx, events.New(events.OrderPlaced, o.ID, s.clock.Now(), o))
	return o, nil
}

// StatusChange reports a successful transition.
type StatusChange struct {
	Order    model.Order       `json:"order"`
	From     model.OrderStatus `json:"previous_status"`
	To       model.OrderStatus `json:"status"`
	Restored int               `json:"units_restored,omitempty"`
}

// UpdateStatus moves an order to newStatus. Values outside the enumerated set
// and disallowed transitions are rejected. Moving to cancelled restores every
// item's quantity to the sellable pool, less any units an approved return
// already put back.
func (s *Service) UpdateStatus(ctx context.Context, orderID, newStatus string) (StatusChange, error) {
	return s.transition(ctx, "", orderID, newStatus)
}

// Cancel is UpdateStatus(cancelled) scoped to the order's owner.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (StatusChange, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return StatusChange{}, err
	}
	return s.transition(ctx, userID, orderID, string(model.OrderCancelled))
}

func (s *Service) transition(ctx context.Context, userID, orderID, newStatus string) (StatusChange, error) {
	ctx, span := tracer.Start(ctx, "order.update_status", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", newStatus),
	))
	defer span.End()

	if err := model.RequireID("order_id", orderID); err != nil {
		return StatusChange{}, err
	}
	to, err := model.ParseOrderStatus(newStatus)
	if err != nil {
		recordErr(span, err)
		return StatusChange{}, err
	}

	var out StatusChange
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		o, err := store.GetOrder(ctx, tx, userID, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(orderID)
		}
		if err != nil {
			return err
		}
		if err := model.ValidateOrderTransition(o.Status, to); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := store.SetOrderStatus(ctx, tx, o.ID, o.Status, to, now); err != nil {
			return err
		}

		out = StatusChange{From: o.Status, To: to}
		if to == model.OrderCancelled {
			returned, err := store.ApprovedReturnQuantities(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			for _, item := range o.Items {
				qty := item.Quantity - returned[item.ProductID]
				if qty <= 0 {
					continue
				}
				if err := s.ledger.Restore(ctx, tx, item.ProductID, qty); err != nil {
					return err
				}
				out.Restored += qty
			}
		}
		o.Status = to
		o.UpdatedAt = now
		out.Order = o
		return nil
	})
	if err != nil {
		recordErr(span, err)
		return StatusChange{}, err
	}

	s.logger.Info("order status changed", "order_id", orderID, "from", out.From, "to", out.To, "restored", out.Restored)
	s.publish(ctx, events.New(events.OrderStatusChanged, orderID, s.clock.Now(), out))
	return out, nil
}

// Get returns one of the user's orders. Another user's order id is
// indistinguishable from a missing one.
func (s *Service) Get(ctx context.Context, userID, orderID string) (model.Order, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return model.Order{}, err
	}
	if err := model.RequireID("order_id", orderID); err != nil {
		return model.Order{}, err
	}
	o, err := store.GetOrder(ctx, s.store.DB(), userID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Order{}, notFound(orderID)
	}
	return o, err
}

// List returns the user's orders, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID string, status string) ([]model.Order, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	var filter *model.OrderStatus
	if status != "" {
		st, err := model.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	return store.ListOrders(ctx, s.store.DB(), userID, filter)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("event publish failed", "type", ev.Type, "key", ev.Key, "error", err)
	}
}

func notFound(orderID string) error {
	return model.Rejectf(model.CodeOrderNotFound, "order %s not found", orderID).
		With("order_id", orderID)
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(model.CodeOf(err)))
}
