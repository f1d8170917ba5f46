// Package returns handles refund requests against shipped or delivered
// orders. An approved return puts the item's quantity back into stock.
package returns

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
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/ids"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

var tracer = otel.Tracer("github.com/retroryan/shopledger/internal/returns")

// Options carries the optional collaborators of a Processor.
type Options struct {
	Clock     clock.Clock
	IDs       ids.Generator
	Logger    *slog.Logger
	Publisher events.Publisher
}

// Processor creates and resolves return requests.
type Processor struct {
	store     *store.Store
	ledger    *ledger.Ledger
	clock     clock.Clock
	ids       ids.Generator
	logger    *slog.Logger
	publisher events.Publisher
}

// New creates a processor. Zero-valued options get production defaults.
func New(st *store.Store, led *ledger.Ledger, opts Options) *Processor {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.IDs == nil {
		opts.IDs = ids.Prefixed{Prefix: "ret", Next: ids.UUIDv7Generator{}}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &Processor{
		store:     st,
		ledger:    led,
		clock:     opts.Clock,
		ids:       opts.IDs,
		logger:    opts.Logger,
		publisher: opts.Publisher,
	}
}

// Create opens a pending return for one line of the user's order. The refund
// is the line's frozen subtotal.
func (p *Processor) Create(ctx context.Context, userID, orderID, itemID, reason string) (model.ReturnRequest, error) {
	ctx, span := tracer.Start(ctx, "returns.create", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("order.id", orderID),
		attribute.String("product.id", itemID),
	))
	defer span.End()

	if err := model.RequireID("user_id", userID); err != nil {
		return model.ReturnRequest{}, err
	}
	if err := model.RequireID("order_id", orderID); err != nil {
		return model.ReturnRequest{}, err
	}
	if err := model.RequireID("item_id", itemID); err != nil {
		return model.ReturnRequest{}, err
	}
	reason = model.NormalizeText(reason)
	if reason == "" {
		return model.ReturnRequest{}, model.InvalidInput("reason", "is required")
	}

	var r model.ReturnRequest
	err := p.store.WithTx(ctx, func(tx *sql.Tx) error {
		o, err := store.GetOrder(ctx, tx, userID, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return model.Rejectf(model.CodeOrderNotFound, "order %s not found", orderID).
				With("order_id", orderID)
		}
		if err != nil {
			return err
		}
		if !o.Status.Returnable() {
			return model.Rejectf(model.CodeNotReturnable,
				"order %s is %s; only shipped or delivered orders can be returned", orderID, o.Status).
				With("order_id", orderID).
				With("order_status", o.Status)
		}
		item, ok := o.Item(itemID)
		if !ok {
			return model.Rejectf(model.CodeItemNotInOrder, "item %s is not part of order %s", itemID, orderID).
				With("order_id", orderID).
				With("item_id", itemID)
		}
		open, err := store.OpenReturnExists(ctx, tx, orderID, itemID)
		if err != nil {
			return err
		}
		if open {
			return model.Rejectf(model.CodeAlreadyReturned, "item %s of order %s already has a return", itemID, orderID).
				With("order_id", orderID).
				With("item_id", itemID)
		}

		r = model.ReturnRequest{
			ID:           p.ids.Generate(),
			OrderID:      orderID,
			UserID:       userID,
			ItemID:       itemID,
			Quantity:     item.Quantity,
			Reason:       reason,
			Status:       model.ReturnPending,
			RefundAmount: item.Subtotal,
			CreatedAt:    p.clock.Now(),
		}
		return store.InsertReturn(ctx, tx, r)
	})
	if err != nil {
		recordErr(span, err)
		return model.ReturnRequest{}, err
	}

	p.logger.Info("return requested", "return_id", r.ID, "order_id", orderID, "item_id", itemID, "refund", r.RefundAmount.String())
	p.publish(ctx, events.New(events.ReturnRequested, r.ID, p.clock.Now(), r))
	return r, nil
}

// Decision is the outcome of Process.
type Decision struct {
	Return  model.ReturnRequest `json:"return"`
	Status  model.ReturnStatus  `json:"status"`
	Message string              `json:"message"`
}

// Process resolves a pending return exactly once. Approval restores the
// item's quantity to stock; rejection has no stock effect. Processing a
// resolved return is rejected and changes nothing, and so is approving a
// return whose order has since been cancelled.
func (p *Processor) Process(ctx context.Context, returnID string, approve bool) (Decision, error) {
	ctx, span := tracer.Start(ctx, "returns.process", trace.WithAttributes(
		attribute.String("return.id", returnID),
		attribute.Bool("return.approve", approve),
	))
	defer span.End()

	if err := model.RequireID("return_id", returnID); err != nil {
		return Decision{}, err
	}

	var d Decision
	err := p.store.WithTx(ctx, func(tx *sql.Tx) error {
		r, err := store.GetReturn(ctx, tx, "", returnID)
		if errors.Is(err, store.ErrNotFound) {
			return model.Rejectf(model.CodeReturnNotFound, "return %s not found", returnID).
				With("return_id", returnID)
		}
		if err != nil {
			return err
		}

		next, err := model.ResolveReturn(r.Status, approve)
		if err != nil {
			if e, ok := model.AsError(err); ok {
				e.With("return_id", returnID)
			}
			return err
		}

		if next == model.ReturnApproved {
			o, err := store.GetOrder(ctx, tx, "", r.OrderID)
			if err != nil {
				return err
			}
			// cancellation already restored these units
			if o.Status == model.OrderCancelled {
				return model.Rejectf(model.CodeNotReturnable,
					"order %s was cancelled; return %s can only be rejected", r.OrderID, returnID).
					With("return_id", returnID).
					With("order_id", r.OrderID).
					With("order_status", o.Status)
			}
		}

		now := p.clock.Now()
		if err := store.ResolveReturn(ctx, tx, r.ID, next, now); err != nil {
			return err
		}
		if next == model.ReturnApproved {
			if err := p.ledger.Restore(ctx, tx, r.ItemID, r.Quantity); err != nil {
				return err
			}
		}

		r.Status = next
		r.ProcessedAt = &now
		d = Decision{Return: r, Status: next, Message: message(r)}
		return nil
	})
	if err != nil {
		recordErr(span, err)
		return Decision{}, err
	}

	p.logger.Info("return processed", "return_id", returnID, "status", d.Status)
	p.publish(ctx, events.New(events.ReturnProcessed, returnID, p.clock.Now(), d))
	return d, nil
}

// Get returns one of the user's return requests.
func (p *Processor) Get(ctx context.Context, userID, returnID string) (model.ReturnRequest, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return model.ReturnRequest{}, err
	}
	r, err := store.GetReturn(ctx, p.store.DB(), userID, returnID)
	if errors.Is(err, store.ErrNotFound) {
		return model.ReturnRequest{}, model.Rejectf(model.CodeReturnNotFound, "return %s not found", returnID).
			With("return_id", returnID)
	}
	return r, err
}

// List returns the user's return requests, newest first.
func (p *Processor) List(ctx context.Context, userID string) ([]model.ReturnRequest, error) {
	if err := model.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	return store.ListReturns(ctx, p.store.DB(), userID)
}

func message(r model.ReturnRequest) string {
	if r.Status == model.ReturnApproved {
		return fmt.Sprintf("Return %s approved: refund of %s issued, %d x %s returned to stock",
			r.ID, r.RefundAmount, r.Quantity, r.ItemID)
	}
	return fmt.Sprintf("Return %s rejected: no refund issued", r.ID)
}

func (p *Processor) publish(ctx context.Context, ev events.Event) {
	if err := p.publisher.Publish(ctx, ev); err != nil {
		p.logger.Warn("event publish failed", "type", ev.Type, "key", ev.Key, "error", err)
	}
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(model.CodeOf(err)))
}
