// Package sweeper reclaims reservations held by carts that have been idle
// longer than a threshold.
package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/retroryan/shopledger/internal/clock"
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/ledger"
	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/store"
)

var tracer = otel.Tracer("github.com/retroryan/shopledger/internal/sweeper")

// Options carries the optional collaborators of a Sweeper.
type Options struct {
	Clock     clock.Clock
	Logger    *slog.Logger
	Publisher events.Publisher
}

// Sweeper marks stale active carts abandoned.
type Sweeper struct {
	store     *store.Store
	ledger    *ledger.Ledger
	clock     clock.Clock
	logger    *slog.Logger
	publisher events.Publisher
}

// New creates a sweeper. Zero-valued options get production defaults.
func New(st *store.Store, led *ledger.Ledger, opts Options) *Sweeper {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &Sweeper{
		store:     st,
		ledger:    led,
		clock:     opts.Clock,
		logger:    opts.Logger,
		publisher: opts.Publisher,
	}
}

// Report summarises one sweep.
type Report struct {
	Cutoff         time.Time `json:"cutoff"`
	CartsAbandoned int       `json:"carts_abandoned"`
	ItemsReleased  int       `json:"items_released"`
	UnitsReleased  int       `json:"units_released"`
	CartIDs        []string  `json:"cart_ids"`
}

// Cleanup abandons every active cart whose updated_at is older than
// now - olderThan, releasing each of its lines. The lines themselves are
// kept on the abandoned cart as a record of what was held. Re-running with an
// overlapping window only touches carts that are still active.
func (s *Sweeper) Cleanup(ctx context.Context, olderThan time.Duration) (Report, error) {
	ctx, span := tracer.Start(ctx, "sweeper.cleanup")
	defer span.End()

	if olderThan <= 0 {
		return Report{}, model.InvalidInput("hours", "must be positive, got %s", olderThan)
	}

	now := s.clock.Now()
	rep := Report{Cutoff: now.Add(-olderThan), CartIDs: []string{}}
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		cartIDs, err := store.StaleActiveCarts(ctx, tx, rep.Cutoff)
		if err != nil {
			return err
		}
		for _, id := range cartIDs {
			c, err := store.GetCart(ctx, tx, id)
			if err != nil {
				return err
			}
			if !c.Status.CanTransition(model.CartAbandoned) {
				continue
			}
			for _, item := range c.Items {
				if err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
				rep.ItemsReleased++
				rep.UnitsReleased += item.Quantity
			}
			if err := store.SetCartStatus(ctx, tx, c.ID, c.Status, model.CartAbandoned, now); err != nil {
				return err
			}
			rep.CartIDs = append(rep.CartIDs, c.ID)
		}
		rep.CartsAbandoned = len(rep.CartIDs)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cleanup failed")
		return Report{}, err
	}

	span.SetAttributes(
		attribute.Int("sweeper.carts_abandoned", rep.CartsAbandoned),
		attribute.Int("sweeper.units_released", rep.UnitsReleased),
	)
	if rep.CartsAbandoned > 0 {
		s.logger.Info("abandoned stale carts", "carts", rep.CartsAbandoned, "units_released", rep.UnitsReleased,
			"older_than", olderThan.String())
		if err := s.publisher.Publish(ctx, events.New(events.CartsAbandoned, "sweeper", now, rep)); err != nil {
			s.logger.Warn("event publish failed", "type", events.CartsAbandoned, "error", err)
		}
	} else {
		s.logger.Debug("no stale carts", "older_than", olderThan.String())
	}
	return rep, nil
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is logged
// and retried on the next tick. onSweep, if non-nil, observes each report.
func (s *Sweeper) Run(ctx context.Context, interval, olderThan time.Duration, onSweep func(Report)) error {
	if interval <= 0 {
		return model.InvalidInput("interval", "must be positive, got %s", interval)
	}
	if olderThan <= 0 {
		return model.InvalidInput("hours", "must be positive, got %s", olderThan)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", interval.String(), "older_than", olderThan.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			rep, err := s.Cleanup(ctx, olderThan)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Error("sweep failed", "error", err)
				continue
			}
			if onSweep != nil {
				onSweep(rep)
			}
		}
	}
}
