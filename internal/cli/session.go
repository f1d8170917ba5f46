package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/config"
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/ids"
	"github.com/retroryan/shopledger/internal/result"
	"github.com/retroryan/shopledger/internal/shop"
	"github.com/retroryan/shopledger/internal/store"
	"github.com/retroryan/shopledger/internal/telemetry"
)

// session is everything one command invocation needs: config, logger,
// store, engine and the sinks that must be flushed on exit.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	engine  *shop.Engine
	out     *OutputFormatter
	closers []func(context.Context) error
}

// newLogger configures slog based on the verbose flag. Logs go to stderr so
// JSON output on stdout stays parseable.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// openSession loads configuration (file, then environment, then flags),
// starts tracing and event publishing when configured, and opens the store.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	s := &session{
		cfg:    cfg,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}

	shutdown, err := telemetry.Setup(commandContext(cmd), cfg.Telemetry)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	s.closers = append(s.closers, shutdown)

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled() {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			s.Close(commandContext(cmd))
			return nil, WrapExitError(ExitCommandError, "failed to configure kafka", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return kp.Close() })
		publisher = kp
		logger.Debug("publishing events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		s.Close(commandContext(cmd))
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	s.store = st
	s.closers = append(s.closers, func(context.Context) error { return st.Close() })

	s.engine = shop.New(st, shop.Options{
		Logger:    logger,
		Publisher: publisher,
		CartIDs:   ids.Prefixed{Prefix: "cart", Next: ids.UUIDv7Generator{}},
		OrderIDs:  ids.Prefixed{Prefix: "ord", Next: ids.UUIDv7Generator{}},
		ReturnIDs: ids.Prefixed{Prefix: "ret", Next: ids.UUIDv7Generator{}},
	})
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close(ctx context.Context) {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("error during shutdown", "error", err)
	}
}

// withSession opens a session, runs fn and renders its result. A failed
// result exits with ExitFailure.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) result.Result) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer s.Close(ctx)

	return s.out.Result(fn(ctx, s))
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
