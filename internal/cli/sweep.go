package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/sweeper"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	OlderThan time.Duration
	Every     time.Duration
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Abandon idle carts and release their reservations",
		Long: `Mark every active cart idle for longer than --older-than as abandoned and
release the stock it holds. With --every the sweep repeats on that interval
until interrupted.

Defaults come from the sweeper section of the config file, or from
SHOP_ABANDON_AFTER and SHOP_SWEEP_INTERVAL.

Examples:
  shopctl sweep --older-than 24h
  shopctl sweep --older-than 2h --every 10m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.OlderThan, "older-than", 0, "idle time after which a cart is abandoned (default from config)")
	cmd.Flags().DurationVar(&opts.Every, "every", 0, "repeat the sweep on this interval until interrupted")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	defer s.Close(context.WithoutCancel(ctx))

	olderThan := opts.OlderThan
	if olderThan == 0 {
		olderThan = s.cfg.Sweeper.AbandonAfter
	}

	if !cmd.Flags().Changed("every") {
		return s.out.Result(s.engine.Cleanup(ctx, olderThan.Hours()))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s.out.VerboseLog("sweeping every %s for carts idle longer than %s", opts.Every, olderThan)
	err = s.engine.Sweeper.Run(ctx, opts.Every, olderThan, func(rep sweeper.Report) {
		if rep.CartsAbandoned == 0 {
			return
		}
		if err := s.out.Success(rep); err != nil {
			s.logger.Error("failed to write sweep report", "error", err)
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "sweeper stopped", err)
	}
	return nil
}
