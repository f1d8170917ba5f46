package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/result"
)

// ReportOptions holds flags for the report subcommands.
type ReportOptions struct {
	*RootOptions
	User      string
	Threshold int
}

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only summaries",
		Long: `Examples:
  shopctl report orders --user u1
  shopctl report low-stock --threshold 3
  shopctl report reservations`,
	}

	orders := &cobra.Command{
		Use:           "orders",
		Short:         "Order counts by status and total spent for a user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.OrderStats(ctx, opts.User)
			})
		},
	}
	orders.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = orders.MarkFlagRequired("user")

	lowStock := &cobra.Command{
		Use:           "low-stock",
		Short:         "Products whose available quantity is at or below a threshold",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.LowStockReport(ctx, opts.Threshold)
			})
		},
	}
	lowStock.Flags().IntVar(&opts.Threshold, "threshold", 5, "available quantity threshold")

	reservations := &cobra.Command{
		Use:           "reservations",
		Short:         "Compare reserved quantities with active cart contents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.ReservationReport(ctx)
			})
		},
	}

	cmd.AddCommand(orders, lowStock, reservations)
	return cmd
}
