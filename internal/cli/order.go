package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/result"
)

// OrderOptions holds flags for checkout and the order subcommands.
type OrderOptions struct {
	*RootOptions
	User    string
	Address string
	Status  string
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Convert the user's cart into an order",
		Long: `Commit every cart line's reservation and record a pending order with
the prices captured when the items were added. Either every line commits
or nothing changes.

Example:
  shopctl checkout --user u1 --address "1 Main St"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.Checkout(ctx, opts.User, opts.Address)
			})
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Address, "address", "", "shipping address (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

// NewOrderCommand creates the order command group.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect orders and move them through fulfilment",
		Long: `Orders move pending -> processing -> shipped -> delivered, and may be
cancelled until delivered. Cancelling restores the ordered quantities to stock.

Examples:
  shopctl order list --user u1 --status shipped
  shopctl order get --user u1 ord_0190...
  shopctl order status ord_0190... shipped
  shopctl order cancel --user u1 ord_0190...`,
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List a user's orders, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.ListOrders(ctx, opts.User, opts.Status)
			})
		},
	}
	list.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	list.Flags().StringVar(&opts.Status, "status", "", "only orders in this status")
	_ = list.MarkFlagRequired("user")

	get := &cobra.Command{
		Use:           "get <order-id>",
		Short:         "Show one order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.GetOrder(ctx, opts.User, args[0])
			})
		},
	}
	get.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = get.MarkFlagRequired("user")

	status := &cobra.Command{
		Use:           "status <order-id> <status>",
		Short:         "Move an order to a new status (fulfilment side)",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.UpdateOrderStatus(ctx, args[0], args[1])
			})
		},
	}

	cancel := &cobra.Command{
		Use:           "cancel <order-id>",
		Short:         "Cancel one of the user's orders and restore its stock",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.CancelOrder(ctx, opts.User, args[0])
			})
		},
	}
	cancel.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cancel.MarkFlagRequired("user")

	cmd.AddCommand(list, get, status, cancel)
	return cmd
}
