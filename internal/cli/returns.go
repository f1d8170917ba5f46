package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/result"
)

// ReturnOptions holds flags for the return subcommands.
type ReturnOptions struct {
	*RootOptions
	User    string
	Order   string
	Item    string
	Reason  string
	Approve bool
	Reject  bool
}

// NewReturnCommand creates the return command group.
func NewReturnCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReturnOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "return",
		Short: "Request and resolve returns",
		Long: `Returns cover one line of a shipped or delivered order and refund the
price paid at checkout. Approval restores the quantity to stock; a return is
resolved exactly once.

Examples:
  shopctl return create --user u1 --order ord_0190... --item widget --reason defective
  shopctl return process ret_0190... --approve
  shopctl return list --user u1`,
	}

	create := &cobra.Command{
		Use:           "create",
		Short:         "Open a return for one order line",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.CreateReturn(ctx, opts.User, opts.Order, opts.Item, opts.Reason)
			})
		},
	}
	create.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	create.Flags().StringVar(&opts.Order, "order", "", "order id (required)")
	create.Flags().StringVar(&opts.Item, "item", "", "product id of the order line (required)")
	create.Flags().StringVar(&opts.Reason, "reason", "", "reason for the return (required)")
	for _, name := range []string{"user", "order", "item", "reason"} {
		_ = create.MarkFlagRequired(name)
	}

	process := &cobra.Command{
		Use:           "process <return-id>",
		Short:         "Approve or reject a pending return",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.ProcessReturn(ctx, args[0], opts.Approve)
			})
		},
	}
	process.Flags().BoolVar(&opts.Approve, "approve", false, "approve the return")
	process.Flags().BoolVar(&opts.Reject, "reject", false, "reject the return")
	process.MarkFlagsOneRequired("approve", "reject")
	process.MarkFlagsMutuallyExclusive("approve", "reject")

	get := &cobra.Command{
		Use:           "get <return-id>",
		Short:         "Show one return request",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.GetReturn(ctx, opts.User, args[0])
			})
		},
	}
	get.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = get.MarkFlagRequired("user")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List a user's return requests",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.ListReturns(ctx, opts.User)
			})
		},
	}
	list.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = list.MarkFlagRequired("user")

	cmd.AddCommand(create, process, get, list)
	return cmd
}
