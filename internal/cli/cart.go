package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/result"
)

// CartOptions holds flags shared by the cart subcommands.
type CartOptions struct {
	*RootOptions
	User string
}

// LineOptions holds one line subcommand's flags. Each subcommand owns its
// own copy so flag defaults do not overwrite each other.
type LineOptions struct {
	Product  string
	Quantity int
}

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CartOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage a user's active cart",
		Long: `Add, change and remove cart lines. Adding reserves stock immediately;
removing or clearing releases it.

Examples:
  shopctl cart add --user u1 --product widget --qty 3
  shopctl cart update --user u1 --product widget --qty 1
  shopctl cart remove --user u1 --product widget
  shopctl cart show --user u1`,
	}
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	addLine := &LineOptions{}
	add := &cobra.Command{
		Use:           "add",
		Short:         "Reserve stock and add it to the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.AddItem(ctx, opts.User, addLine.Product, addLine.Quantity)
			})
		},
	}
	lineFlags(add, addLine, 1)

	updateLine := &LineOptions{}
	update := &cobra.Command{
		Use:           "update",
		Short:         "Set a line's quantity (0 removes it)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.UpdateItem(ctx, opts.User, updateLine.Product, updateLine.Quantity)
			})
		},
	}
	lineFlags(update, updateLine, 0)
	_ = update.MarkFlagRequired("qty")

	removeLine := &LineOptions{}
	remove := &cobra.Command{
		Use:           "remove",
		Short:         "Remove a line, or --qty units of it",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var qty *int
			if cmd.Flags().Changed("qty") {
				qty = &removeLine.Quantity
			}
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.RemoveItem(ctx, opts.User, removeLine.Product, qty)
			})
		},
	}
	lineFlags(remove, removeLine, 0)

	clearCmd := &cobra.Command{
		Use:           "clear",
		Short:         "Release every line and mark the cart cleared",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.ClearCart(ctx, opts.User)
			})
		},
	}

	show := &cobra.Command{
		Use:           "show",
		Short:         "Show the active cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.GetCart(ctx, opts.User)
			})
		},
	}

	cmd.AddCommand(add, update, remove, clearCmd, show)
	return cmd
}

func lineFlags(cmd *cobra.Command, line *LineOptions, defaultQty int) {
	cmd.Flags().StringVar(&line.Product, "product", "", "product id (required)")
	cmd.Flags().IntVar(&line.Quantity, "qty", defaultQty, "quantity")
	_ = cmd.MarkFlagRequired("product")
}
