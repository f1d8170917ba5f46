package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/catalog"
	"github.com/retroryan/shopledger/internal/result"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Catalog string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and seed products from a catalog",
		Long: `Load a catalog file (.yaml, .yml, .json or .cue), validate it and copy
each product's name, price and initial stock into the database.

Re-running init updates names and prices but never resets the stock or
reservations of products that already have inventory.

Example:
  shopctl init --db ./shop.db --catalog ./catalog.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.Load(opts.Catalog)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load catalog", err)
			}
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) result.Result {
				s.out.VerboseLog("seeding %d products from %s", len(f.Products), opts.Catalog)
				return s.engine.InitializeCatalog(ctx, f.CatalogEntries())
			})
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to catalog file (required)")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect and restock inventory",
		Long: `Examples:
  shopctl inventory status widget
  shopctl inventory list
  shopctl inventory restock widget 25`,
	}

	status := &cobra.Command{
		Use:           "status <product-id>",
		Short:         "Show stock, reserved and available for a product",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.InventoryStatus(ctx, args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List every product with its stock figures",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.InventoryReport(ctx)
			})
		},
	}

	restock := &cobra.Command{
		Use:           "restock <product-id> <quantity>",
		Short:         "Add received units to a product's stock",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q: must be an integer", args[1]))
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) result.Result {
				return s.engine.Restock(ctx, args[0], qty)
			})
		},
	}

	cmd.AddCommand(status, list, restock)
	return cmd
}
