package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Limit int
	Maker string
}

// makerLister is implemented by stores indexed by maker (SQLite).
type makerLister interface {
	ListByMaker(ctx context.Context, maker string) ([]order.Record, error)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List order records",
		Long: `List records in ascending identity order.

--maker filters by maker address and needs the sqlite driver.

Examples:
  limitidx list --limit 20
  limitidx list --maker 0x1111111111111111111111111111111111111111 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum records (0 = all)")
	cmd.Flags().StringVar(&opts.Maker, "maker", "", "only records with this maker address")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	if opts.Limit < 0 {
		return out.fail(ExitCommandError, CodeInput, "--limit must not be negative", nil)
	}

	if err := opts.prepare(cmd); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	st, err := opts.openStore(ctx)
	if err != nil {
		return out.fail(ExitCommandError, CodeStore, "failed to open store", err)
	}
	defer st.Close()

	var records []order.Record
	if opts.Maker != "" {
		ml, ok := st.(makerLister)
		if !ok {
			return out.fail(ExitCommandError, CodeStore,
				fmt.Sprintf("store driver %s cannot filter by maker", opts.cfg.Store.Driver), nil)
		}
		records, err = ml.ListByMaker(ctx, opts.Maker)
		if err == nil && opts.Limit > 0 && len(records) > opts.Limit {
			records = records[:opts.Limit]
		}
	} else {
		lister, ok := st.(store.Lister)
		if !ok {
			return out.fail(ExitCommandError, CodeStore,
				fmt.Sprintf("store driver %s cannot list records", opts.cfg.Store.Driver), nil)
		}
		records, err = lister.List(ctx, opts.Limit)
	}
	if err != nil {
		return out.fail(ExitFailure, CodeStore, "failed to list orders", err)
	}
	if records == nil {
		records = []order.Record{}
	}

	return out.Success(records, func(w io.Writer) {
		if len(records) == 0 {
			fmt.Fprintln(w, "No orders.")
			return
		}
		for _, rec := range records {
			remaining := "-"
			if rec.RemainingAmount != nil {
				remaining = rec.RemainingAmount.String()
			}
			fmt.Fprintf(w, "%s  updates=%d  remaining=%s\n", rec.ID, rec.UpdatesCount, remaining)
		}
		fmt.Fprintf(w, "%d order(s)\n", len(records))
	})
}
