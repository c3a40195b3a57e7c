package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/limitidx/internal/order"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one order record",
		Long: `Load the record stored under an identity.

Exit code 1 when no record exists.

Example:
  limitidx get 0xca3a35506b4f1e0bc0cf1a6dcf14ad60c6ef94b8c5ddfeb3e328c6ab60cebbe0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command, arg string) error {
	out := newFormatter(opts, cmd.OutOrStdout())

	if !strings.HasPrefix(arg, "0x") && !strings.HasPrefix(arg, "0X") {
		arg = "0x" + arg
	}
	id, err := order.NormalizeID("0x" + arg[2:])
	if err != nil {
		return out.fail(ExitCommandError, CodeInput, "invalid order id", err)
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

	rec, found, err := st.Load(ctx, id)
	if err != nil {
		return out.fail(ExitFailure, CodeStore, "failed to load order", err)
	}
	if !found {
		return out.fail(ExitFailure, CodeNotFound, fmt.Sprintf("order %s not found", id), nil)
	}

	return out.Success(rec, func(w io.Writer) {
		printRecord(w, rec)
	})
}

func printRecord(w io.Writer, rec order.Record) {
	remaining := "-"
	if rec.RemainingAmount != nil {
		remaining = rec.RemainingAmount.String()
	}
	fmt.Fprintf(w, "id:          %s\n", rec.ID)
	fmt.Fprintf(w, "maker:       %s\n", rec.MakerAddress)
	fmt.Fprintf(w, "taker:       %s\n", rec.TakerAddress)
	fmt.Fprintf(w, "maker asset: %s\n", rec.MakerAsset)
	fmt.Fprintf(w, "taker asset: %s\n", rec.TakerAsset)
	fmt.Fprintf(w, "amounts:     %s / %s\n", rec.MakerAmount, rec.TakerAmount)
	fmt.Fprintf(w, "expiration:  %s\n", rec.Expiration)
	fmt.Fprintf(w, "remaining:   %s\n", remaining)
	fmt.Fprintf(w, "updates:     %d\n", rec.UpdatesCount)
}
