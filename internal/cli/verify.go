package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mangobank/ledger/internal/reconcile"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Reconcile balances against the transfer log",
		Long: `Check that every balance equals its opening balance plus the committed
transfers in its history, that no balance is negative, and that every
record's digest still matches its contents.

Run against a quiescent ledger. Exits 1 when anything disagrees.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	ctx := cmd.Context()
	st, err := opts.openStore(ctx)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	report, err := reconcile.Check(ctx, st)
	if err != nil {
		return out.Fail(err)
	}
	opts.Logger.Debug("reconciliation finished", "accounts", report.Accounts, "records", report.Records, "elapsed", report.Elapsed)

	view := reportView{Report: report, Reconciled: report.OK()}
	if err := out.Success(view); err != nil {
		return err
	}
	if !view.Reconciled {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("ledger does not reconcile: %d mismatches, %d bad digests, %d negative balances", len(report.Mismatches), len(report.BadDigests), len(report.NegativeBalances)),
			Reported: true,
		}
	}
	return nil
}
