package cli

import (
	"github.com/spf13/cobra"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

// OpenOptions holds flags for the open command.
type OpenOptions struct {
	*RootOptions
	Balance string
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "open <email>",
		Short: "Open an account",
		Long: `Open an account with an opening balance.

Example:
  ledger open alice@example.com
  ledger open bob@example.com --balance 50.00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Balance, "balance", account.DefaultOpeningBalance.String(), "opening balance")

	return cmd
}

func runOpen(opts *OpenOptions, email string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	opening, err := money.Parse(opts.Balance)
	if err != nil {
		return out.Fail(ledger.WrapError(ledger.CodeInvalidAmount, err.Error(), err))
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	repo := account.NewRepository(st, account.WithLogger(opts.Logger))
	acct, err := repo.Open(ctx, email, opening)
	if err != nil {
		return out.Fail(err)
	}

	return out.Success(newAccountView(acct))
}
