package cli

import (
	"github.com/spf13/cobra"

	"github.com/mangobank/ledger/internal/account"
)

// NewAccountCommand creates the account command.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account <email>",
		Short: "Show an account's balance and version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(rootOpts, args[0], cmd)
		},
	}
}

func runAccount(opts *RootOptions, email string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	ctx := cmd.Context()
	st, err := opts.openStore(ctx)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	acct, err := account.NewRepository(st, account.WithLogger(opts.Logger)).GetByEmail(ctx, email)
	if err != nil {
		return out.Fail(err)
	}

	return out.Success(newAccountView(acct))
}
