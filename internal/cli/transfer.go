package cli

import (
	"github.com/spf13/cobra"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
	"github.com/mangobank/ledger/internal/transfer"
)

// TransferOptions holds flags for the transfer command.
type TransferOptions struct {
	*RootOptions
	Note          string
	Key           string
	AuditFailures bool
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transfer <from-email> <to-email> <amount>",
		Short: "Move money between two accounts",
		Long: `Move an amount from one account to another in a single atomic step.

Pass --key to make the request idempotent: repeating a transfer with the
same key returns the original record and moves nothing. Without a key
every invocation is a new transfer.

Example:
  ledger transfer alice@example.com bob@example.com 30.00 --note lunch
  ledger transfer alice@example.com bob@example.com 30.00 --key order-1138`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Note, "note", "", "free-text note stored on the record")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key")
	cmd.Flags().BoolVar(&opts.AuditFailures, "audit-failures", false, "record transfers rejected for insufficient funds")

	return cmd
}

func runTransfer(opts *TransferOptions, from, to, amountArg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	amount, err := money.Parse(amountArg)
	if err != nil {
		return out.Fail(ledger.WrapError(ledger.CodeInvalidAmount, err.Error(), err))
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	engineOpts := append(opts.Config.TransferOptions(),
		transfer.WithFailureAudit(opts.AuditFailures),
		transfer.WithLogger(opts.Logger),
	)
	engine := transfer.New(st, engineOpts...)

	rec, err := engine.Transfer(ctx, transfer.Request{
		SenderEmail:    from,
		RecipientEmail: to,
		Amount:         amount,
		Note:           opts.Note,
		IdempotencyKey: opts.Key,
	})
	if err != nil {
		return out.Fail(err)
	}

	return out.Success(transferView{
		TransferRecord: rec,
		From:           account.NormalizeEmail(from),
		To:             account.NormalizeEmail(to),
	})
}
