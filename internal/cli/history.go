package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Since string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <email>",
		Short: "List an account's committed transfers, newest first",
		Long: `List the committed transfers an account sent or received, newest first.

Example:
  ledger history alice@example.com
  ledger history alice@example.com --since 2024-01-01T00:00:00Z --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "only transfers at or after this RFC3339 time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many entries (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, email string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var since time.Time
	if opts.Since != "" {
		t, err := time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --since %q", opts.Since), err)
		}
		since = t
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

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

	view := historyView{Email: acct.Email, Entries: []history.Entry{}}
	for entry, err := range history.New(st).Entries(ctx, acct.ID, since) {
		if err != nil {
			return out.Fail(err)
		}
		view.Entries = append(view.Entries, entry)
		if opts.Limit > 0 && len(view.Entries) == opts.Limit {
			break
		}
	}

	return out.Success(view)
}
