package cli

import (
	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the configured store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(rootOpts, cmd)
		},
	}
}

func runHealth(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	ctx := cmd.Context()
	st, err := opts.openStore(ctx)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		return out.Fail(err)
	}
	return out.Success(healthView{Backend: opts.Config.Backend, Status: "ok"})
}
