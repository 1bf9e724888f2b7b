package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mangobank/ledger/internal/config"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/memstore"
	"github.com/mangobank/ledger/internal/pgstore"
	"github.com/mangobank/ledger/internal/store"
)

// RootOptions holds global flags for all commands and the settings
// resolved from them before a command runs.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Backend string
	DB      string
	DSN     string
	EnvFile string

	// Resolved in PersistentPreRunE.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Transactional funds-transfer ledger",
		Long: `Move money between accounts with atomic, idempotent transfers.

Settings come from a .env file and LEDGER_* environment variables;
flags override both.

Exit codes:
  0 - Success
  1 - Request rejected or check failed
  2 - Usage or configuration error
  3 - Contention or store unavailable (safe to retry with the same key)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Backend, "backend", "", "storage backend (sqlite|postgres|memory)")
	flags.StringVar(&opts.DB, "db", "", "path to SQLite database")
	flags.StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string")
	flags.StringVar(&opts.EnvFile, "env-file", "", "env file to load (default .env)")

	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))

	return cmd
}

// resolve validates global flags, loads configuration and applies flag
// overrides, then builds the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	var files []string
	if o.EnvFile != "" {
		files = append(files, o.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = o.Backend
	}
	if flags.Changed("db") {
		cfg.DBPath = o.DB
	}
	if flags.Changed("dsn") {
		cfg.PostgresDSN = o.DSN
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	level := cfg.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	o.Config = cfg
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured backend. The memory backend starts empty
// and is discarded when the command exits.
func (o *RootOptions) openStore(ctx context.Context) (ledger.Store, error) {
	o.Logger.Debug("opening store", "backend", o.Config.Backend)

	var (
		st  ledger.Store
		err error
	)
	switch o.Config.Backend {
	case config.BackendSQLite:
		st, err = store.Open(o.Config.DBPath, store.WithLogger(o.Logger))
	case config.BackendPostgres:
		st, err = pgstore.Open(ctx, o.Config.PostgresDSN, pgstore.WithLogger(o.Logger))
	case config.BackendMemory:
		st = memstore.New(memstore.WithLogger(o.Logger))
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q", o.Config.Backend))
	}
	if err != nil {
		return nil, ledger.Unavailable("open "+o.Config.Backend+" store", err)
	}
	return st, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
