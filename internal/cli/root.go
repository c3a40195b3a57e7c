package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/limitidx/internal/config"
	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/logging"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Stores and Sources override backend construction (for testing).
	// Nil means the real drivers.
	Stores  StoreOpener
	Sources SourceOpener

	// RunIDs overrides the ingest run identifier generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Stdin is read by the file source for "-". Defaults to os.Stdin.
	Stdin io.Reader

	viper    *viper.Viper
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the limitidx CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limitidx",
		Short: "limitidx - limit order indexer",
		Long: `Index limit-order update events into one record per order.

Each event is keyed by the Keccak-256 of its packed identity fields
(maker, taker, assets, amounts, expiration); the first event creates the
record and every later one overwrites its remaining amount.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file")
	pf.String("store", config.DriverSQLite, "store driver (sqlite|badger|redis|postgres|memory)")
	pf.String("db", "limitidx.db", "SQLite file or Badger directory")
	pf.String("dsn", "", "PostgreSQL connection string")
	pf.String("redis-addr", "localhost:6379", "Redis address")

	opts.bind("store.driver", pf.Lookup("store"))
	opts.bind("store.path", pf.Lookup("db"))
	opts.bind("store.dsn", pf.Lookup("dsn"))
	opts.bind("store.redis.addr", pf.Lookup("redis-addr"))

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return GetExitCode(err)
}

// v returns the viper instance, creating it on first use.
func (o *RootOptions) v() *viper.Viper {
	if o.viper == nil {
		o.viper = config.NewViper()
	}
	return o.viper
}

// bind makes flag override key when it is set on the command line.
func (o *RootOptions) bind(key string, flag *pflag.Flag) {
	if err := o.v().BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

// prepare loads configuration and builds the logger. Safe to call more than
// once; only the first call does work.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}

	if err := config.LoadDotEnv(); err != nil {
		return WrapExitError(ExitCommandError, "failed to load .env", err)
	}
	cfg, err := config.Load(o.v(), o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, closeLog, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	o.closeLog = closeLog
	return nil
}

func (o *RootOptions) close() error {
	if o.closeLog == nil {
		return nil
	}
	err := o.closeLog()
	o.closeLog = nil
	return err
}

func (o *RootOptions) stdin() io.Reader {
	if o.Stdin != nil {
		return o.Stdin
	}
	return os.Stdin
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
