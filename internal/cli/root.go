package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/config"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/logging"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger built from them before any subcommand runs.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	DBPath    string
	RemoteURL string

	// Environ supplies configuration variables ("KEY=value").
	// Nil reads the process environment.
	Environ []string

	Config config.Config
	Logger *slog.Logger

	logCloser io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kasir CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kasir",
		Short: "kasir - offline-first cashier terminal",
		Long: `An offline-first point-of-sale terminal.

Sales are committed to a local SQLite store first and uploaded to the
remote server whenever it is reachable. The catalog flows the other way.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "local database path (overrides KASIR_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.RemoteURL, "remote", "", "remote API base URL (overrides KASIR_REMOTE_URL)")

	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewSellCommand(opts))
	cmd.AddCommand(NewPayCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewRefundCommand(opts))
	cmd.AddCommand(NewTxCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewRemoteCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// setup validates global flags, loads configuration and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	environ := o.Environ
	if environ == nil {
		environ = os.Environ()
	}
	cfg, err := config.LoadEnv(environ)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.RemoteURL != "" {
		cfg.RemoteBaseURL = o.RemoteURL
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	o.Config = cfg

	logger, closer, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "configure logging", err)
	}
	if cfg.DeviceID != "" {
		logger = logger.With("device", cfg.DeviceID)
	}
	o.Logger = logger
	o.logCloser = closer
	return nil
}

func (o *RootOptions) teardown() error {
	if o.logCloser == nil {
		return nil
	}
	err := o.logCloser.Close()
	o.logCloser = nil
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
