package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/endog/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	Journal    string
	Backend    string
	Tolerance  time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the endog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "endog",
		Short: "endog - tolerant event-sourced state",
		Long: `A state engine that folds timestamped events into a state, tolerating
events that arrive out of order within a configurable window, and commits
them to an append-only journal once the window has passed.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "journal path (overrides journal.path)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "journal backend: file|sqlite (overrides journal.backend)")
	cmd.PersistentFlags().DurationVar(&opts.Tolerance, "tolerance", 0, "tolerance window (overrides engine.tolerance)")

	cmd.AddCommand(NewLinesCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig builds the process configuration. Flags override the config
// file and environment only when they were set on the command line.
func loadConfig(cmd *cobra.Command, opts *RootOptions, extra map[string]any) (*config.Config, error) {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("journal") {
		overrides["journal.path"] = opts.Journal
	}
	if flags.Changed("backend") {
		overrides["journal.backend"] = opts.Backend
	}
	if flags.Changed("tolerance") {
		overrides["engine.tolerance"] = opts.Tolerance.String()
	}
	for k, v := range extra {
		overrides[k] = v
	}

	cfg, err := config.Load(
		config.WithConfigFile(opts.ConfigFile),
		config.WithOverrides(overrides),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger returns a text logger on the command's stderr. --verbose forces
// Debug level; otherwise log.level applies.
func newLogger(cmd *cobra.Command, opts *RootOptions, cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// newFormatter returns the output formatter for the command.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
