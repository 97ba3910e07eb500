package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/querymate/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // optional config file
	Catalog  string // catalog definition (YAML or CUE)
	Dialect  string // overrides the configured dialect
	LogLevel string // overrides the configured log level
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the querymate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "querymate",
		Short: "querymate - declarative query compiler",
		Long: `Compile declarative query documents (filter, sort, select, group_by,
pagination) against an entity catalog into SQL, and run them.

Settings come from defaults, an optional --config file, QUERYMATE_*
environment variables and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Config, "config", "", "config file (yaml, json or toml)")
	flags.StringVarP(&opts.Catalog, "catalog", "c", "", "catalog definition file (.yaml or .cue)")
	flags.StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// settings resolves the effective configuration. Flags that were given
// override the config file and the environment.
func (o *RootOptions) settings() (config.Config, error) {
	v := config.NewViper()
	if o.Dialect != "" {
		v.Set(config.KeyDialect, o.Dialect)
	}
	if o.LogLevel != "" {
		v.Set(config.KeyLogLevel, o.LogLevel)
	}
	return config.Load(v, o.Config)
}

// newLogger builds the command logger. --verbose forces debug.
func (o *RootOptions) newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
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

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
