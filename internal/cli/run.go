package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/querymate/internal/config"
	"github.com/roach88/querymate/internal/engine"
	"github.com/roach88/querymate/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Parallelism int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <entity> <query-file>",
		Short: "Run a query document against a SQLite database",
		Long: `Compile a query document and execute it against a SQLite database,
printing the nested response. Grouped documents fetch their groups
concurrently, bounded by --parallelism.

Example:
  querymate run -c catalog.yaml --db ./app.db users query.json
  querymate run -c catalog.yaml --db ./app.db --format json posts by_month.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", engine.DefaultParallelism, "concurrent group fetches")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *RunOptions, entity, specPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	in, err := loadQuery(opts.RootOptions, cmd, entity, specPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	if in.Config.Dialect != config.DialectSQLite {
		return formatter.Fail(ExitCommandError, ErrCodeConfig,
			fmt.Sprintf("run executes on SQLite; dialect %q is only available to compile", in.Config.Dialect), nil)
	}

	// store.Open creates missing files; a query needs existing data.
	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}

	logger := in.Logger
	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng := engine.New(in.Compiler, st,
		engine.WithLogger(logger),
		engine.WithParallelism(opts.Parallelism),
	)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := eng.Query(ctx, in.Entity, in.Document)
	if err != nil {
		if engine.IsRuntimeError(err) {
			return formatter.Fail(ExitFailure, ErrCodeRuntime, "query failed", err)
		}
		return formatter.CompileError(err)
	}
	logger.Debug("query executed", "plan_id", resp.Plan.ID)

	if formatter.IsJSON() {
		return formatter.Success(resp, "")
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to encode response", err)
	}
	return formatter.Success(nil, string(data))
}
