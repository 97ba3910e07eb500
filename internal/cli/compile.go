package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querymate/internal/ir"
	"github.com/roach88/querymate/internal/queryir"
	"github.com/roach88/querymate/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path for the JSON plan summary
}

// PlanSummary is the printable form of a compiled plan.
type PlanSummary struct {
	ID                string        `json:"id"`
	Document          string        `json:"document"`
	Entity            string        `json:"entity"`
	Table             string        `json:"table"`
	JoinKind          string        `json:"join_kind"`
	Joins             []JoinSummary `json:"joins"`
	Select            []string      `json:"select"`
	Sort              []SortSummary `json:"sort"`
	Group             *GroupSummary `json:"group,omitempty"`
	Limit             int           `json:"limit"`
	Offset            int           `json:"offset"`
	MaxTotal          int           `json:"max_total,omitempty"`
	IncludePagination bool          `json:"include_pagination"`
	Dialect           string        `json:"dialect"`
	SQL               string        `json:"sql"`
	Args              []any         `json:"args"`
}

// JoinSummary describes one join of a plan.
type JoinSummary struct {
	Path        string `json:"path"`
	Table       string `json:"table"`
	Alias       string `json:"alias"`
	Kind        string `json:"kind"`
	Cardinality string `json:"cardinality"`
}

// SortSummary describes one sort key.
type SortSummary struct {
	Field       string `json:"field"`
	Direction   string `json:"direction"`
	CustomOrder []any  `json:"custom_order,omitempty"`
}

// GroupSummary describes the group key of a grouped plan.
type GroupSummary struct {
	Field         string `json:"field"`
	Granularity   string `json:"granularity,omitempty"`
	OffsetMinutes *int   `json:"offset_minutes,omitempty"`
	Zone          string `json:"zone,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <entity> <query-file>",
		Short: "Compile a query document to a plan and SQL",
		Long: `Compile a query document against the catalog and print the resulting
plan: joins, projection, sort keys, group key, window and the rendered SQL
for the selected dialect.

The query file is JSON, or YAML when it ends in .yaml/.yml. Use "-" to
read JSON from stdin.

Examples:
  querymate compile -c catalog.yaml users query.json
  querymate compile -c catalog.yaml --dialect postgres posts query.yaml
  echo '{"filter":{"age":{"gt":18}}}' | querymate compile -c catalog.yaml users -`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "also write the JSON plan summary to this file")

	return cmd
}

func runCompile(opts *CompileOptions, entity, specPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	in, err := loadQuery(opts.RootOptions, cmd, entity, specPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	plan, err := in.Compiler.Compile(in.Entity, in.Document)
	if err != nil {
		return formatter.CompileError(err)
	}
	formatter.VerboseLog("Compiled %s: plan %s, %d join(s)", plan.Entity, plan.ID, len(plan.Joins))

	dialect, err := querysql.ParseDialect(in.Config.Dialect)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid dialect", err)
	}
	summary, err := summarize(plan, dialect)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to render SQL", err)
	}
	// Unlike the plan ID, the document fingerprint ignores configuration.
	summary.Document, err = ir.Fingerprint(ir.DomainDocument, in.Document.Raw())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to fingerprint document", err)
	}

	if opts.Output != "" {
		if err := writeSummary(summary, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		formatter.VerboseLog("Wrote plan to %s", opts.Output)
	}

	return formatter.Success(summary, summaryText(summary))
}

// summarize flattens a plan and renders its row query. Grouped plans render
// the group count query, since their rows are fetched per group.
func summarize(p *queryir.Plan, dialect querysql.Dialect) (*PlanSummary, error) {
	r := querysql.NewRenderer(dialect)

	var (
		query string
		args  []any
		err   error
	)
	if p.Group != nil {
		query, args, err = r.GroupCounts(p)
	} else {
		query, args, err = r.Select(p)
	}
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = []any{}
	}

	s := &PlanSummary{
		ID:                p.ID,
		Entity:            p.Entity,
		Table:             p.Table,
		JoinKind:          string(p.JoinKind),
		Joins:             make([]JoinSummary, len(p.Joins)),
		Select:            make([]string, len(p.Projection)),
		Sort:              make([]SortSummary, len(p.Sort)),
		Limit:             p.Window.Limit,
		Offset:            p.Window.Offset,
		IncludePagination: p.IncludePagination,
		Dialect:           string(dialect),
		SQL:               query,
		Args:              args,
	}
	for i, j := range p.Joins {
		s.Joins[i] = JoinSummary{
			Path:        j.Path,
			Table:       j.Table,
			Alias:       j.Alias,
			Kind:        string(j.Kind),
			Cardinality: string(j.Cardinality),
		}
	}
	for i, f := range p.Projection {
		s.Select[i] = f.Path
	}
	for i, k := range p.Sort {
		s.Sort[i] = SortSummary{Field: k.Field.Path, Direction: string(k.Direction)}
		for _, v := range k.CustomOrder {
			s.Sort[i].CustomOrder = append(s.Sort[i].CustomOrder, ir.Native(v))
		}
	}
	if g := p.Group; g != nil {
		s.Group = &GroupSummary{
			Field:         g.Field.Path,
			Granularity:   string(g.Granularity),
			OffsetMinutes: g.OffsetMinutes,
			Zone:          g.Zone,
		}
		s.MaxTotal = p.MaxTotal
	}
	return s, nil
}

func summaryText(s *PlanSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "✓ Compiled %s (plan %s)\n", s.Entity, s.ID)
	if s.Document != "" {
		fmt.Fprintf(&b, "Document: %s\n", s.Document)
	}
	if len(s.Joins) > 0 {
		fmt.Fprintf(&b, "\nJoins (%s):\n", s.JoinKind)
		for _, j := range s.Joins {
			fmt.Fprintf(&b, "  - %s -> %s AS %s (%s)\n", j.Path, j.Table, j.Alias, j.Cardinality)
		}
	}
	if s.Group != nil {
		fmt.Fprintf(&b, "\nGroup: %s", s.Group.Field)
		if s.Group.Granularity != "" {
			fmt.Fprintf(&b, " by %s", s.Group.Granularity)
		}
		if s.Group.Zone != "" {
			fmt.Fprintf(&b, " in %s", s.Group.Zone)
		} else if s.Group.OffsetMinutes != nil {
			fmt.Fprintf(&b, " at %+d min", *s.Group.OffsetMinutes)
		}
		fmt.Fprintf(&b, " (max %d items)\n", s.MaxTotal)
	}
	fmt.Fprintf(&b, "\nWindow: limit %d offset %d\n", s.Limit, s.Offset)
	fmt.Fprintf(&b, "\nSQL (%s):\n  %s\n", s.Dialect, s.SQL)
	if len(s.Args) > 0 {
		fmt.Fprintf(&b, "Args: %v\n", s.Args)
	}
	return strings.TrimRight(b.String(), "\n")
}

// writeSummary writes the plan summary as indented JSON.
func writeSummary(s *PlanSummary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
