package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querymate/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Entities []string          `json:"entities"`
	Checked  int               `json:"checked"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one rejected query document.
type ValidationError struct {
	File     string `json:"file"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [<entity> <query-file>...]",
		Short: "Validate the catalog and query documents",
		Long: `Validate the catalog and, optionally, query documents without rendering
or running them.

Every document is compiled against the entity and all errors are
collected, so one run reports every rejected file.

Examples:
  querymate validate -c catalog.yaml
  querymate validate -c catalog.yaml users queries/*.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("expected at least one query file after entity %q", args[0])
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.settings()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	cat, err := loadCatalog(opts.Catalog)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	result := ValidationResult{Valid: true, Entities: cat.Names()}
	formatter.VerboseLog("Catalog %s: %d entit(ies)", opts.Catalog, len(result.Entities))

	if len(args) > 0 {
		c := compiler.New(cat, cfg)
		entity := args[0]
		for _, file := range args[1:] {
			formatter.VerboseLog("Validating %s", file)
			result.Checked++

			doc, err := readDocument(cmd.InOrStdin(), file)
			if err == nil {
				_, err = c.Compile(entity, doc)
			}
			if err != nil {
				result.Valid = false
				result.Errors = append(result.Errors, toValidationError(file, err))
			}
		}
	}

	if result.Valid {
		return formatter.Success(result, validationText(result))
	}

	if formatter.IsJSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: fmt.Sprintf("%d of %d document(s) rejected", len(result.Errors), result.Checked),
			},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, validationText(result))
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d document(s) rejected", len(result.Errors)))
}

func toValidationError(file string, err error) ValidationError {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		return ValidationError{
			File:     file,
			Code:     string(ce.Code),
			Message:  ce.Message,
			Path:     ce.Path,
			Operator: ce.Operator,
		}
	}
	var le *LoadError
	if errors.As(err, &le) {
		return ValidationError{File: file, Code: le.Code, Message: le.Message}
	}
	return ValidationError{File: file, Code: ErrCodeGeneric, Message: err.Error()}
}

func validationText(r ValidationResult) string {
	var b strings.Builder
	if r.Valid {
		fmt.Fprintf(&b, "✓ Catalog valid (%d entities: %s)", len(r.Entities), strings.Join(r.Entities, ", "))
		if r.Checked > 0 {
			fmt.Fprintf(&b, "\n✓ %d document(s) valid", r.Checked)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "✗ %d of %d document(s) rejected:", len(r.Errors), r.Checked)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s: [%s] %s", e.File, e.Code, e.Message)
		if e.Path != "" {
			fmt.Fprintf(&b, " (at %s)", e.Path)
		}
	}
	return b.String()
}
