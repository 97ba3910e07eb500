package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querymate/internal/catalog"
	"github.com/roach88/querymate/internal/compiler"
	"github.com/roach88/querymate/internal/config"
)

// queryInput bundles what every query command needs: settings, a compiler
// bound to the catalog, and the parsed document.
type queryInput struct {
	Config   config.Config
	Compiler *compiler.Compiler
	Entity   string
	Document *compiler.Document
	Logger   *slog.Logger
}

// LoadError is a failure to read an input. Code is one of the E-codes.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadQuery resolves settings, loads the catalog and parses the document at
// specPath ("-" reads stdin). Compile errors in the document come back as
// *compiler.Error; everything else as *LoadError.
func loadQuery(opts *RootOptions, cmd *cobra.Command, entity, specPath string) (*queryInput, error) {
	cfg, err := opts.settings()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: "invalid configuration", Err: err}
	}

	cat, err := loadCatalog(opts.Catalog)
	if err != nil {
		return nil, err
	}

	doc, err := readDocument(cmd.InOrStdin(), specPath)
	if err != nil {
		return nil, err
	}

	return &queryInput{
		Config:   cfg,
		Compiler: compiler.New(cat, cfg),
		Entity:   entity,
		Document: doc,
		Logger:   opts.newLogger(cfg, cmd.ErrOrStderr()),
	}, nil
}

func loadCatalog(path string) (*catalog.Static, error) {
	if path == "" {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "--catalog is required"}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCatalog, Message: "failed to load catalog", Err: err}
	}
	return cat, nil
}

// readDocument parses a query document. Files ending in .yaml or .yml are
// YAML; everything else (including stdin) is JSON.
func readDocument(stdin io.Reader, path string) (*compiler.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query document not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "failed to read query document", Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &compiler.Error{Code: compiler.ErrCodeMalformed, Message: fmt.Sprintf("invalid YAML: %v", err)}
		}
		if m == nil {
			m = map[string]any{}
		}
		return compiler.DocumentFromMap(m)
	default:
		return compiler.ParseDocument(data)
	}
}

// reportLoadError writes a loadQuery failure and converts it to an
// ExitError.
func reportLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		msg := le.Message
		if le.Err != nil {
			msg = fmt.Sprintf("%s: %v", le.Message, le.Err)
		}
		if outErr := f.Error(&CLIError{Code: le.Code, Message: msg}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, le.Message, le.Err)
	}
	return f.CompileError(err)
}
