package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a catalog from disk, choosing the decoder by extension
// (.cue, otherwise YAML).
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".cue":
		return LoadCUE(filepath.Base(path), data)
	default:
		return LoadYAML(data)
	}
}

// LoadYAML decodes a YAML catalog definition. Unknown keys are rejected.
func LoadYAML(data []byte) (*Static, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}
	return Build(def)
}

// LoadCUE evaluates a CUE catalog definition. The file must evaluate to a
// concrete value with a top-level "entities" struct.
//
//	entities: users: {
//		fields: id: type: "number"
//		relationships: posts: {target: "posts", cardinality: "many", foreign_key: "user_id"}
//	}
func LoadCUE(filename string, data []byte) (*Static, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var def Definition
	if err := v.Decode(&def); err != nil {
		return nil, formatCUEError(err)
	}
	return Build(def)
}

// CUEError carries the source position of a CUE evaluation failure.
type CUEError struct {
	Message string
	Pos     token.Pos
}

func (e *CUEError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CUEError{Message: first.Error(), Pos: positions[0]}
	}
	return err
}
