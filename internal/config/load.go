package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Error is a load or schema failure, positioned when CUE knows where.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

// Error codes.
const (
	ErrCodeRead   = "READ_ERROR"
	ErrCodeParse  = "PARSE_ERROR"
	ErrCodeSchema = "SCHEMA_ERROR"
	ErrCodeFormat = "UNSUPPORTED_FORMAT"
)

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads a config from a .yaml, .yml or .cue file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Message: err.Error()}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, &Error{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported config extension %q", filepath.Ext(path))}
	}
}

// ParseYAML decodes a YAML config, rejecting unknown fields, and validates it.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &Error{Code: ErrCodeParse, Message: err.Error()}
	}
	if err := CheckSchema(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCUE compiles a CUE config, unifies it with #Filter, and decodes it.
func ParseCUE(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema, err := loadSchema(ctx)
	if err != nil {
		return nil, err
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(ErrCodeParse, err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CheckSchema validates an in-memory config against #Filter.
func CheckSchema(cfg *Config) error {
	ctx := cuecontext.New()
	schema, err := loadSchema(ctx)
	if err != nil {
		return err
	}

	v := ctx.Encode(cfg.fields())
	if err := v.Err(); err != nil {
		return formatCUEError(ErrCodeSchema, err)
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(ErrCodeSchema, err)
	}
	return nil
}

func loadSchema(ctx *cue.Context) (cue.Value, error) {
	file := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := file.Err(); err != nil {
		return cue.Value{}, formatCUEError(ErrCodeSchema, err)
	}
	return file.LookupPath(cue.ParsePath("#Filter")), nil
}

// fields lists only the keys that are set, so optional schema fields stay
// absent rather than null.
func (c *Config) fields() map[string]any {
	m := map[string]any{"kind": string(c.Kind)}
	if c.Name != "" {
		m["name"] = c.Name
	}
	if c.MS != nil {
		m["ms"] = *c.MS
	}
	if c.Leading != nil {
		m["leading"] = *c.Leading
	}
	if c.Trailing != nil {
		m["trailing"] = *c.Trailing
	}
	if c.RejectOnCancel {
		m["reject_on_cancel"] = true
	}
	if c.MaxWait != nil {
		m["max_wait"] = *c.MaxWait
	}
	return m
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}

	first := errs[0]
	out := &Error{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
