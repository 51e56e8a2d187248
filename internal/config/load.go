package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// Load reads configuration from a YAML, JSON or CUE file (by extension).
// Fields the file leaves out keep their defaults. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".cue":
		if err := decodeCUE(b, path, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
	return cfg, nil
}

// decodeCUE evaluates a CUE config file and decodes its concrete value.
// The file may import nothing; it is compiled on its own.
func decodeCUE(b []byte, path string, cfg *Config) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(b, cue.Filename(path))
	if err := v.Err(); err != nil {
		return fmt.Errorf("parse config %s: %s", path, cueerrors.Details(err, nil))
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("parse config %s: %s", path, cueerrors.Details(err, nil))
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks cfg against the #Config schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	v := ctx.CompileBytes(data, cue.Filename("config.json"))

	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil), err: err}
	}
	return nil
}

// ValidationError reports a config that does not satisfy the schema.
type ValidationError struct {
	// Details lists every violation, one per line.
	Details string
	err     error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Details
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// IsValidationError reports whether err is a schema violation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

const defaultHeader = "# diary backend configuration\n"

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if _, err := f.Write(append([]byte(defaultHeader), data...)); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}
