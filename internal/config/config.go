// Package config loads the runtime configuration file.
//
// The file is YAML. Missing keys keep their defaults, GALACTIC_* environment
// variables override the file, and command-line flags override both (the
// CLI applies them before calling Validate).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/galactic/internal/refdata"
)

// Defaults.
const (
	DefaultDatabase = "galactic.db"
	DefaultSchema   = "MEL"
)

// Config is the runtime configuration.
type Config struct {
	Database             string   `yaml:"database" validate:"required"`
	ClassesDir           string   `yaml:"classes_dir"`
	Owner                string   `yaml:"owner" validate:"required,oid"`
	Creator              string   `yaml:"creator" validate:"required,oid"`
	DefaultSchema        string   `yaml:"default_schema" validate:"required"`
	IncludeReferenceData bool     `yaml:"include_reference_data"`
	MetricsAddr          string   `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	ExtraReferenceOIDs   []string `yaml:"extra_reference_oids" validate:"dive,oid"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database:      DefaultDatabase,
		Owner:         refdata.PGANA,
		Creator:       refdata.Admin,
		DefaultSchema: DefaultSchema,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("oid", validOID)
	return v
}

// validOID accepts a non-empty oid without whitespace.
func validOID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && !strings.ContainsFunc(s, unicode.IsSpace)
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string // yaml key path, e.g. "extra_reference_oids[1]"
	Rule  string
	Value any
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: failed %q (got %v)", f.Field, f.Rule, f.Value))
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load reads path over the defaults, applies the environment, and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, leaving keys absent from data untouched.
// Unknown keys are an error.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from GALACTIC_DB, GALACTIC_OWNER,
// GALACTIC_CREATOR, and GALACTIC_METRICS_ADDR.
func (c *Config) applyEnv(getenv func(string) string) {
	for name, field := range map[string]*string{
		"GALACTIC_DB":           &c.Database,
		"GALACTIC_OWNER":        &c.Owner,
		"GALACTIC_CREATOR":      &c.Creator,
		"GALACTIC_METRICS_ADDR": &c.MetricsAddr,
	} {
		if v := getenv(name); v != "" {
			*field = v
		}
	}
}

// Validate checks the struct rules.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Value: fe.Value(),
		})
	}
	return out
}
