// Package config reads the YAML pipeline description:
//
//	passes:
//	  - funclog
//	output: hello.instrumented.ll
//	log:
//	  verbosity: 1
//	  path: gneiss.log
package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gneiss/internal/errors"
	"gneiss/internal/pass"
)

// Config is one pipeline description
type Config struct {
	Passes []string `yaml:"passes"`
	Output string   `yaml:"output,omitempty"`
	Log    Log      `yaml:"log,omitempty"`
}

// Log configures the engine's own diagnostics, not the traced program
type Log struct {
	Verbosity int    `yaml:"verbosity,omitempty"`
	Path      string `yaml:"path,omitempty"`
}

// Default returns the configuration used without a file
func Default() *Config {
	return &Config{Passes: []string{"funclog"}}
}

// Load reads and decodes a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewPassError(errors.StageConfig, errors.ErrorConfig, "cannot read %s", path).Wrap(err)
	}
	c, err := Parse(data)
	if err != nil {
		if pe, ok := errors.AsPassError(err); ok {
			pe.WithNote("in " + path)
		}
		return nil, err
	}
	return c, nil
}

// Parse decodes a configuration document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		e := errors.NewPassError(errors.StageConfig, errors.ErrorConfig, "malformed pipeline description").Wrap(err)
		var typeErr *yaml.TypeError
		if stderrors.As(err, &typeErr) && strings.Contains(err.Error(), "[]string") {
			e.WithSuggestion("'passes' is a list of pass names, e.g. [funclog]")
		}
		return nil, e
	}
	if c.Log.Verbosity < 0 {
		return nil, errors.NewPassError(errors.StageConfig, errors.ErrorConfig, "log verbosity %d is negative", c.Log.Verbosity)
	}
	return c, nil
}

// Pipeline resolves the configured pass names
func (c *Config) Pipeline() (*pass.Pipeline, error) {
	return pass.NewPipeline(c.Passes...)
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
