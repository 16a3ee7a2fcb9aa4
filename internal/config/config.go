// Package config loads the apiquery configuration file.
//
//	schema: schema.yaml          # registry file, relative to this file
//	data: data.yaml              # dataset for the query command
//	options:
//	  defaultPageSize: 10
//	  maxPageSize: 100
//	functions: [sum, isUpperCase, timeOffset]
//	endpoints:
//	  - name: blogs
//	    resource: blogs
//	    parameters: [filter, sort, page]
//
// A missing file yields Default: standard options, no optional functions
// and no endpoints, so every resource type is reachable with every
// parameter.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/engine"
	"github.com/roach88/apiquery/internal/funcs"
	"github.com/roach88/apiquery/internal/resource"
)

// Config is the parsed configuration file.
type Config struct {
	// Schema and Data are file paths. Relative paths are resolved against
	// the directory of the configuration file.
	Schema string `yaml:"schema,omitempty"`
	Data   string `yaml:"data,omitempty"`

	Options   constraint.Options `yaml:"options"`
	Functions []string           `yaml:"functions,omitempty"`
	Endpoints []Endpoint         `yaml:"endpoints,omitempty"`
}

// Endpoint exposes a resource type under a name. Nil Parameters allows
// every parameter.
type Endpoint struct {
	Name       string   `yaml:"name"`
	Resource   string   `yaml:"resource"`
	Parameters []string `yaml:"parameters,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{Options: constraint.DefaultOptions()}
}

// Load reads the configuration file at path. A missing file yields
// Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a configuration document. Unknown fields are rejected.
// Options left out keep their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Schema, &c.Data} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) validate() error {
	o := c.Options
	if o.DefaultPageSize < 0 || o.MaxPageSize < 0 || o.MaxPageNumber < 0 {
		return fmt.Errorf("options: page limits must be non-negative")
	}
	if o.MaxPageSize > 0 && o.DefaultPageSize > o.MaxPageSize {
		return fmt.Errorf("options: defaultPageSize %d exceeds maxPageSize %d", o.DefaultPageSize, o.MaxPageSize)
	}
	if _, err := funcs.Lookup(c.Functions...); err != nil {
		return fmt.Errorf("functions: %w", err)
	}
	seen := make(map[string]bool)
	for i, ep := range c.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoints[%d]: name is required", i)
		}
		if ep.Resource == "" {
			return fmt.Errorf("endpoints[%d]: resource is required", i)
		}
		if seen[ep.Name] {
			return fmt.Errorf("endpoints[%d]: duplicate endpoint %q", i, ep.Name)
		}
		seen[ep.Name] = true
	}
	return nil
}

// EngineOptions returns the engine options the configuration selects.
func (c *Config) EngineOptions() ([]engine.Option, error) {
	exts, err := funcs.Lookup(c.Functions...)
	if err != nil {
		return nil, err
	}
	return []engine.Option{engine.WithOptions(c.Options), engine.WithFunctions(exts...)}, nil
}

// Endpoint resolves the endpoint called name against reg. Without
// configured endpoints, every resource type is an endpoint of its own name
// that allows every parameter.
func (c *Config) Endpoint(reg *resource.Registry, name string) (constraint.Endpoint, error) {
	if len(c.Endpoints) == 0 {
		rt, ok := reg.Type(name)
		if !ok {
			return constraint.Endpoint{}, fmt.Errorf("unknown resource type %q", name)
		}
		return constraint.Endpoint{Name: name, Resource: rt}, nil
	}
	for _, ep := range c.Endpoints {
		if ep.Name != name {
			continue
		}
		rt, ok := reg.Type(ep.Resource)
		if !ok {
			return constraint.Endpoint{}, fmt.Errorf("endpoint %q: unknown resource type %q", name, ep.Resource)
		}
		return constraint.Endpoint{Name: ep.Name, Resource: rt, Parameters: ep.Parameters}, nil
	}
	return constraint.Endpoint{}, fmt.Errorf("unknown endpoint %q", name)
}

// CheckEndpoints verifies that every configured endpoint names a resource
// type of reg.
func (c *Config) CheckEndpoints(reg *resource.Registry) error {
	var errs []error
	for _, ep := range c.Endpoints {
		if _, err := c.Endpoint(reg, ep.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
