package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/apiquery/internal/constraint"
)

// Scenario defines a conformance test scenario: a schema, a dataset and a
// list of requests with their expected outcome. Every request runs against
// every provider, and the providers must agree.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema and Data are the registry and dataset files.
	// Paths are relative to the scenario file location.
	Schema string `yaml:"schema"`
	Data   string `yaml:"data"`

	// Functions lists the optional filter functions to enable.
	Functions []string `yaml:"functions,omitempty"`

	// Options overrides the default reader options.
	Options *constraint.Options `yaml:"options,omitempty"`

	// Now fixes the clock timeOffset reads, in RFC 3339.
	// Defaults to testutil.FixedNow.
	Now string `yaml:"now,omitempty"`

	// Requests run in order.
	Requests []Request `yaml:"requests"`
}

// Request is one query against an endpoint.
type Request struct {
	// Name identifies the request in failures and golden files.
	Name string `yaml:"name"`

	// Resource is the resource type the endpoint serves.
	Resource string `yaml:"resource"`

	// Parameters restricts the parameters the endpoint accepts.
	// Nil allows every parameter.
	Parameters []string `yaml:"parameters,omitempty"`

	// Query is the raw query string, without the leading '?'.
	Query string `yaml:"query"`

	// Expect is the expected outcome. If nil, the request must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the outcome of a request: either result ids or
// request errors.
type Expect struct {
	// IDs are the ids of the top-level rows, in order.
	IDs []string `yaml:"ids,omitempty"`

	// Included maps "<parent id>.<relationship>" to the ids of the included
	// rows, in order. Parents are searched at every depth.
	Included map[string][]string `yaml:"included,omitempty"`

	// Errors are the expected error objects, in order.
	Errors []ExpectedError `yaml:"errors,omitempty"`
}

// ExpectedError matches one JSON:API error object. Detail is a substring
// match; empty fields match anything.
type ExpectedError struct {
	Parameter string `yaml:"parameter,omitempty"`
	Title     string `yaml:"title,omitempty"`
	Detail    string `yaml:"detail,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file, resolving the schema
// and data paths relative to it.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "request:" vs "requests:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve paths relative to the scenario BEFORE validation
	base := filepath.Dir(path)
	for _, p := range []*string{&scenario.Schema, &scenario.Data} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}

	if s.Data == "" {
		return fmt.Errorf("data is required")
	}

	for _, p := range []string{s.Schema, s.Data} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	if len(s.Requests) == 0 {
		return fmt.Errorf("requests list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i, r := range s.Requests {
		if r.Name == "" {
			return fmt.Errorf("requests[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("requests[%d]: duplicate name %q", i, r.Name)
		}
		names[r.Name] = true
		if r.Resource == "" {
			return fmt.Errorf("requests[%d]: resource is required", i)
		}
		if err := validateExpect(r.Expect); err != nil {
			return fmt.Errorf("requests[%d].expect: %w", i, err)
		}
	}

	return nil
}

func validateExpect(e *Expect) error {
	if e == nil {
		return nil
	}
	if len(e.Errors) > 0 && (e.IDs != nil || e.Included != nil) {
		return fmt.Errorf("errors exclude ids and included")
	}
	for key := range e.Included {
		if _, _, ok := splitIncludedKey(key); !ok {
			return fmt.Errorf("included key %q must be <parent id>.<relationship>", key)
		}
	}
	return nil
}

// splitIncludedKey splits "<parent id>.<relationship>". Relationship names
// never contain dots; ids may.
func splitIncludedKey(key string) (id, rel string, ok bool) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
