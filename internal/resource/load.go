package resource

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a registry definition from a .yaml/.yml or .cue file and
// freezes it.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var def *Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		def, err = ParseYAML(data)
	case ".cue":
		def, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported schema file %q: expected .yaml, .yml or .cue", path)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	return NewGraph().Add(def.Resources...).Freeze()
}

// ParseYAML decodes a YAML registry definition. Unknown keys are rejected.
func ParseYAML(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &def, nil
}
