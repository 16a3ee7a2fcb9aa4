package dataset

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// record is the YAML form of one object:
//
//	- type: blogPosts
//	  id: "1"
//	  attributes: {caption: Hello, rating: 4.5}
//	  relationships: {author: "7", comments: ["1", "2"]}
type record struct {
	Type          string         `yaml:"type"`
	ID            string         `yaml:"id"`
	Attributes    map[string]any `yaml:"attributes"`
	Relationships map[string]any `yaml:"relationships"`
}

// Load reads a YAML data file and validates it against reg.
func Load(reg *resource.Registry, path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	d, err := Parse(reg, data)
	if err != nil {
		return nil, fmt.Errorf("load data %s: %w", path, err)
	}
	return d, nil
}

// Parse decodes a YAML list of objects. Objects are added in file order.
// Unknown keys are rejected.
func Parse(reg *resource.Registry, data []byte) (*Dataset, error) {
	var records []record
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	d := New(reg)
	for i, rec := range records {
		obj, err := rec.object(reg)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		if err := d.Add(obj); err != nil {
			return nil, err
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (r record) object(reg *resource.Registry) (*Object, error) {
	rt, ok := reg.Type(r.Type)
	if !ok {
		return nil, &Error{Type: r.Type, ID: r.ID, Message: "unknown resource type"}
	}
	obj := &Object{
		Type:          rt,
		ID:            r.ID,
		Attributes:    make(map[string]value.Value, len(r.Attributes)),
		Relationships: make(map[string][]string, len(r.Relationships)),
	}
	for name, raw := range r.Attributes {
		attr, ok := rt.Attribute(name)
		if !ok || name == "id" {
			return nil, &Error{Type: r.Type, ID: r.ID, Field: name, Message: "unknown attribute"}
		}
		v, err := value.FromAny(raw, attr.ValueType())
		if err != nil {
			return nil, &Error{Type: r.Type, ID: r.ID, Field: name, Message: err.Error()}
		}
		obj.Attributes[name] = v
	}
	for name, raw := range r.Relationships {
		ids, err := relationshipIDs(raw)
		if err != nil {
			return nil, &Error{Type: r.Type, ID: r.ID, Field: name, Message: err.Error()}
		}
		obj.Relationships[name] = ids
	}
	return obj, nil
}

// relationshipIDs accepts null, a single id, or a list of ids.
func relationshipIDs(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, err := idString(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		id, err := idString(v)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
}

func idString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", fmt.Errorf("invalid id %v", raw)
	}
}
