// Package dataset holds resource objects in memory.
//
// Objects are stored per root resource type: objects of derived types live
// in the collection of their root, the way a single table holds a type
// hierarchy. Collections keep insertion order, which is the order every
// provider falls back to when sort keys tie.
package dataset

import (
	"errors"
	"fmt"

	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

// Object is one resource object.
//
// Attributes holds a value for every effective attribute of Type except
// "id", Null when absent. Relationships holds the ids of the related
// objects; a to-one relationship holds at most one id.
type Object struct {
	Type          *resource.Type
	ID            string
	Attributes    map[string]value.Value
	Relationships map[string][]string
}

// Attribute returns the value of the named attribute. "id" yields the
// object id.
func (o *Object) Attribute(name string) value.Value {
	if name == "id" {
		return value.String(o.ID)
	}
	if v, ok := o.Attributes[name]; ok {
		return v
	}
	return value.Null{}
}

// Error reports an invalid object.
type Error struct {
	Type    string
	ID      string
	Field   string
	Message string
}

func (e *Error) Error() string {
	loc := e.Type
	if e.ID != "" {
		loc += "/" + e.ID
	}
	if e.Field != "" {
		loc += "." + e.Field
	}
	return fmt.Sprintf("object %s: %s", loc, e.Message)
}

// IsError reports whether err is or wraps a dataset *Error.
func IsError(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// Dataset is a set of objects conforming to a registry.
//
// Thread-safety: a Dataset must not be modified while it is read. Once
// built it is safe for concurrent readers.
type Dataset struct {
	reg         *resource.Registry
	collections map[*resource.Type][]*Object
	index       map[*resource.Type]map[string]*Object
}

// New creates an empty dataset for reg.
func New(reg *resource.Registry) *Dataset {
	return &Dataset{
		reg:         reg,
		collections: make(map[*resource.Type][]*Object),
		index:       make(map[*resource.Type]map[string]*Object),
	}
}

// Registry returns the registry objects conform to.
func (d *Dataset) Registry() *resource.Registry { return d.reg }

// Add appends obj to the collection of its root type. Missing attributes
// become Null. References are checked by Validate, so objects may be added
// in any order.
func (d *Dataset) Add(obj *Object) error {
	if obj.Type == nil {
		return &Error{ID: obj.ID, Message: "resource type is required"}
	}
	fail := func(field, format string, args ...any) error {
		return &Error{Type: obj.Type.PublicName(), ID: obj.ID, Field: field, Message: fmt.Sprintf(format, args...)}
	}
	if obj.ID == "" {
		return fail("", "id is required")
	}
	root := obj.Type.Root()
	if _, dup := d.index[root][obj.ID]; dup {
		return fail("", "duplicate id in collection %q", root.PublicName())
	}

	if obj.Attributes == nil {
		obj.Attributes = make(map[string]value.Value)
	}
	if obj.Relationships == nil {
		obj.Relationships = make(map[string][]string)
	}
	for name, v := range obj.Attributes {
		attr, ok := obj.Type.Attribute(name)
		if !ok || name == "id" {
			return fail(name, "unknown attribute")
		}
		if value.IsNull(v) {
			if !attr.Nullable() {
				return fail(name, "attribute is not nullable")
			}
			continue
		}
		if v.Type() != attr.ValueType() {
			return fail(name, "value of type %s, want %s", v.Type(), attr.ValueType())
		}
	}
	for _, attr := range obj.Type.Attributes() {
		if attr.PublicName() == "id" {
			continue
		}
		if _, ok := obj.Attributes[attr.PublicName()]; !ok {
			if !attr.Nullable() {
				return fail(attr.PublicName(), "attribute is required")
			}
			obj.Attributes[attr.PublicName()] = value.Null{}
		}
	}
	for name, ids := range obj.Relationships {
		rel, ok := obj.Type.Relationship(name)
		if !ok {
			return fail(name, "unknown relationship")
		}
		if !rel.IsToMany() && len(ids) > 1 {
			return fail(name, "to-one relationship holds %d ids", len(ids))
		}
	}

	if d.index[root] == nil {
		d.index[root] = make(map[string]*Object)
	}
	d.index[root][obj.ID] = obj
	d.collections[root] = append(d.collections[root], obj)
	return nil
}

// Validate checks that every relationship refers to an existing object
// whose type conforms to the relationship target.
func (d *Dataset) Validate() error {
	var errs []error
	for _, obj := range d.Objects() {
		for _, rel := range obj.Type.Relationships() {
			for _, id := range obj.Relationships[rel.PublicName()] {
				target, ok := d.Lookup(rel.Target(), id)
				switch {
				case !ok:
					errs = append(errs, &Error{Type: obj.Type.PublicName(), ID: obj.ID, Field: rel.PublicName(),
						Message: fmt.Sprintf("refers to missing %s/%s", rel.Target().PublicName(), id)})
				case !target.Type.IsA(rel.Target()):
					errs = append(errs, &Error{Type: obj.Type.PublicName(), ID: obj.ID, Field: rel.PublicName(),
						Message: fmt.Sprintf("refers to %s/%s, want a %s", target.Type.PublicName(), id, rel.Target().PublicName())})
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Collection returns the objects stored with rt's root type, in insertion
// order. Objects of every type in the hierarchy are included.
func (d *Dataset) Collection(rt *resource.Type) []*Object {
	return d.collections[rt.Root()]
}

// Lookup finds an object by id in the collection of rt's root type.
func (d *Dataset) Lookup(rt *resource.Type, id string) (*Object, bool) {
	obj, ok := d.index[rt.Root()][id]
	return obj, ok
}

// Related returns the objects obj refers to through rel, in stored order.
// Dangling ids are skipped.
func (d *Dataset) Related(obj *Object, rel *resource.Relationship) []*Object {
	ids := obj.Relationships[rel.PublicName()]
	out := make([]*Object, 0, len(ids))
	for _, id := range ids {
		if target, ok := d.Lookup(rel.Target(), id); ok {
			out = append(out, target)
		}
	}
	return out
}

// Objects returns every object, collections in registry order.
func (d *Dataset) Objects() []*Object {
	var out []*Object
	for _, rt := range d.reg.Types() {
		if rt.Base() == nil {
			out = append(out, d.collections[rt]...)
		}
	}
	return out
}

// Len is the number of objects.
func (d *Dataset) Len() int {
	n := 0
	for _, c := range d.collections {
		n += len(c)
	}
	return n
}

// IDs returns the ids of objs in order.
func IDs(objs []*Object) []string {
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	return ids
}
