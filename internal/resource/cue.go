package resource

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// ParseCUE compiles CUE source and extracts the registry definition from
// its top-level "resources" struct:
//
//	resources: blogs: {
//		attributes: title: {type: "string"}
//		relationships: posts: {kind: "toMany", target: "blogPosts"}
//	}
//
// Field order within the CUE structs determines declaration order.
func ParseCUE(src []byte, filename string) (*Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	resources := v.LookupPath(cue.ParsePath("resources"))
	if !resources.Exists() {
		return nil, &SchemaError{Field: "resources", Message: "resources is required", Pos: v.Pos()}
	}

	iter, err := resources.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}
	for iter.Next() {
		td, err := parseCUEType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		def.Resources = append(def.Resources, td)
	}
	return def, nil
}

func parseCUEType(name string, v cue.Value) (TypeDef, error) {
	td := TypeDef{Name: name}

	var err error
	if td.Base, err = optionalString(v, "base"); err != nil {
		return td, err
	}

	if attrs := v.LookupPath(cue.ParsePath("attributes")); attrs.Exists() {
		iter, err := attrs.Fields()
		if err != nil {
			return td, formatCUEError(err)
		}
		for iter.Next() {
			ad := AttributeDef{Name: iter.Label()}
			av := iter.Value()

			typeVal := av.LookupPath(cue.ParsePath("type"))
			if !typeVal.Exists() {
				return td, &SchemaError{Type: name, Field: ad.Name, Message: "type is required", Pos: av.Pos()}
			}
			if ad.Type, err = typeVal.String(); err != nil {
				return td, formatCUEError(err)
			}
			if nv := av.LookupPath(cue.ParsePath("nullable")); nv.Exists() {
				if ad.Nullable, err = nv.Bool(); err != nil {
					return td, formatCUEError(err)
				}
			}
			if ad.Capabilities, err = optionalStrings(av, "capabilities"); err != nil {
				return td, err
			}
			td.Attributes = append(td.Attributes, ad)
		}
	}

	if rels := v.LookupPath(cue.ParsePath("relationships")); rels.Exists() {
		iter, err := rels.Fields()
		if err != nil {
			return td, formatCUEError(err)
		}
		for iter.Next() {
			rd := RelationshipDef{Name: iter.Label()}
			rv := iter.Value()

			if rd.Kind, err = optionalString(rv, "kind"); err != nil {
				return td, err
			}
			if rd.Target, err = optionalString(rv, "target"); err != nil {
				return td, err
			}
			if rd.Kind == "" || rd.Target == "" {
				return td, &SchemaError{Type: name, Field: rd.Name, Message: "kind and target are required", Pos: rv.Pos()}
			}
			if rd.Capabilities, err = optionalStrings(rv, "capabilities"); err != nil {
				return td, err
			}
			td.Relationships = append(td.Relationships, rd)
		}
	}

	return td, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalStrings returns nil when the list is absent and an empty non-nil
// slice when it is present but empty.
func optionalStrings(v cue.Value, path string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	se := &SchemaError{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
