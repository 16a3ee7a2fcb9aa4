package resource

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// SchemaError reports an invalid registry definition.
type SchemaError struct {
	Type    string
	Field   string
	Message string
	// Pos is set when the definition came from a CUE file.
	Pos token.Pos
}

func (e *SchemaError) Error() string {
	loc := e.Type
	switch {
	case e.Field != "" && e.Type != "":
		loc = e.Type + "." + e.Field
	case e.Field != "":
		loc = e.Field
	}
	if e.Pos.IsValid() {
		if loc == "" {
			return fmt.Sprintf("%s:%d:%d: %s",
				e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
		}
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), loc, e.Message)
	}
	if loc == "" {
		return e.Message
	}
	return fmt.Sprintf("resource %s: %s", loc, e.Message)
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
