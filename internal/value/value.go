package value

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Type is the declared type of an attribute, literal or expression result.
type Type int

const (
	// TypeUnknown is the type of expressions that do not produce a scalar,
	// such as relationship chains.
	TypeUnknown Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeDuration
)

var typeNames = map[Type]string{
	TypeUnknown:  "Unknown",
	TypeString:   "String",
	TypeInt:      "Int",
	TypeFloat:    "Float",
	TypeBool:     "Bool",
	TypeTime:     "Time",
	TypeDuration: "Duration",
}

// String returns the display name used in error messages, e.g. "String".
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsNumeric reports whether values of the type support arithmetic
// aggregation (sum) and cross-type numeric comparison.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

// ParseType converts a schema type keyword ("string", "int", ...) into a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text":
		return TypeString, nil
	case "int", "integer", "int64":
		return TypeInt, nil
	case "float", "number", "float64", "double":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "time", "datetime", "timestamp":
		return TypeTime, nil
	case "duration", "timespan":
		return TypeDuration, nil
	default:
		return TypeUnknown, fmt.Errorf("unknown value type %q", s)
	}
}

// Comparable reports whether values of the two types may appear on both sides
// of a comparison.
func Comparable(a, b Type) bool {
	if a == b {
		return a != TypeUnknown
	}
	return a.IsNumeric() && b.IsNumeric()
}

// Value is a sealed interface representing a typed scalar.
type Value interface {
	value() // Sealed - only the types in this package implement it
	Type() Type
}

// Null is the absence of a value. Its Type is TypeUnknown; a null literal
// takes the type of the operand it is compared against.
type Null struct{}

func (Null) value()     {}
func (Null) Type() Type { return TypeUnknown }

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text value. Construct with NewString to get NFC normalisation.
type String string

func (String) value()     {}
func (String) Type() Type { return TypeString }

// Int is a 64-bit integer value.
type Int int64

func (Int) value()     {}
func (Int) Type() Type { return TypeInt }

// Float is a 64-bit floating point value.
type Float float64

func (Float) value()     {}
func (Float) Type() Type { return TypeFloat }

// Bool is a boolean value.
type Bool bool

func (Bool) value()     {}
func (Bool) Type() Type { return TypeBool }

// Time is an instant, always stored in UTC.
type Time struct {
	t time.Time
}

func (Time) value()     {}
func (Time) Type() Type { return TypeTime }

// Time returns the instant as a time.Time in UTC.
func (v Time) Time() time.Time { return v.t }

// Equal reports whether both values denote the same instant.
func (v Time) Equal(other Time) bool { return v.t.Equal(other.t) }

// MarshalJSON encodes the instant as an RFC 3339 string.
func (v Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.t.Format(time.RFC3339Nano))
}

// Duration is an elapsed time span.
type Duration time.Duration

func (Duration) value()     {}
func (Duration) Type() Type { return TypeDuration }

// MarshalJSON encodes the duration in time.Duration text form ("1h30m0s").
func (v Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(v).String())
}

// NewString creates an NFC-normalised String.
func NewString(s string) String {
	return String(norm.NFC.String(s))
}

// NewTime creates a Time value in UTC.
func NewTime(t time.Time) Time {
	return Time{t: t.UTC()}
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}
