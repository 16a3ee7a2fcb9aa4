package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// timeLayouts are tried in order when converting text to a Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ConversionError reports that literal text could not be converted to the
// type required by its context.
type ConversionError struct {
	Raw    string
	Target Type
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("Failed to convert '%s' of type 'String' to type '%s'.", e.Raw, e.Target)
}

// Parse converts literal text into a value of the given type.
func Parse(raw string, t Type) (Value, error) {
	switch t {
	case TypeString:
		return NewString(raw), nil
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ConversionError{Raw: raw, Target: t}
		}
		return Int(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ConversionError{Raw: raw, Target: t}
		}
		return Float(f), nil
	case TypeBool:
		switch strings.ToLower(raw) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return nil, &ConversionError{Raw: raw, Target: t}
	case TypeTime:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return NewTime(ts), nil
			}
		}
		return nil, &ConversionError{Raw: raw, Target: t}
	case TypeDuration:
		d, err := ParseDuration(raw)
		if err != nil {
			return nil, &ConversionError{Raw: raw, Target: t}
		}
		return Duration(d), nil
	default:
		return nil, &ConversionError{Raw: raw, Target: t}
	}
}

// ParseDuration accepts Go duration syntax ("90m", "-1h30m") as well as the
// day and week units understood by str2duration ("2d", "1w3d").
func ParseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	neg := strings.HasPrefix(raw, "-")
	d, err := str2duration.ParseDuration(strings.TrimPrefix(raw, "-"))
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if neg {
		d = -d
	}
	return d, nil
}

// FromAny converts a decoded YAML or SQL column value into a value of the
// declared type. nil converts to Null.
func FromAny(raw any, t Type) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}
	switch v := raw.(type) {
	case Value:
		return v, nil
	case string:
		return Parse(v, t)
	case []byte:
		return Parse(string(v), t)
	case time.Time:
		if t != TypeTime {
			return nil, fmt.Errorf("cannot use time value as %s", t)
		}
		return NewTime(v), nil
	case bool:
		if t != TypeBool {
			return nil, fmt.Errorf("cannot use bool value as %s", t)
		}
		return Bool(v), nil
	case int:
		return fromInt(int64(v), t)
	case int64:
		return fromInt(v, t)
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of range", v)
		}
		return fromInt(int64(v), t)
	case float64:
		switch t {
		case TypeFloat:
			return Float(v), nil
		case TypeInt:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("cannot use %v as %s", v, t)
			}
			return Int(int64(v)), nil
		}
		return nil, fmt.Errorf("cannot use number %v as %s", v, t)
	default:
		return nil, fmt.Errorf("unsupported value %T", raw)
	}
}

func fromInt(n int64, t Type) (Value, error) {
	switch t {
	case TypeInt:
		return Int(n), nil
	case TypeFloat:
		return Float(float64(n)), nil
	case TypeBool:
		return Bool(n != 0), nil
	case TypeDuration:
		return Duration(time.Duration(n)), nil
	case TypeString:
		return NewString(strconv.FormatInt(n, 10)), nil
	}
	return nil, fmt.Errorf("cannot use integer %d as %s", n, t)
}
