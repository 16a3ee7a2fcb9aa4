package value

import (
	"database/sql/driver"
	"strconv"
	"time"
)

// SQLTimeLayout is the fixed-width text form used to store times in SQLite.
// Lexical order of the stored text equals chronological order.
const SQLTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Format returns the canonical text of a value. For every non-null value v,
// Parse(Format(v), v.Type()) yields a value equal to v.
func Format(v Value) string {
	switch x := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(x)
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(x))
	case Time:
		return x.t.Format(time.RFC3339Nano)
	case Duration:
		return time.Duration(x).String()
	default:
		panic("value.Format: unknown value type")
	}
}

// ToSQL converts a value into an argument accepted by database/sql drivers.
// Times become fixed-width UTC text, durations become nanosecond integers.
func ToSQL(v Value) driver.Value {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Bool:
		return bool(x)
	case Time:
		return x.t.Format(SQLTimeLayout)
	case Duration:
		return int64(x)
	default:
		panic("value.ToSQL: unknown value type")
	}
}

// Native returns the Go value underlying v, for JSON and YAML output.
func Native(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Bool:
		return bool(x)
	case Time:
		return x.t.Format(time.RFC3339Nano)
	case Duration:
		return time.Duration(x).String()
	default:
		return nil
	}
}
