package value

import (
	"cmp"
	"strings"
)

// Compare orders two values. Null sorts before every other value. Int and
// Float compare numerically with each other. The second result is false when
// the values have incomparable types.
func Compare(a, b Value) (int, bool) {
	aNull, bNull := IsNull(a), IsNull(b)
	switch {
	case aNull && bNull:
		return 0, true
	case aNull:
		return -1, true
	case bNull:
		return 1, true
	}

	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(x, y), true
		case Float:
			return cmp.Compare(float64(x), float64(y)), true
		}
	case Float:
		switch y := b.(type) {
		case Float:
			return cmp.Compare(x, y), true
		case Int:
			return cmp.Compare(float64(x), float64(y)), true
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			return compareBool(bool(x), bool(y)), true
		}
	case Time:
		if y, ok := b.(Time); ok {
			return x.t.Compare(y.t), true
		}
	case Duration:
		if y, ok := b.(Duration); ok {
			return cmp.Compare(x, y), true
		}
	}
	return 0, false
}

// Equal reports whether two values are equal under Compare. Values of
// incomparable types are never equal.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
