package parse

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Error is a failure while parsing one parameter value: lexical, grammar,
// schema, capability or extension-specific. Position is the 0-based
// character offset of the offending token.
type Error struct {
	Message  string
	Position int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (at position %d)", e.Message, e.Position)
}

// Detail renders the message with the input text and a caret at the
// failure position, e.g.
//
//	Field 'some' does not exist on resource type 'blogs'. Failed at position 13: isUpperCase(^some)
func (e *Error) Detail(input string) string {
	pos := min(max(e.Position, 0), utf8.RuneCountInString(input))
	b := byteOffset(input, pos)
	return fmt.Sprintf("%s Failed at position %d: %s^%s", e.Message, pos+1, input[:b], input[b:])
}

// byteOffset returns the byte index of the character at offset pos.
func byteOffset(input string, pos int) int {
	for i := range input {
		if pos == 0 {
			return i
		}
		pos--
	}
	return len(input)
}

// IsError reports whether err is or wraps a *Error.
func IsError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// AsError extracts the *Error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}
