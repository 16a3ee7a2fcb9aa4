package compile

import (
	"errors"
	"fmt"
)

// InvariantError reports an AST that should have been rejected by the
// parser. It is a defect, not a user error.
type InvariantError struct {
	Node    string
	Message string
	Err     error
}

func (e *InvariantError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("compile invariant violated: %s", e.Message)
	}
	return fmt.Sprintf("compile invariant violated at %s: %s", e.Node, e.Message)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// IsInvariantError reports whether err is or wraps an *InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

func invariantf(node fmt.Stringer, format string, args ...any) error {
	name := ""
	if node != nil {
		name = node.String()
	}
	return &InvariantError{Node: name, Message: fmt.Sprintf(format, args...)}
}
