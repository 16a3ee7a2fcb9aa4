package constraint

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Error titles.
const (
	TitleFilter      = "The specified filter is invalid."
	TitleSort        = "The specified sort is invalid."
	TitleInclude     = "The specified include is invalid."
	TitleFieldset    = "The specified fieldset is invalid."
	TitlePagination  = "The specified pagination is invalid."
	TitleUnknown     = "Unknown query string parameter."
	TitleNotAllowed  = "Usage of one or more query string parameters is not allowed at the requested endpoint."
	statusBadRequest = "400"
)

// ErrorSource points at the offending query string parameter.
type ErrorSource struct {
	Parameter string `json:"parameter"`
}

// ErrorObject is one JSON:API error object.
type ErrorObject struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Title  string       `json:"title"`
	Detail string       `json:"detail"`
	Source *ErrorSource `json:"source,omitempty"`

	// Cause is the underlying parse error, if any.
	Cause error `json:"-"`
}

func (e *ErrorObject) Error() string {
	var sb strings.Builder
	if e.Source != nil {
		sb.WriteString(e.Source.Parameter)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Title)
	if e.Detail != "" {
		sb.WriteByte(' ')
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *ErrorObject) Unwrap() error { return e.Cause }

// ErrorList holds every error found in one request.
type ErrorList struct {
	Errors []*ErrorObject `json:"errors"`
}

func (l *ErrorList) Error() string {
	msgs := make([]string, len(l.Errors))
	for i, e := range l.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the individual error objects to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	errs := make([]error, len(l.Errors))
	for i, e := range l.Errors {
		errs[i] = e
	}
	return errs
}

// AsErrorList extracts the *ErrorList from err.
func AsErrorList(err error) (*ErrorList, bool) {
	var l *ErrorList
	ok := errors.As(err, &l)
	return l, ok
}

// IDGenerator produces error object ids.
type IDGenerator interface {
	Generate() string
}

// uuidGenerator generates UUIDv7 ids.
type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
