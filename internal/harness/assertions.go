package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/plan"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Request  string // Scenario request name
	Type     string // Expectation kind for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with request and expectation kind
	fmt.Fprintf(&buf, "Assertion failed: %s: %s\n", e.Request, e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	return buf.String()
}

// checkRows verifies the rows of a successful request.
func checkRows(req Request, rows []*plan.Row) []error {
	if req.Expect == nil {
		return nil
	}
	var errs []error
	if len(req.Expect.Errors) > 0 {
		errs = append(errs, &AssertionError{
			Request:  req.Name,
			Type:     "errors",
			Expected: fmt.Sprintf("%d request errors", len(req.Expect.Errors)),
			Actual:   fmt.Sprintf("success with %d rows", len(rows)),
		})
		return errs
	}
	if req.Expect.IDs != nil {
		if got := rowIDs(rows); !slices.Equal(got, req.Expect.IDs) {
			errs = append(errs, &AssertionError{
				Request:  req.Name,
				Type:     "ids",
				Expected: formatIDs(req.Expect.IDs),
				Actual:   formatIDs(got),
			})
		}
	}
	for _, key := range sortedKeys(req.Expect.Included) {
		want := req.Expect.Included[key]
		id, rel, _ := splitIncludedKey(key)
		parent := findRow(rows, id)
		if parent == nil {
			errs = append(errs, &AssertionError{
				Request:  req.Name,
				Type:     "included " + key,
				Expected: formatIDs(want),
				Actual:   fmt.Sprintf("no row with id %q", id),
			})
			continue
		}
		included, ok := parent.Included[rel]
		if !ok {
			errs = append(errs, &AssertionError{
				Request:  req.Name,
				Type:     "included " + key,
				Expected: formatIDs(want),
				Actual:   "relationship not included",
			})
			continue
		}
		if got := rowIDs(included); !slices.Equal(got, want) {
			errs = append(errs, &AssertionError{
				Request:  req.Name,
				Type:     "included " + key,
				Expected: formatIDs(want),
				Actual:   formatIDs(got),
			})
		}
	}
	return errs
}

// checkErrors verifies the error objects of a rejected request.
func checkErrors(req Request, list *constraint.ErrorList) []error {
	if req.Expect == nil || len(req.Expect.Errors) == 0 {
		return []error{&AssertionError{
			Request:  req.Name,
			Type:     "success",
			Expected: "request succeeds",
			Actual:   list.Error(),
		}}
	}
	want := req.Expect.Errors
	if len(list.Errors) != len(want) {
		return []error{&AssertionError{
			Request:  req.Name,
			Type:     "errors",
			Expected: fmt.Sprintf("%d error objects", len(want)),
			Actual:   fmt.Sprintf("%d error objects: %s", len(list.Errors), list.Error()),
		}}
	}
	var errs []error
	for i, w := range want {
		if !matchError(list.Errors[i], w) {
			errs = append(errs, &AssertionError{
				Request:  req.Name,
				Type:     fmt.Sprintf("errors[%d]", i),
				Expected: formatExpectedError(w),
				Actual:   formatErrorObject(list.Errors[i]),
			})
		}
	}
	return errs
}

func matchError(e *constraint.ErrorObject, want ExpectedError) bool {
	if want.Title != "" && e.Title != want.Title {
		return false
	}
	if want.Detail != "" && !strings.Contains(e.Detail, want.Detail) {
		return false
	}
	if want.Parameter != "" && (e.Source == nil || e.Source.Parameter != want.Parameter) {
		return false
	}
	return true
}

// findRow searches rows and their included rows, depth first.
func findRow(rows []*plan.Row, id string) *plan.Row {
	for _, r := range rows {
		if r.ID == id {
			return r
		}
		for _, name := range sortedKeys(r.Included) {
			if found := findRow(r.Included[name], id); found != nil {
				return found
			}
		}
	}
	return nil
}

func rowIDs(rows []*plan.Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatIDs(ids []string) string {
	return "[" + strings.Join(ids, ", ") + "]"
}

func formatExpectedError(e ExpectedError) string {
	return fmt.Sprintf("parameter=%q title=%q detail contains %q", e.Parameter, e.Title, e.Detail)
}

func formatErrorObject(e *constraint.ErrorObject) string {
	param := ""
	if e.Source != nil {
		param = e.Source.Parameter
	}
	return fmt.Sprintf("parameter=%q title=%q detail=%q", param, e.Title, e.Detail)
}
