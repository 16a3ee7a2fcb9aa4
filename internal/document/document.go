// Package document renders query results and request errors as JSON
// documents.
//
// Result documents nest included objects under their parent:
//
//	{"data": [{"type": "blogs", "id": "b1",
//	           "attributes": {"title": "Technology"},
//	           "relationships": {"posts": ["p1", "p2"]},
//	           "included": {"posts": [...]}}]}
//
// Error documents follow JSON:API: {"errors": [{"id", "status", "title",
// "detail", "source": {"parameter"}}]}.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/value"
)

// DomainPlan prefixes plan fingerprints. The version suffix allows the
// fingerprint format to change.
const DomainPlan = "apiquery/plan/v1"

// Data returns the result document of rows.
func Data(rows []*plan.Row) map[string]any {
	return map[string]any{"data": resources(rows)}
}

func resources(rows []*plan.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = Resource(r)
	}
	return out
}

// Resource returns the resource object of one row. Empty attribute,
// relationship and include maps are left out.
func Resource(r *plan.Row) map[string]any {
	obj := map[string]any{"type": r.Type, "id": r.ID}
	if len(r.Attributes) > 0 {
		attrs := make(map[string]any, len(r.Attributes))
		for name, v := range r.Attributes {
			attrs[name] = Value(v)
		}
		obj["attributes"] = attrs
	}
	if len(r.Relationships) > 0 {
		rels := make(map[string]any, len(r.Relationships))
		for name, ids := range r.Relationships {
			rels[name] = append([]string{}, ids...)
		}
		obj["relationships"] = rels
	}
	if len(r.Included) > 0 {
		inc := make(map[string]any, len(r.Included))
		for name, rows := range r.Included {
			inc[name] = resources(rows)
		}
		obj["included"] = inc
	}
	return obj
}

// Value converts v to its JSON form: numbers and booleans as JSON
// scalars, times and durations as canonical text, Null as null.
func Value(v value.Value) any {
	return value.Native(v)
}

// Errors returns the error document of a failed request.
func Errors(list *constraint.ErrorList) map[string]any {
	errs := make([]any, len(list.Errors))
	for i, e := range list.Errors {
		obj := map[string]any{
			"id":     e.ID,
			"status": e.Status,
			"title":  e.Title,
			"detail": e.Detail,
		}
		if e.Source != nil {
			obj["source"] = map[string]any{"parameter": e.Source.Parameter}
		}
		errs[i] = obj
	}
	return map[string]any{"errors": errs}
}

// Fingerprint is the content hash of a plan's text form.
// Format: hex(SHA256(DomainPlan + 0x00 + plan.Format(q))).
func Fingerprint(q *plan.Query) string {
	return FingerprintText(plan.Format(q))
}

// FingerprintText hashes text in the plan fingerprint domain.
func FingerprintText(text string) string {
	h := sha256.New()
	h.Write([]byte(DomainPlan))
	h.Write([]byte{0x00})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalData renders rows as a canonical result document.
func MarshalData(rows []*plan.Row) ([]byte, error) {
	b, err := Marshal(Data(rows))
	if err != nil {
		return nil, fmt.Errorf("marshal result document: %w", err)
	}
	return b, nil
}
