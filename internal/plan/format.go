package plan

import (
	"fmt"
	"slices"
	"strings"
)

// Format renders q as indented text for diagnostics and snapshots.
//
//	query blogs
//	  filter: p0 => (p0.title == 'a')
//	  order: p0 => p0.createdAt desc
//	  page: skip 0, take 10
//	  attributes: id, title
//	  relationships: posts
//	  include posts:
//	    query blogPosts
//	      ...
func Format(q *Query) string {
	var sb strings.Builder
	format(&sb, q, "")
	return sb.String()
}

func format(sb *strings.Builder, q *Query, indent string) {
	fmt.Fprintf(sb, "%squery %s", indent, q.Resource)
	if !slices.Equal(q.Types, []string{q.Resource}) {
		fmt.Fprintf(sb, " (types: %s)", strings.Join(q.Types, ", "))
	}
	sb.WriteByte('\n')

	indent += "  "
	if q.Filter != nil {
		fmt.Fprintf(sb, "%sfilter: %s\n", indent, q.Filter)
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Key.String() + " " + dir
		}
		fmt.Fprintf(sb, "%sorder: %s\n", indent, strings.Join(parts, ", "))
	}
	if q.Skip > 0 || q.Take > 0 {
		take := "all"
		if q.Take > 0 {
			take = fmt.Sprint(q.Take)
		}
		fmt.Fprintf(sb, "%spage: skip %d, take %s\n", indent, q.Skip, take)
	}
	fmt.Fprintf(sb, "%sattributes: %s\n", indent, list(q.Projection.Attributes))
	fmt.Fprintf(sb, "%srelationships: %s\n", indent, list(q.Projection.Relationships))
	for _, inc := range q.Includes {
		fmt.Fprintf(sb, "%sinclude %s:\n", indent, inc.Relationship)
		format(sb, inc.Query, indent+"  ")
	}
}

func list(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
