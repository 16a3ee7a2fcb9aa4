// Package harness provides conformance testing for query providers.
//
// A scenario names a schema, a dataset and a list of requests. The harness
// plans every request once and executes the plan with each provider: the
// in-memory source and an in-memory SQLite store. The providers must render
// the same result document, byte for byte, and the first provider's rows
// are checked against the request's expectation.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schema/blog.yaml
//	data: ../data/blog.yaml
//	functions: [sum, timeOffset]
//	options: { defaultPageSize: 2 }
//	now: "2024-06-01T12:00:00Z"
//	requests:
//	  - name: posts_with_comments
//	    resource: blogPosts
//	    query: "filter=has(comments)&include=comments"
//	    expect:
//	      ids: [p1, p2]
//	      included:
//	        p1.comments: [c1, c2]
//	  - name: bad_sort
//	    resource: blogs
//	    parameters: [filter]
//	    query: "sort=title"
//	    expect:
//	      errors:
//	        - parameter: sort
//	          detail: cannot be used at this endpoint
//
// Paths are relative to the scenario file. Unknown fields are rejected.
//
// # Determinism
//
// The clock reads the scenario's now, or testutil.FixedNow, and error ids
// come from a sequential generator, so the documents of a run are stable
// and can be compared against golden files (see RunWithGolden).
package harness
