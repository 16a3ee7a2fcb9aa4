package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/apiquery/internal/document"
)

// Snapshot renders the documents of a result as indented canonical JSON.
// Golden files hold snapshots.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	requests := make([]any, len(result.Requests))
	for i, r := range result.Requests {
		requests[i] = map[string]any{
			"name":     r.Name,
			"resource": r.Resource,
			"query":    r.Query,
			"document": r.Document,
		}
	}

	canonical, err := document.Marshal(map[string]any{
		"scenario": scenarioName,
		"requests": requests,
	})
	if err != nil {
		return nil, err
	}

	// Indenting only adds whitespace, so key order and escaping survive.
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its documents against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the documents don't match the golden
// file. Failed expectations are reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Error(e)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's documents against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	// Compare with golden file using goldie
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)

	return nil
}
