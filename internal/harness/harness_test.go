package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestRun_Testdata(t *testing.T) {
	for _, name := range []string{"sparse_documents", "functions", "paging", "errors"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadTestdata(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Requests, len(loadTestdata(t, name).Requests))
		})
	}
}

func TestRun_RecordsDocuments(t *testing.T) {
	result, err := Run(context.Background(), loadTestdata(t, "paging"))
	require.NoError(t, err)

	first := result.Requests[0]
	assert.Equal(t, "default_size", first.Name)
	assert.Equal(t, "comments", first.Resource)
	require.Contains(t, first.Document, "data")
	assert.Len(t, first.Document["data"], 2)

	last := result.Requests[len(result.Requests)-1]
	assert.Equal(t, "size_above_maximum", last.Name)
	require.Contains(t, last.Document, "errors")
	assert.NotContains(t, last.Document, "data")
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := loadTestdata(t, "sparse_documents")
	scenario.Requests = []Request{
		{
			Name:     "wrong_ids",
			Resource: "labels",
			Query:    "sort=name",
			Expect:   &Expect{IDs: []string{"l2", "l1"}},
		},
		{
			Name:     "unexpected_success",
			Resource: "labels",
			Expect:   &Expect{Errors: []ExpectedError{{Parameter: "sort"}}},
		},
		{
			Name:     "unexpected_failure",
			Resource: "labels",
			Query:    "sort=nope",
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "wrong_ids: ids")
	assert.Contains(t, result.Errors[0], "Expected: [l2, l1]")
	assert.Contains(t, result.Errors[0], "Actual: [l1, l2]")
	assert.Contains(t, result.Errors[1], "unexpected_success: errors")
	assert.Contains(t, result.Errors[2], "unexpected_failure: success")
}

func TestRun_UnknownResource(t *testing.T) {
	scenario := loadTestdata(t, "sparse_documents")
	scenario.Requests = []Request{{Name: "missing", Resource: "nope"}}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `request missing: unknown resource type "nope"`)
}

func TestRun_UnknownFunction(t *testing.T) {
	scenario := loadTestdata(t, "functions")
	scenario.Functions = []string{"nope"}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown function "nope"`)
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario := loadTestdata(t, "errors")

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
