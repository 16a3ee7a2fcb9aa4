package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/funcs"
	"github.com/roach88/apiquery/internal/memsource"
	"github.com/roach88/apiquery/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestEngine(opts ...Option) *Engine {
	base := []Option{
		WithIDGenerator(testutil.NewSequentialIDGenerator()),
		WithLogger(discard),
	}
	return New(testutil.BlogRegistry(), append(base, opts...)...)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		wantErr string
	}{
		{name: "blogs"},
		{name: "blogPosts"},
		{name: "nope", wantErr: `unknown resource type "nope"`},
		{name: "Blogs", wantErr: `unknown resource type "Blogs"`},
	}

	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := e.Endpoint(tt.name)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, ep.Name)
			assert.Equal(t, tt.name, ep.Resource.PublicName())
			assert.Nil(t, ep.Parameters)
		})
	}
}

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		scopes   int
		rejected []string
	}{
		{name: "empty", query: "", scopes: 1},
		{name: "leading question mark", query: "?filter=equals(title,'x')", scopes: 1},
		{name: "scoped filter", query: "filter[posts]=equals(caption,'x')", scopes: 2},
		{name: "bad filter", query: "filter=equals(nope,'x')", rejected: []string{constraint.TitleFilter}},
		{
			name:     "every failure reported",
			query:    "sort=nope&page[size]=-1&unknown=1",
			rejected: []string{constraint.TitleSort, constraint.TitlePagination, constraint.TitleUnknown},
		},
	}

	e := newTestEngine()
	ep, err := e.Endpoint("blogs")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := e.Read(ep, tt.query)
			if tt.rejected != nil {
				list, ok := constraint.AsErrorList(err)
				require.True(t, ok, "expected *constraint.ErrorList, got %v", err)
				titles := make([]string, len(list.Errors))
				for i, obj := range list.Errors {
					titles[i] = obj.Title
				}
				assert.Equal(t, tt.rejected, titles)
				return
			}
			require.NoError(t, err)
			assert.Len(t, set.Scopes, tt.scopes)
		})
	}
}

func TestReadMalformedEscape(t *testing.T) {
	e := newTestEngine()
	ep, err := e.Endpoint("blogs")
	require.NoError(t, err)

	_, err = e.Read(ep, "filter=%zz")
	require.Error(t, err)
	_, ok := constraint.AsErrorList(err)
	assert.False(t, ok)
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		query  string
		filter string
		skip   int
		take   int
	}{
		{
			name: "default page size",
			take: 10,
		},
		{
			name:  "options",
			opts:  []Option{WithOptions(constraint.Options{DefaultPageSize: 3})},
			query: "page[number]=2",
			skip:  3,
			take:  3,
		},
		{
			name:   "clock",
			opts:   []Option{WithFunctions(funcs.TimeOffsetFunc), WithClock(testutil.NewFixedClock())},
			query:  "filter=greaterThan(createdAt,timeOffset('-24h'))",
			filter: "p0 => (p0.createdAt > 2024-05-31T12:00:00Z)",
			take:   10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.opts...)
			ep, err := e.Endpoint("blogs")
			require.NoError(t, err)

			q, err := e.Plan(ep, tt.query)
			require.NoError(t, err)
			assert.Equal(t, "blogs", q.Resource)
			assert.Equal(t, tt.skip, q.Skip)
			assert.Equal(t, tt.take, q.Take)
			if tt.filter != "" {
				require.NotNil(t, q.Filter)
				assert.Equal(t, tt.filter, q.Filter.String())
			}
		})
	}
}

func TestPlanFollowsClock(t *testing.T) {
	clock := testutil.NewFixedClock()
	e := newTestEngine(WithFunctions(funcs.TimeOffsetFunc), WithClock(clock))
	ep, err := e.Endpoint("blogs")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	q, err := e.Plan(ep, "filter=lessThan(createdAt,timeOffset('0s'))")
	require.NoError(t, err)
	assert.Equal(t, "p0 => (p0.createdAt < 2024-06-03T12:00:00Z)", q.Filter.String())
}

func TestPlanRejectedIDs(t *testing.T) {
	e := newTestEngine()
	ep, err := e.Endpoint("blogs")
	require.NoError(t, err)

	_, err = e.Plan(ep, "filter=nope()&sort=nope")
	list, ok := constraint.AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 2)
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", list.Errors[0].ID)
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", list.Errors[1].ID)
}

func TestPlanWithoutFunctionRejectsIt(t *testing.T) {
	e := newTestEngine()
	ep, err := e.Endpoint("blogs")
	require.NoError(t, err)

	_, err = e.Plan(ep, "filter=greaterThan(createdAt,timeOffset('-24h'))")
	list, ok := constraint.AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 1)
	assert.Equal(t, constraint.TitleFilter, list.Errors[0].Title)
}

func TestRun(t *testing.T) {
	e := newTestEngine()
	src := memsource.New(testutil.BlogData(), memsource.WithLogger(discard))
	ep, err := e.Endpoint("blogs")
	require.NoError(t, err)

	rows, err := e.Run(context.Background(), src, ep, "page[size]=2")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = e.Run(context.Background(), src, ep, "filter=nope()")
	_, ok := constraint.AsErrorList(err)
	assert.True(t, ok)
}

func TestAccessors(t *testing.T) {
	opts := constraint.Options{DefaultPageSize: 7, MaxPageSize: 20}
	e := newTestEngine(WithOptions(opts))

	assert.Equal(t, opts, e.Options())
	assert.NotNil(t, e.Parser())
	assert.NotNil(t, e.Compiler())
	_, ok := e.Registry().Type("blogs")
	assert.True(t, ok)
}
