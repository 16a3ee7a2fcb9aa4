package constraint

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/parse"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/testutil"
)

func newTestReader(opts ...ReaderOption) (*Reader, *resource.Registry) {
	reg := testutil.BlogRegistry()
	base := []ReaderOption{
		WithIDGenerator(testutil.NewSequentialIDGenerator()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewReader(parse.New(reg), append(base, opts...)...), reg
}

func blogsEndpoint(reg *resource.Registry, params ...string) Endpoint {
	return Endpoint{Name: "blogs", Resource: reg.MustType("blogs"), Parameters: params}
}

func fieldNames(fields []resource.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.PublicName()
	}
	return names
}

func TestReadGroupsFiltersByScope(t *testing.T) {
	r, reg := newTestReader()

	set, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "filter", Value: "equals(id,'1')"},
		{Name: "filter[posts]", Value: "equals(caption,'x')"},
	})
	require.NoError(t, err)

	require.Len(t, set.Scopes, 2)
	assert.Nil(t, set.Scopes[0].Path)
	assert.Equal(t, "equals(id,'1')", set.Scopes[0].Filter.String())
	assert.Equal(t, "posts", set.Scopes[1].Name())
	assert.Equal(t, "equals(caption,'x')", set.Scopes[1].Filter.String())
	assert.Equal(t, reg.MustType("blogPosts"), set.Scopes[1].Target(set.Resource))
}

func TestReadCombinesFiltersInDeclarationOrder(t *testing.T) {
	r, reg := newTestReader()

	set, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "filter", Value: "equals(title,'a')"},
		{Name: "filter[posts]", Value: "has(comments)"},
		{Name: "filter", Value: "has(posts)"},
	})
	require.NoError(t, err)

	logical, ok := set.Primary().Filter.(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, ast.And, logical.Operator)
	assert.Equal(t, "and(equals(title,'a'),has(posts))", logical.String())

	posts, ok := set.Scope("posts")
	require.True(t, ok)
	assert.Equal(t, "has(comments)", posts.Filter.String())
}

func TestReadEndpointCapabilityRejection(t *testing.T) {
	tests := []struct {
		name  string
		param Param
	}{
		{"valid value", Param{Name: "sort", Value: "title"}},
		{"invalid value", Param{Name: "sort", Value: "%%%"}},
		{"scoped", Param{Name: "sort[posts]", Value: "caption"}},
		{"page", Param{Name: "page[number]", Value: "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := newTestReader()
			_, err := r.Read(blogsEndpoint(reg, "filter", "page[size]"), []Param{tt.param})

			list, ok := AsErrorList(err)
			require.True(t, ok)
			require.Len(t, list.Errors, 1)
			obj := list.Errors[0]
			assert.Equal(t, TitleNotAllowed, obj.Title)
			assert.Equal(t, "Query string parameter '"+tt.param.Name+"' cannot be used at this endpoint.", obj.Detail)
			assert.Equal(t, tt.param.Name, obj.Source.Parameter)
			assert.Equal(t, "400", obj.Status)
		})
	}
}

func TestReadAllowsExactParameterName(t *testing.T) {
	r, reg := newTestReader()

	set, err := r.Read(blogsEndpoint(reg, "page[size]"), []Param{{Name: "page[size]", Value: "3"}})
	require.NoError(t, err)
	assert.Equal(t, &ast.Pagination{Number: 1, Size: 3}, set.Primary().Page)
}

func TestReadParseErrorDetail(t *testing.T) {
	r, reg := newTestReader()

	_, err := r.Read(blogsEndpoint(reg), []Param{{Name: "filter", Value: "equals(titl,'x')"}})

	list, ok := AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 1)
	obj := list.Errors[0]
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", obj.ID)
	assert.Equal(t, TitleFilter, obj.Title)
	assert.Equal(t, "Field 'titl' does not exist on resource type 'blogs'. Failed at position 8: equals(^titl,'x')", obj.Detail)
	assert.Equal(t, "filter", obj.Source.Parameter)
	assert.True(t, parse.IsError(err))
}

func TestReadCollectsErrorsAcrossParameters(t *testing.T) {
	r, reg := newTestReader()

	_, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "filter", Value: "equals(title,'a')"},
		{Name: "sort", Value: "-"},
		{Name: "include", Value: "owner"},
		{Name: "fields[nope]", Value: "title"},
		{Name: "page[size]", Value: "-1"},
	})

	list, ok := AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 4)

	assert.Equal(t, TitleSort, list.Errors[0].Title)
	assert.Equal(t, "Count function or field name expected. Failed at position 2: -^", list.Errors[0].Detail)
	assert.Equal(t, TitleInclude, list.Errors[1].Title)
	assert.Equal(t, "Including the relationship 'owner' on 'blogs' is not allowed. Failed at position 1: ^owner", list.Errors[1].Detail)
	assert.Equal(t, TitleFieldset, list.Errors[2].Title)
	assert.Equal(t, "Resource type 'nope' does not exist. Failed at position 1: ^nope", list.Errors[2].Detail)
	assert.Equal(t, TitlePagination, list.Errors[3].Title)
	assert.Equal(t, "Page size cannot be negative. Failed at position 1: ^-1", list.Errors[3].Detail)

	ids := make(map[string]bool)
	for _, e := range list.Errors {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 4)
}

func TestReadUnknownParameters(t *testing.T) {
	params := []Param{
		{Name: "foo", Value: "bar"},
		{Name: "include[posts]", Value: "comments"},
		{Name: "page[offset]", Value: "1"},
		{Name: "fields", Value: "title"},
		{Name: "filter[posts", Value: "has(comments)"},
	}

	t.Run("rejected by default", func(t *testing.T) {
		r, reg := newTestReader()
		_, err := r.Read(blogsEndpoint(reg), params)

		list, ok := AsErrorList(err)
		require.True(t, ok)
		require.Len(t, list.Errors, len(params))
		for i, obj := range list.Errors {
			assert.Equal(t, TitleUnknown, obj.Title)
			assert.Equal(t, "Query string parameter '"+params[i].Name+"' is unknown.", obj.Detail)
		}
	})

	t.Run("ignored when allowed", func(t *testing.T) {
		opts := DefaultOptions()
		opts.AllowUnknownParameters = true
		r, reg := newTestReader(WithOptions(opts))

		set, err := r.Read(blogsEndpoint(reg), params)
		require.NoError(t, err)
		assert.Len(t, set.Scopes, 1)
	})
}

func TestReadScopeErrors(t *testing.T) {
	r, reg := newTestReader()

	_, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "filter[nope]", Value: "has(comments)"},
		{Name: "sort[owner]", Value: "userName"},
	})

	list, ok := AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 2)
	assert.Equal(t, TitleFilter, list.Errors[0].Title)
	assert.Equal(t, "Field 'nope' does not exist on resource type 'blogs'. Failed at position 1: ^nope", list.Errors[0].Detail)
	assert.Equal(t, TitleSort, list.Errors[1].Title)
	assert.Contains(t, list.Errors[1].Detail, "Failed at position")
}

func TestReadFilterScopeRequiresFilterable(t *testing.T) {
	defs := testutil.BlogDefinition()
	defs[1].Relationships[0].Capabilities = []string{"view", "include"} // blogs.posts
	reg, err := resource.NewGraph().Add(defs...).Freeze()
	require.NoError(t, err)
	r := NewReader(parse.New(reg),
		WithIDGenerator(testutil.NewSequentialIDGenerator()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	tests := []struct {
		name   string
		param  Param
		detail string
	}{
		{
			name:   "filter",
			param:  Param{Name: "filter[posts]", Value: "equals(caption,'x')"},
			detail: "Filtering on relationship 'posts' is not allowed. Failed at position 1: ^posts",
		},
		{
			name:   "nested filter",
			param:  Param{Name: "filter[posts.comments]", Value: "equals(text,'x')"},
			detail: "Filtering on relationship 'posts' is not allowed. Failed at position 1: ^posts.comments",
		},
		{name: "sort", param: Param{Name: "sort[posts]", Value: "caption"}},
		{name: "page", param: Param{Name: "page[size]", Value: "posts:5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Read(blogsEndpoint(reg), []Param{tt.param})
			if tt.detail == "" {
				assert.NoError(t, err)
				return
			}
			list, ok := AsErrorList(err)
			require.True(t, ok)
			require.Len(t, list.Errors, 1)
			assert.Equal(t, TitleFilter, list.Errors[0].Title)
			assert.Equal(t, tt.param.Name, list.Errors[0].Source.Parameter)
			assert.Equal(t, tt.detail, list.Errors[0].Detail)
		})
	}
}

func TestReadDuplicateSort(t *testing.T) {
	tests := []struct {
		name   string
		params []Param
		detail string
	}{
		{
			name:   "primary",
			params: []Param{{Name: "sort", Value: "title"}, {Name: "sort", Value: "-createdAt"}},
			detail: "Multiple 'sort' parameters for scope 'blogs'.",
		},
		{
			name:   "nested",
			params: []Param{{Name: "sort[posts]", Value: "caption"}, {Name: "sort[posts]", Value: "caption"}},
			detail: "Multiple 'sort' parameters for scope 'posts'.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := newTestReader()
			_, err := r.Read(blogsEndpoint(reg), tt.params)

			list, ok := AsErrorList(err)
			require.True(t, ok)
			require.Len(t, list.Errors, 1)
			assert.Equal(t, TitleSort, list.Errors[0].Title)
			assert.Equal(t, tt.detail, list.Errors[0].Detail)
		})
	}
}

func TestReadPagination(t *testing.T) {
	tests := []struct {
		name    string
		params  []Param
		primary *ast.Pagination
		posts   *ast.Pagination
	}{
		{
			name:    "defaults",
			primary: &ast.Pagination{Number: 1, Size: 10},
		},
		{
			name:    "number only",
			params:  []Param{{Name: "page[number]", Value: "3"}},
			primary: &ast.Pagination{Number: 3, Size: 10},
		},
		{
			name:    "scoped size",
			params:  []Param{{Name: "page[size]", Value: "posts:5,20"}},
			primary: &ast.Pagination{Number: 1, Size: 20},
			posts:   &ast.Pagination{Number: 1, Size: 5},
		},
		{
			name:    "scoped number without size is unlimited",
			params:  []Param{{Name: "page[number]", Value: "posts:2"}},
			primary: &ast.Pagination{Number: 1, Size: 10},
			posts:   &ast.Pagination{Number: 2, Size: 0},
		},
		{
			name:    "explicit zero size",
			params:  []Param{{Name: "page[size]", Value: "0"}},
			primary: &ast.Pagination{Number: 1, Size: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := newTestReader()
			set, err := r.Read(blogsEndpoint(reg), tt.params)
			require.NoError(t, err)

			assert.Equal(t, tt.primary, set.Primary().Page)
			posts, ok := set.Scope("posts")
			if tt.posts == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.posts, posts.Page)
		})
	}
}

func TestReadPaginationWithoutDefaultSize(t *testing.T) {
	r, reg := newTestReader(WithOptions(Options{}))

	set, err := r.Read(blogsEndpoint(reg), nil)
	require.NoError(t, err)
	assert.Nil(t, set.Primary().Page)
}

func TestReadPaginationErrors(t *testing.T) {
	tests := []struct {
		name   string
		param  Param
		detail string
	}{
		{
			name:   "duplicate scope in one value",
			param:  Param{Name: "page[size]", Value: "posts:5,posts:6"},
			detail: "Multiple 'page[size]' parameters for scope 'posts'.",
		},
		{
			name:   "above maximum",
			param:  Param{Name: "page[number]", Value: "11"},
			detail: "Page number cannot be higher than 10. Failed at position 1: ^11",
		},
		{
			name:   "size above maximum",
			param:  Param{Name: "page[size]", Value: "posts:51"},
			detail: "Page size cannot be higher than 50. Failed at position 7: posts:^51",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := newTestReader(WithOptions(Options{DefaultPageSize: 10, MaxPageSize: 50, MaxPageNumber: 10}))
			_, err := r.Read(blogsEndpoint(reg), []Param{tt.param})

			list, ok := AsErrorList(err)
			require.True(t, ok)
			require.Len(t, list.Errors, 1)
			assert.Equal(t, TitlePagination, list.Errors[0].Title)
			assert.Equal(t, tt.detail, list.Errors[0].Detail)
		})
	}
}

func TestReadPaginationOffsetOverflow(t *testing.T) {
	maxInt := strconv.Itoa(math.MaxInt)

	tests := []struct {
		name   string
		params []Param
		detail string
	}{
		{
			name: "primary",
			params: []Param{
				{Name: "page[number]", Value: maxInt},
				{Name: "page[size]", Value: "2"},
			},
			detail: fmt.Sprintf("Page number cannot be higher than %d for scope 'blogs' with page size 2.", math.MaxInt/2+1),
		},
		{
			name:   "primary with default size",
			params: []Param{{Name: "page[number]", Value: maxInt}},
			detail: fmt.Sprintf("Page number cannot be higher than %d for scope 'blogs' with page size 10.", math.MaxInt/10+1),
		},
		{
			name: "scoped",
			params: []Param{
				{Name: "page[number]", Value: "posts:" + maxInt},
				{Name: "page[size]", Value: "posts:3"},
			},
			detail: fmt.Sprintf("Page number cannot be higher than %d for scope 'posts' with page size 3.", math.MaxInt/3+1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := newTestReader()
			_, err := r.Read(blogsEndpoint(reg), tt.params)

			list, ok := AsErrorList(err)
			require.True(t, ok)
			require.Len(t, list.Errors, 1)
			assert.Equal(t, TitlePagination, list.Errors[0].Title)
			assert.Equal(t, "page[number]", list.Errors[0].Source.Parameter)
			assert.Equal(t, tt.detail, list.Errors[0].Detail)
		})
	}
}

func TestReadPaginationLargestOffset(t *testing.T) {
	r, reg := newTestReader()
	number := math.MaxInt/2 + 1

	set, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "page[number]", Value: strconv.Itoa(number)},
		{Name: "page[size]", Value: "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, &ast.Pagination{Number: number, Size: 2}, set.Primary().Page)

	set, err = r.Read(blogsEndpoint(reg), []Param{
		{Name: "page[number]", Value: strconv.Itoa(math.MaxInt)},
		{Name: "page[size]", Value: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, &ast.Pagination{Number: math.MaxInt, Size: 1}, set.Primary().Page)
}

func TestReadDuplicatePageAcrossParameters(t *testing.T) {
	r, reg := newTestReader()

	_, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "page[size]", Value: "5"},
		{Name: "page[size]", Value: "6"},
	})

	list, ok := AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 1)
	assert.Equal(t, "Multiple 'page[size]' parameters for scope 'blogs'.", list.Errors[0].Detail)
}

func TestReadSparseFieldsets(t *testing.T) {
	r, reg := newTestReader()
	blogs := reg.MustType("blogs")
	posts := reg.MustType("blogPosts")

	set, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "fields[blogs]", Value: "id"},
		{Name: "fields[blogPosts]", Value: ""},
	})
	require.NoError(t, err)

	fields, explicit := set.Fields(blogs)
	assert.True(t, explicit)
	assert.Equal(t, []string{"id"}, fieldNames(fields))

	fields, explicit = set.Fields(posts)
	assert.True(t, explicit)
	assert.Empty(t, fields)

	fields, explicit = set.Fields(reg.MustType("comments"))
	assert.False(t, explicit)
	assert.Equal(t, []string{"id", "text", "numStars", "createdAt", "author", "parent"}, fieldNames(fields))
}

func TestReadSparseFieldsetsMerge(t *testing.T) {
	r, reg := newTestReader()

	set, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "fields[blogs]", Value: "title,id"},
		{Name: "fields[blogs]", Value: "id,posts"},
	})
	require.NoError(t, err)

	fields, _ := set.Fields(reg.MustType("blogs"))
	assert.Equal(t, []string{"title", "id", "posts"}, fieldNames(fields))
}

func TestReadFieldsetNotViewable(t *testing.T) {
	r, reg := newTestReader()

	_, err := r.Read(blogsEndpoint(reg), []Param{{Name: "fields[webAccounts]", Value: "userName,password"}})

	list, ok := AsErrorList(err)
	require.True(t, ok)
	require.Len(t, list.Errors, 1)
	assert.Equal(t, "Retrieving the attribute 'password' is not allowed. Failed at position 10: userName,^password", list.Errors[0].Detail)
}

func TestEffectiveInclude(t *testing.T) {
	r, reg := newTestReader()

	set, err := r.Read(blogsEndpoint(reg), []Param{
		{Name: "include", Value: "posts.author"},
		{Name: "filter[posts.comments]", Value: "greaterThan(numStars,'2')"},
		{Name: "page[size]", Value: "posts:1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "posts.author", set.Include.String())
	assert.Equal(t, "posts.author,posts.comments", set.EffectiveInclude().String())
}

func TestEffectiveIncludeWithoutIncludeParameter(t *testing.T) {
	r, reg := newTestReader()

	set, err := r.Read(blogsEndpoint(reg), nil)
	require.NoError(t, err)
	assert.Nil(t, set.Include)
	assert.Empty(t, set.EffectiveInclude().Paths())
}

func TestParseQuery(t *testing.T) {
	params, err := ParseQuery("?filter=equals(title,%27a%20b%27)&sort=-title&&page%5Bsize%5D=5&include")
	require.NoError(t, err)

	assert.Equal(t, []Param{
		{Name: "filter", Value: "equals(title,'a b')"},
		{Name: "sort", Value: "-title"},
		{Name: "page[size]", Value: "5"},
		{Name: "include", Value: ""},
	}, params)

	_, err = ParseQuery("filter=%zz")
	assert.Error(t, err)
}

func TestErrorListUnwrap(t *testing.T) {
	cause := &parse.Error{Message: "boom", Position: 0}
	list := &ErrorList{Errors: []*ErrorObject{
		{Title: TitleFilter, Detail: "boom", Source: &ErrorSource{Parameter: "filter"}, Cause: cause},
	}}

	var obj *ErrorObject
	require.True(t, errors.As(list, &obj))
	assert.Equal(t, "filter", obj.Source.Parameter)
	assert.ErrorIs(t, list, cause)
	assert.Equal(t, "filter: The specified filter is invalid. boom", list.Error())
}
