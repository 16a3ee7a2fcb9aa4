package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/testutil"
	"github.com/roach88/apiquery/internal/value"
)

var astOptions = cmp.Options{
	cmp.Comparer(func(a, b *resource.Type) bool { return a == b }),
	cmp.Comparer(func(a, b *resource.Relationship) bool { return a == b }),
}

type failure struct {
	message string
	pos     int
}

func requireFailure(t *testing.T, err error, want failure) {
	t.Helper()
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok, "expected *parse.Error, got %T", err)
	assert.Equal(t, want.message, pe.Message)
	assert.Equal(t, want.pos, pe.Position)
}

func TestParseFilterRoundTrip(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)

	tests := []struct {
		resource string
		text     string
	}{
		{"blogs", "equals(title,'it''s')"},
		{"blogs", "and(greaterThan(count(posts),'2'),not(equals(owner.displayName,null)))"},
		{"blogs", "or(startsWith(title,'A'),endsWith(owner.userName,'x'),contains(title,'b'))"},
		{"blogs", "any(title,'a','b')"},
		{"blogs", "has(posts)"},
		{"blogs", "has(posts,has(comments,greaterOrEqual(numStars,'4')))"},
		{"blogs", "lessThan(createdAt,'2024-01-01T00:00:00Z')"},
		{"blogs", "equals(showAdvertisements,'true')"},
		{"blogs", "lessOrEqual(count(posts),count(owner.posts))"},
		{"blogPosts", "isType(cover,images,greaterThan(width,'100'))"},
		{"blogPosts", "equals(rating,'4.5')"},
		{"blogPosts", "equals(author.userName,parent.title)"},
		{"attachments", "isType(,documents,equals(retention,'48h0m0s'))"},
		{"attachments", "isType(,images)"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rt := reg.MustType(tt.resource)
			expr, err := p.ParseFilter(tt.text, rt)
			require.NoError(t, err)
			assert.Equal(t, tt.text, expr.String())
			assert.Equal(t, value.TypeBool, expr.ReturnType())

			again, err := p.ParseFilter(expr.String(), rt)
			require.NoError(t, err)
			if diff := cmp.Diff(expr, again, astOptions); diff != "" {
				t.Errorf("round trip mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestParseFilterNormalisesLiterals(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)

	expr, err := p.ParseFilter("and(equals(title,'x'), lessThan(createdAt,'2024-01-01'))", reg.MustType("blogs"))
	require.NoError(t, err)
	assert.Equal(t, "and(equals(title,'x'),lessThan(createdAt,'2024-01-01T00:00:00Z'))", expr.String())

	again, err := p.ParseFilter(expr.String(), reg.MustType("blogs"))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(expr, again, astOptions))
}

func TestParseFilterTree(t *testing.T) {
	reg := testutil.BlogRegistry()
	blogs := reg.MustType("blogs")

	expr, err := New(reg).ParseFilter("greaterThan(count(posts),'2')", blogs)
	require.NoError(t, err)

	cmpExpr, ok := expr.(*ast.Comparison)
	require.True(t, ok)
	assert.Equal(t, ast.GreaterThan, cmpExpr.Operator)

	count, ok := cmpExpr.Left.(*ast.Count)
	require.True(t, ok)
	posts, _ := blogs.Relationship("posts")
	assert.Equal(t, []resource.Field{posts}, count.Target.Fields)
	assert.Equal(t, 18, count.Target.Position)

	lit, ok := cmpExpr.Right.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, value.Int(2), lit.Value)
}

func TestParseFilterErrors(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)

	const toOneOrAttr = "Field chain on resource type 'blogs' failed to match the pattern: zero or more to-one relationships, followed by an attribute. "

	tests := []struct {
		resource string
		text     string
		want     failure
	}{
		{"blogs", "equals(some,'x')", failure{"Field 'some' does not exist on resource type 'blogs'.", 7}},
		{"blogs", "equals(owner.some,'x')", failure{"Field 'some' does not exist on resource type 'webAccounts'.", 13}},
		{"blogs", "equals(posts,'x')", failure{toOneOrAttr + "To-one relationship or attribute expected.", 7}},
		{"blogs", "equals(owner,'x')", failure{toOneOrAttr + "To-one relationship or attribute expected.", 12}},
		{"blogs", "equals(title.x,'1')", failure{toOneOrAttr + "End of field chain expected.", 13}},
		{"blogs", "equals(title..x,'1')", failure{"Field name expected.", 13}},
		{"blogs", "equals( title,'x')", failure{"Unexpected whitespace.", 7}},
		{"blogs", "equals(title,'x'", failure{") expected.", 16}},
		{"blogs", "equals(title,'x')x", failure{"End of expression expected.", 17}},
		{"blogs", "equals(title,'x)", failure{"' expected.", 16}},
		{"blogs", "equals(title,'x')$", failure{"Unexpected character '$'.", 17}},
		{"blogs", "foo(title)", failure{"Filter function expected.", 0}},
		{"blogs", "and(equals(title,'ééé'),nope(title))", failure{"Filter function expected.", 24}},
		{"blogs", "'x'", failure{"Filter function expected.", 0}},
		{"blogs", "", failure{"Filter function expected.", 0}},
		{"blogs", "equals", failure{"( expected.", 6}},
		{"blogs", "and(equals(title,'a'))", failure{", expected.", 21}},
		{"blogs", "not(equals(title,'x'),equals(title,'y'))", failure{") expected.", 21}},
		{"blogs", "equals('x',title)", failure{"Function or field name expected.", 7}},
		{"blogs", "equals(title,)", failure{"Function, field name or value between quotes expected.", 13}},
		{"blogs", "greaterThan(title,null)", failure{"Function, field name or value between quotes expected.", 18}},
		{"blogs", "equals(title,null)", failure{"Attribute 'title' is not nullable.", 13}},
		{"blogs", "equals(count(posts),null)", failure{"Function, field name or value between quotes expected.", 20}},
		{"blogs", "equals(showAdvertisements,'maybe')", failure{"Failed to convert 'maybe' of type 'String' to type 'Bool'.", 26}},
		{"blogs", "equals(count(posts),'many')", failure{"Failed to convert 'many' of type 'String' to type 'Int'.", 20}},
		{"blogs", "equals(title,count(posts))", failure{"Values of type 'String' and 'Int' cannot be compared.", 13}},
		{"blogs", "contains(showAdvertisements,'x')", failure{"Attribute of type 'String' expected.", 9}},
		{"blogs", "contains(title,x)", failure{"Value between quotes expected.", 15}},
		{"blogs", "equals(platformName,'x')", failure{"Filtering on attribute 'platformName' is not allowed.", 7}},
		{"blogs", "any(title)", failure{", expected.", 9}},
		{"blogs", "any(title,'a',)", failure{"Value between quotes expected.", 14}},
		{"blogs", "has(owner)", failure{"Field chain on resource type 'blogs' failed to match the pattern: zero or more to-one relationships, followed by a to-many relationship. Relationship expected.", 9}},
		{"blogs", "has(posts,equals(title,'x'))", failure{"Field 'title' does not exist on resource type 'blogPosts'.", 17}},
		{"blogs", "count(posts)", failure{"Filter function expected.", 0}},
		{"blogs", "isType(,documents)", failure{"Resource type 'documents' is not derived from 'blogs'.", 8}},
		{"blogs", "isType(,nope)", failure{"Resource type 'nope' does not exist.", 8}},
		{"blogPosts", "isType(cover,images,equals(pageCount,'1'))", failure{"Field 'pageCount' does not exist on resource type 'images'.", 27}},
		{"webAccounts", "equals(password,'x')", failure{"Filtering on attribute 'password' is not allowed.", 7}},
		{"blogPosts", "has(labels,equals(name,'x'))", failure{"", 0}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := p.ParseFilter(tt.text, reg.MustType(tt.resource))
			if tt.want.message == "" {
				assert.NoError(t, err)
				return
			}
			requireFailure(t, err, tt.want)
		})
	}
}

func TestParseFilterDetail(t *testing.T) {
	reg := testutil.BlogRegistry()
	text := "equals(some,'x')"

	_, err := New(reg).ParseFilter(text, reg.MustType("blogs"))
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t,
		"Field 'some' does not exist on resource type 'blogs'. Failed at position 8: equals(^some,'x')",
		pe.Detail(text))
}

func TestParseFilterDetailCountsCharacters(t *testing.T) {
	reg := testutil.BlogRegistry()
	text := "and(equals(title,'ééé'),nope(title))"

	_, err := New(reg).ParseFilter(text, reg.MustType("blogs"))
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 24, pe.Position)
	assert.Equal(t,
		"Filter function expected. Failed at position 25: and(equals(title,'ééé'),^nope(title))",
		pe.Detail(text))
}

func TestErrorDetailClampsPosition(t *testing.T) {
	tests := []struct {
		pos  int
		want string
	}{
		{-1, "x Failed at position 1: ^é1"},
		{1, "x Failed at position 2: é^1"},
		{9, "x Failed at position 3: é1^"},
	}

	for _, tt := range tests {
		e := &Error{Message: "x", Position: tt.pos}
		assert.Equal(t, tt.want, e.Detail("é1"))
	}
}

// isEmpty is a test extension: isEmpty(<string attribute>).
type isEmpty struct {
	target *ast.FieldChain
}

func (e *isEmpty) ReturnType() value.Type { return value.TypeBool }
func (e *isEmpty) String() string         { return ast.Call("isEmpty", e.target) }

var isEmptyFunction = Function{
	Name:  "isEmpty",
	Usage: InFilter,
	Parse: func(c *Context) (ast.Expression, error) {
		if err := c.EatKeyword("isEmpty"); err != nil {
			return nil, err
		}
		if err := c.EatOpenParen(); err != nil {
			return nil, err
		}
		target, err := c.ParseStringAttributeChain()
		if err != nil {
			return nil, err
		}
		if err := c.EatCloseParen(); err != nil {
			return nil, err
		}
		return &isEmpty{target: target}, nil
	},
}

func TestParseFilterExtension(t *testing.T) {
	reg := testutil.BlogRegistry()
	blogs := reg.MustType("blogs")
	p := New(reg, WithFunctions(isEmptyFunction))

	expr, err := p.ParseFilter("or(isEmpty(title),not(isEmpty(owner.userName)))", blogs)
	require.NoError(t, err)
	assert.Equal(t, "or(isEmpty(title),not(isEmpty(owner.userName)))", expr.String())

	logical := expr.(*ast.Logical)
	assert.IsType(t, &isEmpty{}, logical.Terms[0])

	_, err = p.ParseFilter("isEmpty(showAdvertisements)", blogs)
	requireFailure(t, err, failure{"Attribute of type 'String' expected.", 8})

	// Built-ins still work and unknown names still fail.
	_, err = p.ParseFilter("equals(title,'x')", blogs)
	assert.NoError(t, err)
	_, err = New(reg).ParseFilter("isEmpty(title)", blogs)
	requireFailure(t, err, failure{"Filter function expected.", 0})
}

func TestParseFilterExtensionOverridesBuiltIn(t *testing.T) {
	reg := testutil.BlogRegistry()
	called := false
	override := Function{
		Matches: func(keyword string) bool { return keyword == "has" },
		Usage:   InFilter,
		Parse: func(c *Context) (ast.Expression, error) {
			called = true
			return isEmptyFunction.Parse(c)
		},
	}

	_, err := New(reg, WithFunctions(override)).ParseFilter("has(title)", reg.MustType("blogs"))
	requireFailure(t, err, failure{"isEmpty expected.", 0})
	assert.True(t, called)
}

func TestParseSort(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)
	blogs := reg.MustType("blogs")

	sort, err := p.ParseSort("-title,count(posts), owner.userName", blogs)
	require.NoError(t, err)
	require.Len(t, sort.Elements, 3)
	assert.False(t, sort.Elements[0].Ascending)
	assert.IsType(t, &ast.Count{}, sort.Elements[1].Target)
	assert.True(t, sort.Elements[2].Ascending)
	assert.Equal(t, "-title,count(posts),owner.userName", sort.String())

	again, err := p.ParseSort(sort.String(), blogs)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(sort, again, astOptions))

	tests := []struct {
		text string
		want failure
	}{
		{"platformName", failure{"Sorting on attribute 'platformName' is not allowed.", 0}},
		{"owner.password", failure{"Sorting on attribute 'password' is not allowed.", 6}},
		{"-", failure{"Count function or field name expected.", 1}},
		{"title,", failure{"Count function or field name expected.", 6}},
		{"title posts", failure{", expected.", 6}},
		{"posts", failure{"Field chain on resource type 'blogs' failed to match the pattern: zero or more to-one relationships, followed by an attribute. To-one relationship or attribute expected.", 0}},
		{"'title'", failure{"Count function or field name expected.", 0}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := p.ParseSort(tt.text, blogs)
			requireFailure(t, err, tt.want)
		})
	}
}

func TestParseInclude(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)
	blogs := reg.MustType("blogs")

	inc, err := p.ParseInclude("posts.comments,posts.author,posts", blogs)
	require.NoError(t, err)
	assert.Equal(t, "posts.comments,posts.author", inc.String())
	require.Len(t, inc.Elements, 1)
	assert.Len(t, inc.Elements[0].Children, 2)

	tests := []struct {
		text string
		want failure
	}{
		{"posts.comments,owner", failure{"Including the relationship 'owner' on 'blogs' is not allowed.", 15}},
		{"posts.foo", failure{"Relationship 'foo' does not exist on resource type 'blogPosts'.", 6}},
		{"title", failure{"Relationship 'title' does not exist on resource type 'blogs'.", 0}},
		{"posts.labels", failure{"Including the relationship 'labels' on 'blogPosts' is not allowed.", 6}},
		{"", failure{"Relationship name expected.", 0}},
		{"posts,,", failure{"Relationship name expected.", 6}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := p.ParseInclude(tt.text, blogs)
			requireFailure(t, err, tt.want)
		})
	}
}

func TestParseSparseFieldSet(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)

	rt, err := p.ParseResourceType("webAccounts")
	require.NoError(t, err)
	assert.Same(t, reg.MustType("webAccounts"), rt)

	_, err = p.ParseResourceType("blogz")
	requireFailure(t, err, failure{"Resource type 'blogz' does not exist.", 0})

	set, err := p.ParseSparseFieldSet("userName,posts,userName", rt)
	require.NoError(t, err)
	assert.Equal(t, "userName,posts", set.String())

	empty, err := p.ParseSparseFieldSet("", rt)
	require.NoError(t, err)
	assert.NotNil(t, empty.Fields)
	assert.Empty(t, empty.Fields)

	_, err = p.ParseSparseFieldSet("userName,password", rt)
	requireFailure(t, err, failure{"Retrieving the attribute 'password' is not allowed.", 9})

	_, err = p.ParseSparseFieldSet("userName,,posts", rt)
	requireFailure(t, err, failure{"Field name expected.", 9})

	_, err = p.ParseSparseFieldSet("posts.caption", rt)
	requireFailure(t, err, failure{"Field chain on resource type 'webAccounts' failed to match the pattern: a field. End of field chain expected.", 6})
}

func TestParsePagination(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)
	blogs := reg.MustType("blogs")

	values, err := p.ParsePagination("10,posts:5,posts.comments:2", blogs, PageSize, 0)
	require.NoError(t, err)
	require.Len(t, values.Elements, 3)
	assert.Nil(t, values.Elements[0].Scope)
	assert.Equal(t, 10, values.Elements[0].Value)
	assert.Equal(t, "posts.comments", values.Elements[2].Scope.String())
	assert.Equal(t, "10,posts:5,posts.comments:2", values.String())

	tests := []struct {
		text  string
		kind  PageKind
		limit int
		want  failure
	}{
		{"-1", PageSize, 0, failure{"Page size cannot be negative.", 0}},
		{"0", PageNumber, 0, failure{"Page number cannot be negative or zero.", 0}},
		{"posts:-3", PageNumber, 0, failure{"Page number cannot be negative or zero.", 6}},
		{"x", PageSize, 0, failure{"Integer expected.", 0}},
		{"1.5", PageSize, 0, failure{"Integer expected.", 0}},
		{"posts:101", PageSize, 100, failure{"Page size cannot be higher than 100.", 6}},
		{"11", PageNumber, 10, failure{"Page number cannot be higher than 10.", 0}},
		{"owner:5", PageSize, 0, failure{"Field chain on resource type 'blogs' failed to match the pattern: zero or more relationships, followed by a to-many relationship. Relationship expected.", 5}},
		{"posts.labels:5", PageSize, 0, failure{"Including the relationship 'labels' on 'blogPosts' is not allowed.", 6}},
		{"1 2", PageSize, 0, failure{", expected.", 2}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := p.ParsePagination(tt.text, blogs, tt.kind, tt.limit)
			requireFailure(t, err, tt.want)
		})
	}
}

func TestParseScope(t *testing.T) {
	reg := testutil.BlogRegistry()
	p := New(reg)
	blogs := reg.MustType("blogs")

	scope, err := p.ParseScope("posts.comments", blogs)
	require.NoError(t, err)
	assert.Equal(t, "posts.comments", scope.String())

	_, err = p.ParseScope("title", blogs)
	requireFailure(t, err, failure{"Field chain on resource type 'blogs' failed to match the pattern: zero or more relationships, followed by a to-many relationship. Relationship expected.", 0})

	_, err = p.ParseScope("posts.labels", blogs)
	requireFailure(t, err, failure{"Including the relationship 'labels' on 'blogPosts' is not allowed.", 6})

	_, err = p.ParseScope("posts x", blogs)
	requireFailure(t, err, failure{"End of expression expected.", 6})
}

func TestParseFilterScope(t *testing.T) {
	defs := testutil.BlogDefinition()
	defs[1].Relationships[0].Capabilities = []string{"view", "include"} // blogs.posts
	defs[2].Relationships[2].Capabilities = []string{"view", "include"} // blogPosts.comments
	reg, err := resource.NewGraph().Add(defs...).Freeze()
	require.NoError(t, err)

	p := New(reg)
	blogs := reg.MustType("blogs")
	posts := reg.MustType("blogPosts")
	accounts := reg.MustType("webAccounts")

	tests := []struct {
		rt         *resource.Type
		text       string
		includable bool
		want       failure
	}{
		{blogs, "posts", true, failure{"Filtering on relationship 'posts' is not allowed.", 0}},
		{blogs, "posts.comments", true, failure{"Filtering on relationship 'posts' is not allowed.", 0}},
		{posts, "comments", true, failure{"Filtering on relationship 'comments' is not allowed.", 0}},
		{accounts, "posts.comments", true, failure{"Filtering on relationship 'comments' is not allowed.", 6}},
		{accounts, "posts", true, failure{}},
		{blogs, "posts.labels", false, failure{"Including the relationship 'labels' on 'blogPosts' is not allowed.", 6}},
	}

	for _, tt := range tests {
		t.Run(tt.rt.PublicName()+"/"+tt.text, func(t *testing.T) {
			_, err := p.ParseScope(tt.text, tt.rt)
			assert.Equal(t, tt.includable, err == nil)

			chain, err := p.ParseFilterScope(tt.text, tt.rt)
			if tt.want.message == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.text, chain.String())
				return
			}
			requireFailure(t, err, tt.want)
		})
	}
}
