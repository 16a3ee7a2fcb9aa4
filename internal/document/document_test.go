package document

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/value"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"float", 4.5, "4.5"},
		{"integral float", float64(3), "3"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"empty object", map[string]any{}, "{}"},
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash", `\u2028`, `"\\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"b": 1, "a": 2},
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalUTF16KeyOrder(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16, where U+1F600 is the surrogate pair D83D DE00.
	obj := map[string]any{"\uff61": 1, "\U0001F600": 2}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(result))
}

func TestMarshalNormalizesStrings(t *testing.T) {
	result, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalRejects(t *testing.T) {
	_, err := Marshal(math.Inf(1))
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": struct{}{}})
	assert.ErrorContains(t, err, `value for key "x"`)
}

func TestData(t *testing.T) {
	rows := []*plan.Row{{
		Type: "blogs",
		ID:   "b1",
		Attributes: map[string]value.Value{
			"title":     value.String("Technology"),
			"createdAt": value.NewTime(time.Date(2024, 5, 31, 18, 0, 0, 0, time.UTC)),
			"rating":    value.Null{},
		},
		Relationships: map[string][]string{"posts": {"p1"}},
		Included: map[string][]*plan.Row{
			"posts": {{Type: "blogPosts", ID: "p1"}},
		},
	}}

	b, err := MarshalData(rows)
	require.NoError(t, err)
	assert.Equal(t,
		`{"data":[{"attributes":{"createdAt":"2024-05-31T18:00:00Z","rating":null,"title":"Technology"},`+
			`"id":"b1","included":{"posts":[{"id":"p1","type":"blogPosts"}]},`+
			`"relationships":{"posts":["p1"]},"type":"blogs"}]}`,
		string(b))
}

func TestErrors(t *testing.T) {
	list := &constraint.ErrorList{Errors: []*constraint.ErrorObject{
		{ID: "1", Status: "400", Title: constraint.TitleSort, Detail: "Field 'x' does not exist.", Source: &constraint.ErrorSource{Parameter: "sort"}},
		{ID: "2", Status: "400", Title: constraint.TitleUnknown},
	}}

	b, err := Marshal(Errors(list))
	require.NoError(t, err)
	assert.Equal(t,
		`{"errors":[{"detail":"Field 'x' does not exist.","id":"1","source":{"parameter":"sort"},"status":"400","title":"The specified sort is invalid."},`+
			`{"detail":"","id":"2","status":"400","title":"Unknown query string parameter."}]}`,
		string(b))
}

func TestFingerprint(t *testing.T) {
	a := plan.NewQuery("blogs").Paginate(0, 10)
	b := plan.NewQuery("blogs").Paginate(0, 10)
	c := plan.NewQuery("blogs").Paginate(10, 10)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Len(t, Fingerprint(a), 64)
	assert.Equal(t, Fingerprint(a), FingerprintText(plan.Format(a)))
}
