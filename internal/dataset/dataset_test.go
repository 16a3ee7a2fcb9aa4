package dataset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/testutil"
	"github.com/roach88/apiquery/internal/value"
)

func TestBlogData(t *testing.T) {
	d := testutil.BlogData()
	reg := d.Registry()

	assert.Equal(t, 19, d.Len())
	assert.Equal(t, []string{"b1", "b2", "b3"}, dataset.IDs(d.Collection(reg.MustType("blogs"))))

	// Derived types share the root collection.
	assert.Equal(t, []string{"i1", "d1", "x1"}, dataset.IDs(d.Collection(reg.MustType("images"))))

	p1, ok := d.Lookup(reg.MustType("blogPosts"), "p1")
	require.True(t, ok)
	assert.Equal(t, value.Float(4.5), p1.Attribute("rating"))
	assert.Equal(t, value.String("p1"), p1.Attribute("id"))

	cover, _ := reg.MustType("blogPosts").Relationship("cover")
	related := d.Related(p1, cover)
	require.Len(t, related, 1)
	assert.Equal(t, "images", related[0].Type.PublicName())
	assert.Equal(t, value.Int(640), related[0].Attribute("width"))
	assert.Equal(t, value.String("hello.png"), related[0].Attribute("fileName"))

	d1, _ := d.Lookup(reg.MustType("attachments"), "d1")
	assert.Equal(t, value.Duration(720*time.Hour), d1.Attribute("retention"))

	a2, _ := d.Lookup(reg.MustType("webAccounts"), "a2")
	assert.True(t, value.IsNull(a2.Attribute("displayName")))
	assert.True(t, value.IsNull(a2.Attribute("dateOfBirth")))

	p3, _ := d.Lookup(reg.MustType("blogPosts"), "p3")
	assert.Equal(t, value.Float(3), p3.Attribute("rating"))
}

func TestObjectsInRegistryOrder(t *testing.T) {
	d := testutil.BlogData()
	ids := dataset.IDs(d.Objects())
	assert.Equal(t, []string{"a1", "a2", "a3", "b1", "b2", "b3", "p1", "p2", "p3"}, ids[:9])
	assert.Equal(t, []string{"i1", "d1", "x1"}, ids[len(ids)-3:])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown type", `[{type: posts, id: "1"}]`, `object posts/1: unknown resource type`},
		{"missing id", `[{type: labels, attributes: {name: a, color: b}}]`, `object labels: id is required`},
		{"unknown attribute", `[{type: labels, id: "1", attributes: {name: a, color: b, size: 3}}]`, `object labels/1.size: unknown attribute`},
		{"bad value", `[{type: comments, id: "1", attributes: {text: a, numStars: many, createdAt: "2024-01-01T00:00:00Z"}}]`, `Failed to convert 'many' of type 'String' to type 'Int'.`},
		{"required attribute", `[{type: labels, id: "1", attributes: {name: a}}]`, `object labels/1.color: attribute is required`},
		{"not nullable", `[{type: labels, id: "1", attributes: {name: a, color: null}}]`, `object labels/1.color: attribute is not nullable`},
		{"unknown relationship", `[{type: labels, id: "1", attributes: {name: a, color: b}, relationships: {tags: []}}]`, `object labels/1.tags: unknown relationship`},
		{"duplicate id", `[{type: attachments, id: "1", attributes: {fileName: a, sizeInBytes: 1}}, {type: images, id: "1", attributes: {fileName: b, sizeInBytes: 1, width: 1, height: 1}}]`, `object images/1: duplicate id in collection "attachments"`},
		{"missing reference", `[{type: labels, id: "1", attributes: {name: a, color: b}, relationships: {posts: ["9"]}}]`, `object labels/1.posts: refers to missing blogPosts/9`},
		{"to-one with many ids", `[{type: comments, id: "1", attributes: {text: a, numStars: 1, createdAt: "2024-01-01T00:00:00Z"}, relationships: {author: [x, y]}}]`, `object comments/1.author: to-one relationship holds 2 ids`},
		{"unknown key", `[{type: labels, id: "1", attrs: {}}]`, `field attrs not found`},
	}

	reg := testutil.BlogRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.Parse(reg, []byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReferenceMustConformToTarget(t *testing.T) {
	reg := testutil.BlogRegistry()
	d := dataset.New(reg)

	require.NoError(t, d.Add(&dataset.Object{
		Type:       reg.MustType("attachments"),
		ID:         "x",
		Attributes: map[string]value.Value{"fileName": value.String("a"), "sizeInBytes": value.Int(1)},
	}))
	require.NoError(t, d.Add(&dataset.Object{
		Type:          reg.MustType("blogPosts"),
		ID:            "p",
		Attributes:    map[string]value.Value{"caption": value.String("c")},
		Relationships: map[string][]string{"cover": {"x"}},
	}))
	require.NoError(t, d.Validate())

	err := d.Add(&dataset.Object{
		Type:       reg.MustType("comments"),
		ID:         "c",
		Attributes: map[string]value.Value{"text": value.Int(1), "numStars": value.Int(1), "createdAt": value.NewTime(testutil.FixedNow)},
	})
	require.Error(t, err)
	assert.True(t, dataset.IsError(err))
	assert.Equal(t, "object comments/c.text: value of type Int, want String", err.Error())
}
