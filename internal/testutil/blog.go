package testutil

import "github.com/roach88/apiquery/internal/resource"

// BlogDefinition returns the resource graph used throughout the tests:
// blogs with posts, comments, labels and authors, plus an attachments
// hierarchy (images and documents derive from attachments).
func BlogDefinition() []resource.TypeDef {
	return []resource.TypeDef{
		{
			Name: "webAccounts",
			Attributes: []resource.AttributeDef{
				{Name: "userName", Type: "string"},
				{Name: "displayName", Type: "string", Nullable: true},
				{Name: "dateOfBirth", Type: "time", Nullable: true},
				{Name: "password", Type: "string", Capabilities: []string{}},
			},
			Relationships: []resource.RelationshipDef{
				{Name: "posts", Kind: "toMany", Target: "blogPosts"},
			},
		},
		{
			Name: "blogs",
			Attributes: []resource.AttributeDef{
				{Name: "title", Type: "string"},
				{Name: "platformName", Type: "string", Capabilities: []string{"view"}},
				{Name: "showAdvertisements", Type: "bool"},
				{Name: "createdAt", Type: "time"},
			},
			Relationships: []resource.RelationshipDef{
				{Name: "posts", Kind: "toMany", Target: "blogPosts"},
				{Name: "owner", Kind: "toOne", Target: "webAccounts", Capabilities: []string{"view", "filter"}},
			},
		},
		{
			Name: "blogPosts",
			Attributes: []resource.AttributeDef{
				{Name: "caption", Type: "string"},
				{Name: "url", Type: "string", Nullable: true},
				{Name: "rating", Type: "float", Nullable: true},
			},
			Relationships: []resource.RelationshipDef{
				{Name: "author", Kind: "toOne", Target: "webAccounts"},
				{Name: "parent", Kind: "toOne", Target: "blogs"},
				{Name: "comments", Kind: "toMany", Target: "comments"},
				{Name: "labels", Kind: "toMany", Target: "labels", Capabilities: []string{"view", "filter"}},
				{Name: "cover", Kind: "toOne", Target: "attachments"},
			},
		},
		{
			Name: "comments",
			Attributes: []resource.AttributeDef{
				{Name: "text", Type: "string"},
				{Name: "numStars", Type: "int"},
				{Name: "createdAt", Type: "time"},
			},
			Relationships: []resource.RelationshipDef{
				{Name: "author", Kind: "toOne", Target: "webAccounts"},
				{Name: "parent", Kind: "toOne", Target: "blogPosts"},
			},
		},
		{
			Name: "labels",
			Attributes: []resource.AttributeDef{
				{Name: "name", Type: "string"},
				{Name: "color", Type: "string"},
			},
			Relationships: []resource.RelationshipDef{
				{Name: "posts", Kind: "toMany", Target: "blogPosts"},
			},
		},
		{
			Name: "attachments",
			Attributes: []resource.AttributeDef{
				{Name: "fileName", Type: "string"},
				{Name: "sizeInBytes", Type: "int"},
			},
		},
		{
			Name: "images",
			Base: "attachments",
			Attributes: []resource.AttributeDef{
				{Name: "width", Type: "int"},
				{Name: "height", Type: "int"},
			},
		},
		{
			Name: "documents",
			Base: "attachments",
			Attributes: []resource.AttributeDef{
				{Name: "pageCount", Type: "int"},
				{Name: "retention", Type: "duration", Nullable: true},
			},
		},
	}
}

// BlogRegistry freezes BlogDefinition. It panics on error since the
// definition is static.
func BlogRegistry() *resource.Registry {
	reg, err := resource.NewGraph().Add(BlogDefinition()...).Freeze()
	if err != nil {
		panic(err)
	}
	return reg
}
