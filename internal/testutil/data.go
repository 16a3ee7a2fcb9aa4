package testutil

import (
	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/resource"
)

// BlogDataYAML is a small dataset over BlogDefinition.
//
// Comment stars per post: p1 [1, 1], p2 [0], p3 [2, 3]. Blog b3 has no
// posts and no owner. The attachments collection holds one object of each
// concrete type.
const BlogDataYAML = `
- type: webAccounts
  id: a1
  attributes: {userName: john, displayName: John Doe, dateOfBirth: "1990-05-01T00:00:00Z", password: secret}
  relationships: {posts: [p1, p2]}
- type: webAccounts
  id: a2
  attributes: {userName: jane, displayName: null, password: hidden}
  relationships: {posts: [p3]}
- type: webAccounts
  id: a3
  attributes: {userName: BOB, displayName: Bob, password: x}

- type: blogs
  id: b1
  attributes: {title: Technology, platformName: WordPress, showAdvertisements: true, createdAt: "2024-05-31T18:00:00Z"}
  relationships: {posts: [p1, p2], owner: a1}
- type: blogs
  id: b2
  attributes: {title: TRAVEL, platformName: Blogger, showAdvertisements: false, createdAt: "2024-01-10T08:00:00Z"}
  relationships: {posts: [p3], owner: a2}
- type: blogs
  id: b3
  attributes: {title: Empty, platformName: Ghost, showAdvertisements: false, createdAt: "2023-12-24T00:00:00Z"}
  relationships: {owner: null}

- type: blogPosts
  id: p1
  attributes: {caption: Hello world, url: "https://example.com/hello", rating: 4.5}
  relationships: {author: a1, parent: b1, comments: [c1, c2], labels: [l1], cover: i1}
- type: blogPosts
  id: p2
  attributes: {caption: Second post, url: null, rating: null}
  relationships: {author: a1, parent: b1, comments: [c3], labels: [l1, l2], cover: d1}
- type: blogPosts
  id: p3
  attributes: {caption: Travel notes, url: "https://example.com/travel", rating: 3}
  relationships: {author: a2, parent: b2, comments: [c4, c5]}

- type: comments
  id: c1
  attributes: {text: Nice, numStars: 1, createdAt: "2024-05-30T10:00:00Z"}
  relationships: {author: a2, parent: p1}
- type: comments
  id: c2
  attributes: {text: Great, numStars: 1, createdAt: "2024-05-31T09:00:00Z"}
  relationships: {author: a3, parent: p1}
- type: comments
  id: c3
  attributes: {text: Meh, numStars: 0, createdAt: "2024-04-01T12:00:00Z"}
  relationships: {author: a2, parent: p2}
- type: comments
  id: c4
  attributes: {text: Wow, numStars: 2, createdAt: "2024-05-29T12:00:00Z"}
  relationships: {author: a1, parent: p3}
- type: comments
  id: c5
  attributes: {text: Lovely, numStars: 3, createdAt: "2024-05-20T12:00:00Z"}
  relationships: {author: a3, parent: p3}

- type: labels
  id: l1
  attributes: {name: news, color: red}
  relationships: {posts: [p1, p2]}
- type: labels
  id: l2
  attributes: {name: opinion, color: blue}
  relationships: {posts: [p2]}

- type: images
  id: i1
  attributes: {fileName: hello.png, sizeInBytes: 2048, width: 640, height: 480}
- type: documents
  id: d1
  attributes: {fileName: notes.pdf, sizeInBytes: 10240, pageCount: 3, retention: 720h}
- type: attachments
  id: x1
  attributes: {fileName: raw.bin, sizeInBytes: 16}
`

// BlogData parses BlogDataYAML against a new BlogRegistry. It panics on
// error since the data is static.
func BlogData() *dataset.Dataset {
	return BlogDataOver(BlogRegistry())
}

// BlogDataOver parses BlogDataYAML against reg, which must be built from
// BlogDefinition.
func BlogDataOver(reg *resource.Registry) *dataset.Dataset {
	d, err := dataset.Parse(reg, []byte(BlogDataYAML))
	if err != nil {
		panic(err)
	}
	return d
}
