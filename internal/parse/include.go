package parse

import (
	"strings"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// ParseInclude parses an include parameter value: comma separated
// relationship paths, merged into one tree.
func (p *Parser) ParseInclude(text string, rt *resource.Type) (*ast.Include, error) {
	c := p.newContext(text, rt)

	include := &ast.Include{}
	for {
		path, err := c.parseIncludePath()
		if err != nil {
			return nil, err
		}
		include = include.Merge(path)
		if !c.TryEat(Comma) {
			break
		}
	}
	if tok := c.Peek(); tok.Kind != End {
		return nil, c.Fail(tok.Position, ", expected.")
	}
	return include, nil
}

func (c *Context) parseIncludePath() ([]*resource.Relationship, error) {
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, "Relationship name expected.")
	}
	c.advance()

	rt := c.rt
	var path []*resource.Relationship
	offset := 0
	for _, name := range strings.Split(tok.Value, ".") {
		pos := tok.Position + offset
		offset += len(name) + 1

		if name == "" {
			return nil, c.Fail(pos, "Relationship name expected.")
		}
		rel, ok := rt.Relationship(name)
		if !ok {
			return nil, c.Failf(pos, "Relationship '%s' does not exist on resource type '%s'.", name, rt.PublicName())
		}
		if !rel.Capabilities().Has(resource.CapInclude) {
			return nil, c.Failf(pos, "Including the relationship '%s' on '%s' is not allowed.", name, rt.PublicName())
		}
		path = append(path, rel)
		rt = rel.Target()
	}
	return path, nil
}
