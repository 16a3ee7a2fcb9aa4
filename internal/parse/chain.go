package parse

import (
	"strings"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// ChainMode controls what may follow a field chain.
type ChainMode int

const (
	// ChainEmbedded allows further tokens after the chain, as in function
	// arguments.
	ChainEmbedded ChainMode = iota
	// ChainStandalone requires the chain to be the whole value.
	ChainStandalone
)

func (c *Context) parseChain(pattern *Pattern, mode ChainMode) (*ast.FieldChain, error) {
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, "Field name expected.")
	}
	c.advance()

	chain, err := c.resolveChain(tok, pattern)
	if err != nil {
		return nil, err
	}
	if mode == ChainStandalone {
		if err := c.eatEnd(); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// resolveChain resolves the dot-separated segments of tok one at a time,
// matching each against pattern as it goes, so that the first offending
// segment is the one reported.
func (c *Context) resolveChain(tok Token, pattern *Pattern) (*ast.FieldChain, error) {
	m := pattern.newMatcher()
	rt := c.rt
	var fields []resource.Field

	offset := 0
	for _, name := range strings.Split(tok.Value, ".") {
		pos := tok.Position + offset
		offset += len(name) + 1

		if name == "" {
			return nil, c.Fail(pos, "Field name expected.")
		}
		if rt == nil {
			// The previous segment was an attribute.
			return nil, c.mismatch(pos, pattern, m)
		}
		f, ok := rt.Field(name)
		if !ok {
			return nil, c.Failf(pos, "Field '%s' does not exist on resource type '%s'.", name, rt.PublicName())
		}
		if !m.feed(kindOf(f)) {
			return nil, c.mismatch(pos, pattern, m)
		}
		fields = append(fields, f)

		rt = nil
		if rel, ok := f.(*resource.Relationship); ok {
			rt = rel.Target()
		}
	}

	if !m.accepting() {
		return nil, c.mismatch(tok.Position+len(tok.Value), pattern, m)
	}
	return &ast.FieldChain{Fields: fields, Position: tok.Position}, nil
}

func (c *Context) mismatch(pos int, pattern *Pattern, m *matcher) error {
	return c.Failf(pos, "Field chain on resource type '%s' failed to match the pattern: %s. %s expected.",
		c.rt.PublicName(), pattern.Description(), m.expectation())
}

// parseScopeChain parses a relationship path ending in a to-many
// relationship, every hop of which must allow inclusion.
func (c *Context) parseScopeChain(mode ChainMode) (*ast.FieldChain, error) {
	chain, err := c.parseChain(ChainEndingInToMany, mode)
	if err != nil {
		return nil, err
	}
	if err := c.requireIncludable(chain); err != nil {
		return nil, err
	}
	return chain, nil
}

func (c *Context) requireIncludable(chain *ast.FieldChain) error {
	rt := c.rt
	offset := 0
	for _, f := range chain.Fields {
		pos := chain.Position + offset
		offset += len(f.PublicName()) + 1

		rel := f.(*resource.Relationship)
		if !rel.Capabilities().Has(resource.CapInclude) {
			return c.Failf(pos, "Including the relationship '%s' on '%s' is not allowed.", rel.PublicName(), rt.PublicName())
		}
		rt = rel.Target()
	}
	return nil
}
