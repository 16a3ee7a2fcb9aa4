package parse

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// ParseResourceType parses the bracketed part of fields[<type>].
func (p *Parser) ParseResourceType(text string) (*resource.Type, error) {
	c := p.newContext(text, nil)
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, "Resource type expected.")
	}
	rt, ok := p.registry.Type(tok.Value)
	if !ok {
		return nil, c.Failf(tok.Position, "Resource type '%s' does not exist.", tok.Value)
	}
	c.advance()
	if err := c.eatEnd(); err != nil {
		return nil, err
	}
	return rt, nil
}

// ParseSparseFieldSet parses a fields[<type>] value. An empty value is an
// explicit empty selection.
func (p *Parser) ParseSparseFieldSet(text string, rt *resource.Type) (*ast.SparseFieldSet, error) {
	c := p.newContext(text, rt)
	set := &ast.SparseFieldSet{Fields: []resource.Field{}}
	if c.Peek().Kind == End {
		return set, nil
	}

	for {
		chain, err := c.ParseFieldChain(SingleField)
		if err != nil {
			return nil, err
		}
		f := chain.Last()
		if !f.Capabilities().Has(resource.CapView) {
			kind := "attribute"
			if _, ok := f.(*resource.Relationship); ok {
				kind = "relationship"
			}
			return nil, c.Failf(chain.Position, "Retrieving the %s '%s' is not allowed.", kind, f.PublicName())
		}
		if !set.Contains(f) {
			set.Fields = append(set.Fields, f)
		}
		if !c.TryEat(Comma) {
			break
		}
	}
	if tok := c.Peek(); tok.Kind != End {
		return nil, c.Fail(tok.Position, ", expected.")
	}
	return set, nil
}
