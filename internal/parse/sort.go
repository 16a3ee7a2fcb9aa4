package parse

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

const msgSortTerm = "Count function or field name expected."

// ParseSort parses a sort parameter value on resource type rt: a comma
// separated list of elements, each optionally prefixed with "-" for
// descending order.
func (p *Parser) ParseSort(text string, rt *resource.Type) (*ast.Sort, error) {
	c := p.newContext(text, rt)

	var elements []*ast.SortElement
	for {
		elem, err := c.parseSortElement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
		if !c.TryEat(Comma) {
			break
		}
	}
	if tok := c.Peek(); tok.Kind != End {
		return nil, c.Fail(tok.Position, ", expected.")
	}
	return &ast.Sort{Elements: elements}, nil
}

func (c *Context) parseSortElement() (*ast.SortElement, error) {
	ascending := !c.TryEat(Minus)

	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, msgSortTerm)
	}

	if fn, ok := c.parser.function(tok.Value, InSort); ok {
		expr, err := fn.Parse(c)
		if err != nil {
			return nil, err
		}
		return &ast.SortElement{Target: expr, Ascending: ascending}, nil
	}

	if tok.Value == keywordCount && c.PeekAfter().Kind == OpenParen {
		count, err := c.parseCount()
		if err != nil {
			return nil, err
		}
		return &ast.SortElement{Target: count, Ascending: ascending}, nil
	}

	chain, err := c.ParseFieldChain(ToOneChainEndingInAttribute)
	if err != nil {
		return nil, err
	}
	attr, _ := chain.Attribute()
	if !attr.Capabilities().Has(resource.CapSort) {
		pos := chain.Position + len(chain.String()) - len(attr.PublicName())
		return nil, c.Failf(pos, "Sorting on attribute '%s' is not allowed.", attr.PublicName())
	}
	return &ast.SortElement{Target: chain, Ascending: ascending}, nil
}
