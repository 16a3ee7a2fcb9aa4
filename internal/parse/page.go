package parse

import (
	"strconv"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// PageKind selects the rules applied to a page parameter.
type PageKind int

const (
	PageSize PageKind = iota
	PageNumber
)

// ParsePagination parses a page[size] or page[number] value: comma
// separated "[scope:]integer" elements, where scope is a relationship path
// ending in a to-many relationship. limit caps the values; 0 disables the
// limit.
func (p *Parser) ParsePagination(text string, rt *resource.Type, kind PageKind, limit int) (*ast.PaginationValues, error) {
	c := p.newContext(text, rt)

	values := &ast.PaginationValues{}
	for {
		elem, err := c.parsePaginationElement(kind, limit)
		if err != nil {
			return nil, err
		}
		values.Elements = append(values.Elements, elem)
		if !c.TryEat(Comma) {
			break
		}
	}
	if tok := c.Peek(); tok.Kind != End {
		return nil, c.Fail(tok.Position, ", expected.")
	}
	return values, nil
}

func (c *Context) parsePaginationElement(kind PageKind, limit int) (*ast.PaginationElement, error) {
	elem := &ast.PaginationElement{}

	if c.Peek().Kind == Text && c.PeekAfter().Kind == Colon {
		scope, err := c.parseScopeChain(ChainEmbedded)
		if err != nil {
			return nil, err
		}
		if err := c.eat(Colon); err != nil {
			return nil, err
		}
		elem.Scope = scope
	}

	pos := c.Position()
	negative := c.TryEat(Minus)
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, "Integer expected.")
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		return nil, c.Fail(tok.Position, "Integer expected.")
	}
	c.advance()
	if negative {
		n = -n
	}

	switch kind {
	case PageNumber:
		if n <= 0 {
			return nil, c.Fail(pos, "Page number cannot be negative or zero.")
		}
		if limit > 0 && n > limit {
			return nil, c.Failf(pos, "Page number cannot be higher than %d.", limit)
		}
	default:
		if n < 0 {
			return nil, c.Fail(pos, "Page size cannot be negative.")
		}
		if limit > 0 && n > limit {
			return nil, c.Failf(pos, "Page size cannot be higher than %d.", limit)
		}
	}

	elem.Value = n
	return elem, nil
}
