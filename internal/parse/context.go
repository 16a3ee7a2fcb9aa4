package parse

import (
	"fmt"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// Context is the cursor over one parameter value. Extension functions use
// it to consume tokens and to parse nested chains and filters.
type Context struct {
	parser *Parser
	text   string
	tokens []Token
	next   int
	rt     *resource.Type
}

func (p *Parser) newContext(text string, rt *resource.Type) *Context {
	return &Context{parser: p, text: text, tokens: Tokenize(text), rt: rt}
}

// Text returns the parameter value being parsed.
func (c *Context) Text() string { return c.text }

// ResourceType is the type that field chains currently resolve against.
func (c *Context) ResourceType() *resource.Type { return c.rt }

// Registry returns the registry being parsed against.
func (c *Context) Registry() *resource.Registry { return c.parser.registry }

// InResourceType runs fn with chains resolving against rt, restoring the
// previous type afterwards.
func (c *Context) InResourceType(rt *resource.Type, fn func() error) error {
	prev := c.rt
	c.rt = rt
	defer func() { c.rt = prev }()
	return fn()
}

// Peek returns the next token, skipping whitespace.
func (c *Context) Peek() Token {
	for c.next < len(c.tokens)-1 && c.tokens[c.next].Kind == Whitespace {
		c.next++
	}
	return c.tokens[c.next]
}

// PeekAfter returns the token following the next one, skipping whitespace.
func (c *Context) PeekAfter() Token {
	c.Peek()
	i := c.next + 1
	for i < len(c.tokens)-1 && c.tokens[i].Kind == Whitespace {
		i++
	}
	if i >= len(c.tokens) {
		return c.tokens[len(c.tokens)-1]
	}
	return c.tokens[i]
}

// Position is the offset of the next token.
func (c *Context) Position() int {
	return c.Peek().Position
}

// advance consumes and returns the next token.
func (c *Context) advance() Token {
	tok := c.Peek()
	if tok.Kind != End && tok.Kind != Invalid {
		c.next++
	}
	return tok
}

// Fail builds an *Error at pos. When a lexical error occurs at or before pos,
// that error is reported instead, since it is the first offending character.
func (c *Context) Fail(pos int, message string) error {
	if last := c.tokens[len(c.tokens)-1]; last.Kind == Invalid && last.Position <= pos {
		return &Error{Message: last.Value, Position: last.Position}
	}
	return &Error{Message: message, Position: pos}
}

// Failf is Fail with a formatted message.
func (c *Context) Failf(pos int, format string, args ...any) error {
	return c.Fail(pos, fmt.Sprintf(format, args...))
}

// EatKeyword consumes a Text token equal to keyword.
func (c *Context) EatKeyword(keyword string) error {
	tok := c.Peek()
	if tok.Kind != Text || tok.Value != keyword {
		return c.Failf(tok.Position, "%s expected.", keyword)
	}
	c.advance()
	return nil
}

// EatOpenParen consumes "(" and rejects whitespace directly after it.
func (c *Context) EatOpenParen() error {
	if err := c.eat(OpenParen); err != nil {
		return err
	}
	if c.next < len(c.tokens) && c.tokens[c.next].Kind == Whitespace {
		return c.Fail(c.tokens[c.next].Position, "Unexpected whitespace.")
	}
	return nil
}

// EatCloseParen consumes ")".
func (c *Context) EatCloseParen() error { return c.eat(CloseParen) }

// EatComma consumes ",".
func (c *Context) EatComma() error { return c.eat(Comma) }

func (c *Context) eat(kind TokenKind) error {
	tok := c.Peek()
	if tok.Kind != kind {
		return c.Failf(tok.Position, "%s expected.", kind)
	}
	c.advance()
	return nil
}

// TryEat consumes the next token when it has the given kind.
func (c *Context) TryEat(kind TokenKind) bool {
	if c.Peek().Kind != kind {
		return false
	}
	c.advance()
	return true
}

func (c *Context) eatEnd() error {
	tok := c.Peek()
	if tok.Kind != End {
		return c.Fail(tok.Position, "End of expression expected.")
	}
	return nil
}

// ParseQuotedText consumes a quoted literal and returns its text and
// position.
func (c *Context) ParseQuotedText() (string, int, error) {
	tok := c.Peek()
	if tok.Kind != QuotedText {
		return "", 0, c.Fail(tok.Position, "Value between quotes expected.")
	}
	c.advance()
	return tok.Value, tok.Position, nil
}

// ParseFieldChain resolves a chain on the current resource type. Tokens may
// follow the chain.
func (c *Context) ParseFieldChain(pattern *Pattern) (*ast.FieldChain, error) {
	return c.parseChain(pattern, ChainEmbedded)
}

// RequireFilterable fails when any field of the chain does not allow
// filtering.
func (c *Context) RequireFilterable(chain *ast.FieldChain) error {
	offset := 0
	for _, f := range chain.Fields {
		pos := chain.Position + offset
		offset += len(f.PublicName()) + 1
		if f.Capabilities().Has(resource.CapFilter) {
			continue
		}
		switch f.(type) {
		case *resource.Attribute:
			return c.Failf(pos, "Filtering on attribute '%s' is not allowed.", f.PublicName())
		default:
			return c.Failf(pos, "Filtering on relationship '%s' is not allowed.", f.PublicName())
		}
	}
	return nil
}
