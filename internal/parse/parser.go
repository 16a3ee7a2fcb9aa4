// Package parse turns query string parameter values into typed syntax trees.
//
// Each parameter value is tokenized, then parsed by a recursive-descent
// parser that resolves field chains against a frozen resource registry. The
// first problem found aborts the parse and is returned as an *Error carrying
// the character position of the offending token.
//
// The filter grammar is open for extension: callers register Functions that
// are consulted before the built-in functions whenever a keyword is parsed.
package parse

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
)

// Usage is the set of grammar positions in which a Function may appear.
type Usage uint8

const (
	// InFilter allows the function wherever a filter is expected. Such
	// functions must return value.TypeBool.
	InFilter Usage = 1 << iota
	// InOperand allows the function as a comparison operand.
	InOperand
	// InSort allows the function as a sort element.
	InSort
)

// Function is a caller-registered filter function.
type Function struct {
	// Name is the keyword that selects the function.
	Name string
	// Matches, when set, replaces the exact comparison with Name.
	Matches func(keyword string) bool
	Usage   Usage
	// Parse is called with the keyword as the next token. It must consume
	// the complete call, including the keyword and both parentheses.
	Parse func(c *Context) (ast.Expression, error)
}

func (f Function) matches(keyword string, usage Usage) bool {
	if f.Usage&usage == 0 {
		return false
	}
	if f.Matches != nil {
		return f.Matches(keyword)
	}
	return f.Name == keyword
}

// Parser parses parameter values against a registry. It is immutable and
// safe for concurrent use.
type Parser struct {
	registry  *resource.Registry
	functions []Function
}

// Option configures a Parser.
type Option func(*Parser)

// WithFunctions registers extension functions. Functions registered earlier
// win when several match the same keyword.
func WithFunctions(fns ...Function) Option {
	return func(p *Parser) {
		p.functions = append(p.functions, fns...)
	}
}

// New creates a parser for the given registry.
func New(registry *resource.Registry, opts ...Option) *Parser {
	p := &Parser{registry: registry}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the registry the parser resolves against.
func (p *Parser) Registry() *resource.Registry { return p.registry }

func (p *Parser) function(keyword string, usage Usage) (Function, bool) {
	for _, fn := range p.functions {
		if fn.matches(keyword, usage) {
			return fn, true
		}
	}
	return Function{}, false
}

// ParseFilter parses a filter parameter value on resource type rt.
func (p *Parser) ParseFilter(text string, rt *resource.Type) (ast.Expression, error) {
	c := p.newContext(text, rt)
	expr, err := c.ParseFilter()
	if err != nil {
		return nil, err
	}
	if err := c.eatEnd(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParseFieldChain resolves a chain that must make up the whole value.
func (p *Parser) ParseFieldChain(text string, rt *resource.Type, pattern *Pattern) (*ast.FieldChain, error) {
	c := p.newContext(text, rt)
	chain, err := c.parseChain(pattern, ChainStandalone)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// ParseScope parses the bracketed part of a scoped parameter name, such as
// "posts.comments" in filter[posts.comments]. Every relationship on the
// path must allow inclusion.
func (p *Parser) ParseScope(text string, rt *resource.Type) (*ast.FieldChain, error) {
	c := p.newContext(text, rt)
	chain, err := c.parseScopeChain(ChainStandalone)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// ParseFilterScope parses the scope of a filter[...] parameter. Every
// relationship on the path must also allow filtering.
func (p *Parser) ParseFilterScope(text string, rt *resource.Type) (*ast.FieldChain, error) {
	c := p.newContext(text, rt)
	chain, err := c.parseScopeChain(ChainStandalone)
	if err != nil {
		return nil, err
	}
	if err := c.RequireFilterable(chain); err != nil {
		return nil, err
	}
	return chain, nil
}
