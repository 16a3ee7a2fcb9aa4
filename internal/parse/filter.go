package parse

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/value"
)

const (
	keywordNot     = "not"
	keywordAny     = "any"
	keywordHas     = "has"
	keywordCount   = "count"
	keywordIsType  = "isType"
	keywordNull    = "null"
	msgFilterFunc  = "Filter function expected."
	msgRightTerm   = "Function, field name or value between quotes expected."
	msgLeftTerm    = "Function or field name expected."
	msgStringMatch = "Attribute of type 'String' expected."
)

func isComparison(keyword string) (ast.ComparisonOperator, bool) {
	for _, op := range ast.ComparisonOperators {
		if string(op) == keyword {
			return op, true
		}
	}
	return "", false
}

func isMatch(keyword string) (ast.MatchKind, bool) {
	switch kind := ast.MatchKind(keyword); kind {
	case ast.Contains, ast.StartsWith, ast.EndsWith:
		return kind, true
	}
	return "", false
}

// ParseFilter parses one filter function on the current resource type.
// Registered functions are consulted before the built-in ones.
func (c *Context) ParseFilter() (ast.Expression, error) {
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, msgFilterFunc)
	}

	if fn, ok := c.parser.function(tok.Value, InFilter); ok {
		expr, err := fn.Parse(c)
		if err != nil {
			return nil, err
		}
		if expr.ReturnType() != value.TypeBool {
			return nil, c.Fail(tok.Position, msgFilterFunc)
		}
		return expr, nil
	}

	switch kw := tok.Value; {
	case kw == keywordNot:
		return c.parseNot()
	case kw == string(ast.And) || kw == string(ast.Or):
		return c.parseLogical(ast.LogicalOperator(kw))
	case kw == keywordAny:
		return c.parseAnyOf()
	case kw == keywordHas:
		return c.parseHas()
	case kw == keywordIsType:
		return c.parseIsType()
	}
	if op, ok := isComparison(tok.Value); ok {
		return c.parseComparison(op)
	}
	if kind, ok := isMatch(tok.Value); ok {
		return c.parseMatch(kind)
	}
	return nil, c.Fail(tok.Position, msgFilterFunc)
}

func (c *Context) parseNot() (ast.Expression, error) {
	if err := c.EatKeyword(keywordNot); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	term, err := c.ParseFilter()
	if err != nil {
		return nil, err
	}
	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.Not{Term: term}, nil
}

func (c *Context) parseLogical(op ast.LogicalOperator) (ast.Expression, error) {
	if err := c.EatKeyword(string(op)); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}

	first, err := c.ParseFilter()
	if err != nil {
		return nil, err
	}
	terms := []ast.Expression{first}

	// At least two terms.
	if err := c.EatComma(); err != nil {
		return nil, err
	}
	for {
		term, err := c.ParseFilter()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		if !c.TryEat(Comma) {
			break
		}
	}

	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.Logical{Operator: op, Terms: terms}, nil
}

func (c *Context) parseComparison(op ast.ComparisonOperator) (ast.Expression, error) {
	if err := c.EatKeyword(string(op)); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}

	left, err := c.parseLeftOperand()
	if err != nil {
		return nil, err
	}
	if err := c.EatComma(); err != nil {
		return nil, err
	}
	right, err := c.parseRightOperand(op, left)
	if err != nil {
		return nil, err
	}
	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.Comparison{Operator: op, Left: left, Right: right}, nil
}

// parseOperandTerm parses a count, a registered operand function or an
// attribute chain. ok is false when the next token cannot start a term.
func (c *Context) parseOperandTerm() (expr ast.Expression, ok bool, err error) {
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, false, nil
	}
	if fn, found := c.parser.function(tok.Value, InOperand); found {
		expr, err = fn.Parse(c)
		return expr, true, err
	}
	if tok.Value == keywordCount && c.PeekAfter().Kind == OpenParen {
		expr, err = c.parseCount()
		return expr, true, err
	}

	chain, err := c.ParseFieldChain(ToOneChainEndingInAttribute)
	if err != nil {
		return nil, true, err
	}
	if err := c.RequireFilterable(chain); err != nil {
		return nil, true, err
	}
	return chain, true, nil
}

func (c *Context) parseLeftOperand() (ast.Expression, error) {
	pos := c.Position()
	expr, ok, err := c.parseOperandTerm()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.Fail(pos, msgLeftTerm)
	}
	return expr, nil
}

func (c *Context) parseRightOperand(op ast.ComparisonOperator, left ast.Expression) (ast.Expression, error) {
	tok := c.Peek()

	switch {
	case tok.Kind == QuotedText:
		c.advance()
		v, err := value.Parse(tok.Value, left.ReturnType())
		if err != nil {
			return nil, c.Fail(tok.Position, err.Error())
		}
		return ast.NewLiteral(v), nil

	case tok.Kind == Text && tok.Value == keywordNull:
		if op != ast.Equals {
			return nil, c.Fail(tok.Position, msgRightTerm)
		}
		if err := c.requireNullable(tok.Position, left); err != nil {
			return nil, err
		}
		c.advance()
		return ast.NewLiteral(value.Null{}), nil
	}

	right, ok, err := c.parseOperandTerm()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.Fail(tok.Position, msgRightTerm)
	}
	if !value.Comparable(left.ReturnType(), right.ReturnType()) {
		return nil, c.Failf(tok.Position, "Values of type '%s' and '%s' cannot be compared.",
			left.ReturnType(), right.ReturnType())
	}
	return right, nil
}

// requireNullable accepts null against nullable attributes and against
// chains that traverse a to-one relationship, which may itself be null.
func (c *Context) requireNullable(pos int, left ast.Expression) error {
	chain, ok := left.(*ast.FieldChain)
	if !ok {
		return c.Fail(pos, msgRightTerm)
	}
	attr, _ := chain.Attribute()
	if attr.Nullable() || len(chain.Fields) > 1 {
		return nil
	}
	return c.Failf(pos, "Attribute '%s' is not nullable.", attr.PublicName())
}

func (c *Context) parseMatch(kind ast.MatchKind) (ast.Expression, error) {
	if err := c.EatKeyword(string(kind)); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	target, err := c.parseStringAttributeChain()
	if err != nil {
		return nil, err
	}
	if err := c.EatComma(); err != nil {
		return nil, err
	}
	text, _, err := c.ParseQuotedText()
	if err != nil {
		return nil, err
	}
	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.Match{Kind: kind, Target: target, Text: ast.NewLiteral(value.NewString(text))}, nil
}

// parseStringAttributeChain parses a filterable chain ending in a String
// attribute.
func (c *Context) parseStringAttributeChain() (*ast.FieldChain, error) {
	chain, err := c.ParseFieldChain(ToOneChainEndingInAttribute)
	if err != nil {
		return nil, err
	}
	if chain.ReturnType() != value.TypeString {
		return nil, c.Fail(chain.Position, msgStringMatch)
	}
	if err := c.RequireFilterable(chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// ParseStringAttributeChain is exported for extension functions that take a
// text attribute.
func (c *Context) ParseStringAttributeChain() (*ast.FieldChain, error) {
	return c.parseStringAttributeChain()
}

func (c *Context) parseAnyOf() (ast.Expression, error) {
	if err := c.EatKeyword(keywordAny); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	target, err := c.ParseFieldChain(ToOneChainEndingInAttribute)
	if err != nil {
		return nil, err
	}
	if err := c.RequireFilterable(target); err != nil {
		return nil, err
	}

	var constants []*ast.Literal
	for len(constants) == 0 || c.Peek().Kind == Comma {
		if err := c.EatComma(); err != nil {
			return nil, err
		}
		text, pos, err := c.ParseQuotedText()
		if err != nil {
			return nil, err
		}
		v, err := value.Parse(text, target.ReturnType())
		if err != nil {
			return nil, c.Fail(pos, err.Error())
		}
		constants = append(constants, ast.NewLiteral(v))
	}

	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.AnyOf{Target: target, Constants: constants}, nil
}

func (c *Context) parseHas() (ast.Expression, error) {
	if err := c.EatKeyword(keywordHas); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	target, err := c.ParseFieldChain(ToOneChainEndingInToMany)
	if err != nil {
		return nil, err
	}
	if err := c.RequireFilterable(target); err != nil {
		return nil, err
	}

	var filter ast.Expression
	if c.TryEat(Comma) {
		rel, _ := target.Relationship()
		err := c.InResourceType(rel.Target(), func() error {
			var err error
			filter, err = c.ParseFilter()
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.Has{Target: target, Filter: filter}, nil
}

func (c *Context) parseCount() (*ast.Count, error) {
	if err := c.EatKeyword(keywordCount); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	target, err := c.ParseFieldChain(ToOneChainEndingInToMany)
	if err != nil {
		return nil, err
	}
	if err := c.RequireFilterable(target); err != nil {
		return nil, err
	}
	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.Count{Target: target}, nil
}

func (c *Context) parseIsType() (ast.Expression, error) {
	if err := c.EatKeyword(keywordIsType); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}

	var target *ast.FieldChain
	base := c.rt
	if c.Peek().Kind != Comma {
		var err error
		target, err = c.ParseFieldChain(ToOneChain)
		if err != nil {
			return nil, err
		}
		if err := c.RequireFilterable(target); err != nil {
			return nil, err
		}
		rel, _ := target.Relationship()
		base = rel.Target()
	}
	if err := c.EatComma(); err != nil {
		return nil, err
	}

	derived, err := c.parseDerivedType(base)
	if err != nil {
		return nil, err
	}

	var child ast.Expression
	if c.TryEat(Comma) {
		err := c.InResourceType(derived, func() error {
			var err error
			child, err = c.ParseFilter()
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &ast.IsType{Target: target, DerivedType: derived, Child: child}, nil
}

func (c *Context) parseDerivedType(base *resource.Type) (*resource.Type, error) {
	tok := c.Peek()
	if tok.Kind != Text {
		return nil, c.Fail(tok.Position, "Resource type expected.")
	}
	derived, ok := c.parser.registry.Type(tok.Value)
	if !ok {
		return nil, c.Failf(tok.Position, "Resource type '%s' does not exist.", tok.Value)
	}
	if derived == base || !derived.IsA(base) {
		return nil, c.Failf(tok.Position, "Resource type '%s' is not derived from '%s'.", derived.PublicName(), base.PublicName())
	}
	c.advance()
	return derived, nil
}
