package funcs

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/compile"
	"github.com/roach88/apiquery/internal/parse"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/value"
)

const keywordSum = "sum"

// Sum adds a numeric selector over the elements of a to-many
// relationship: sum(comments,numStars). The selector is a numeric
// attribute chain or another sum, expressed on the relationship's target.
type Sum struct {
	Target   *ast.FieldChain
	Selector ast.Expression
}

func (s *Sum) ReturnType() value.Type { return s.Selector.ReturnType() }
func (s *Sum) String() string         { return ast.Call(keywordSum, s.Target, s.Selector) }

// SumFunc registers sum as a comparison operand and sort element.
var SumFunc = Extension{
	Function: parse.Function{
		Name:  keywordSum,
		Usage: parse.InOperand | parse.InSort,
		Parse: parseSum,
	},
	Node:    &Sum{},
	Compile: compileSum,
}

func parseSum(c *parse.Context) (ast.Expression, error) {
	if err := c.EatKeyword(keywordSum); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	target, err := c.ParseFieldChain(parse.ToOneChainEndingInToMany)
	if err != nil {
		return nil, err
	}
	if err := c.RequireFilterable(target); err != nil {
		return nil, err
	}
	if err := c.EatComma(); err != nil {
		return nil, err
	}

	rel, _ := target.Relationship()
	var selector ast.Expression
	err = c.InResourceType(rel.Target(), func() error {
		var err error
		selector, err = parseSumSelector(c)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &Sum{Target: target, Selector: selector}, nil
}

func parseSumSelector(c *parse.Context) (ast.Expression, error) {
	tok := c.Peek()
	if tok.Kind == parse.Text && tok.Value == keywordSum && c.PeekAfter().Kind == parse.OpenParen {
		return parseSum(c)
	}
	chain, err := c.ParseFieldChain(parse.ToOneChainEndingInAttribute)
	if err != nil {
		return nil, err
	}
	if !chain.ReturnType().IsNumeric() {
		return nil, c.Fail(chain.Position, "Attribute of numeric type expected.")
	}
	if err := c.RequireFilterable(chain); err != nil {
		return nil, err
	}
	return chain, nil
}

func compileSum(c *compile.Compiler, node ast.Expression, scope *compile.Scope) (plan.Expr, error) {
	s := node.(*Sum)
	source, elem, err := c.Collection(s.Target, scope)
	if err != nil {
		return nil, err
	}
	inner := scope.Enter(elem)
	selector, err := c.Expression(s.Selector, inner)
	if err != nil {
		return nil, err
	}
	return &plan.Aggregate{Op: plan.Sum, Source: source, Lambda: inner.Lambda(selector)}, nil
}
