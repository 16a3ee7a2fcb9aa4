package funcs

import (
	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/compile"
	"github.com/roach88/apiquery/internal/parse"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/value"
)

const keywordIsUpperCase = "isUpperCase"

// IsUpperCase tests whether a text attribute equals its upper-case form.
type IsUpperCase struct {
	Target *ast.FieldChain
}

func (u *IsUpperCase) ReturnType() value.Type { return value.TypeBool }
func (u *IsUpperCase) String() string         { return ast.Call(keywordIsUpperCase, u.Target) }

// IsUpperCaseFunc registers isUpperCase as a filter.
var IsUpperCaseFunc = Extension{
	Function: parse.Function{
		Name:  keywordIsUpperCase,
		Usage: parse.InFilter,
		Parse: parseIsUpperCase,
	},
	Node:    &IsUpperCase{},
	Compile: compileIsUpperCase,
}

func parseIsUpperCase(c *parse.Context) (ast.Expression, error) {
	if err := c.EatKeyword(keywordIsUpperCase); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	target, err := c.ParseStringAttributeChain()
	if err != nil {
		return nil, err
	}
	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &IsUpperCase{Target: target}, nil
}

func compileIsUpperCase(c *compile.Compiler, node ast.Expression, scope *compile.Scope) (plan.Expr, error) {
	target, err := c.FieldChain(node.(*IsUpperCase).Target, scope)
	if err != nil {
		return nil, err
	}
	return &plan.Compare{
		Op:    plan.Eq,
		Left:  target,
		Right: &plan.Call{Func: plan.Upper, Args: []plan.Expr{target}},
	}, nil
}
