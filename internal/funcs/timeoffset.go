package funcs

import (
	"time"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/compile"
	"github.com/roach88/apiquery/internal/parse"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/value"
)

const keywordTimeOffset = "timeOffset"

// TimeOffset is the current time shifted by a signed duration, resolved
// when the filter is compiled: timeOffset('-24h'), timeOffset('3d').
type TimeOffset struct {
	Text   string
	Offset time.Duration
}

func (o *TimeOffset) ReturnType() value.Type { return value.TypeTime }
func (o *TimeOffset) String() string         { return keywordTimeOffset + "(" + ast.Quote(o.Text) + ")" }

// TimeOffsetFunc registers timeOffset as a comparison operand.
var TimeOffsetFunc = Extension{
	Function: parse.Function{
		Name:  keywordTimeOffset,
		Usage: parse.InOperand,
		Parse: parseTimeOffset,
	},
	Node:    &TimeOffset{},
	Compile: compileTimeOffset,
}

func parseTimeOffset(c *parse.Context) (ast.Expression, error) {
	if err := c.EatKeyword(keywordTimeOffset); err != nil {
		return nil, err
	}
	if err := c.EatOpenParen(); err != nil {
		return nil, err
	}
	text, pos, err := c.ParseQuotedText()
	if err != nil {
		return nil, err
	}
	v, err := value.Parse(text, value.TypeDuration)
	if err != nil {
		return nil, c.Fail(pos, err.Error())
	}
	if err := c.EatCloseParen(); err != nil {
		return nil, err
	}
	return &TimeOffset{Text: text, Offset: time.Duration(v.(value.Duration))}, nil
}

func compileTimeOffset(c *compile.Compiler, node ast.Expression, _ *compile.Scope) (plan.Expr, error) {
	o := node.(*TimeOffset)
	return &plan.Const{Value: value.NewTime(c.Clock().Now().Add(o.Offset))}, nil
}
