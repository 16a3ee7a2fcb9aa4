// Package funcs provides optional filter functions built on the parser and
// compiler extension points: sum, isUpperCase and timeOffset.
//
// Each Extension pairs a parse.Function with the compiler for the AST node
// it produces. Register both halves with Options.
package funcs

import (
	"fmt"
	"slices"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/compile"
	"github.com/roach88/apiquery/internal/parse"
)

// Extension is a parser function plus the compiler for its node type.
type Extension struct {
	Function parse.Function
	Node     ast.Expression
	Compile  compile.ExtensionFunc
}

// Name is the function keyword.
func (e Extension) Name() string { return e.Function.Name }

var registry = []Extension{SumFunc, IsUpperCaseFunc, TimeOffsetFunc}

// Names lists the available functions.
func Names() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.Name()
	}
	return names
}

// Lookup finds the extensions with the given names, in order.
func Lookup(names ...string) ([]Extension, error) {
	out := make([]Extension, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(registry, func(e Extension) bool { return e.Name() == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown function %q (available: %v)", name, Names())
		}
		out = append(out, registry[i])
	}
	return out, nil
}

// All returns every available extension.
func All() []Extension {
	return slices.Clone(registry)
}

// Options returns the parser and compiler options that register exts.
func Options(exts ...Extension) ([]parse.Option, []compile.Option) {
	fns := make([]parse.Function, len(exts))
	copts := make([]compile.Option, len(exts))
	for i, e := range exts {
		fns[i] = e.Function
		copts[i] = compile.WithExtension(e.Node, e.Compile)
	}
	return []parse.Option{parse.WithFunctions(fns...)}, copts
}
