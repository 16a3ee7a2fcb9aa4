package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/apiquery/internal/compile"
	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/funcs"
	"github.com/roach88/apiquery/internal/parse"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
)

// Engine turns query strings into plans and runs them.
type Engine struct {
	registry *resource.Registry
	parser   *parse.Parser
	reader   *constraint.Reader
	compiler *compile.Compiler
	logger   *slog.Logger
}

type settings struct {
	functions []funcs.Extension
	options   constraint.Options
	ids       constraint.IDGenerator
	clock     compile.Clock
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*settings)

// WithFunctions enables optional filter functions.
func WithFunctions(exts ...funcs.Extension) Option {
	return func(s *settings) { s.functions = append(s.functions, exts...) }
}

// WithOptions sets the reader options (page sizes, unknown parameters).
func WithOptions(opts constraint.Options) Option {
	return func(s *settings) { s.options = opts }
}

// WithIDGenerator sets the generator for error object ids.
func WithIDGenerator(ids constraint.IDGenerator) Option {
	return func(s *settings) { s.ids = ids }
}

// WithClock sets the clock time-relative functions read.
func WithClock(clock compile.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// WithLogger sets the logger passed to every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New creates an Engine for a frozen registry.
func New(reg *resource.Registry, opts ...Option) *Engine {
	s := settings{options: constraint.DefaultOptions(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	popts, copts := funcs.Options(s.functions...)
	copts = append(copts, compile.WithLogger(s.logger))
	if s.clock != nil {
		copts = append(copts, compile.WithClock(s.clock))
	}
	ropts := []constraint.ReaderOption{constraint.WithOptions(s.options), constraint.WithLogger(s.logger)}
	if s.ids != nil {
		ropts = append(ropts, constraint.WithIDGenerator(s.ids))
	}

	p := parse.New(reg, popts...)
	return &Engine{
		registry: reg,
		parser:   p,
		reader:   constraint.NewReader(p, ropts...),
		compiler: compile.New(copts...),
		logger:   s.logger,
	}
}

// Registry returns the registry the engine resolves names against.
func (e *Engine) Registry() *resource.Registry { return e.registry }

// Parser returns the configured parser.
func (e *Engine) Parser() *parse.Parser { return e.parser }

// Compiler returns the configured compiler.
func (e *Engine) Compiler() *compile.Compiler { return e.compiler }

// Options returns the reader options in effect.
func (e *Engine) Options() constraint.Options { return e.reader.Options() }

// Read parses the raw query string of a request to ep.
func (e *Engine) Read(ep constraint.Endpoint, rawQuery string) (*constraint.Set, error) {
	params, err := constraint.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return e.reader.Read(ep, params)
}

// Plan reads and compiles the raw query string of a request to ep.
func (e *Engine) Plan(ep constraint.Endpoint, rawQuery string) (*plan.Query, error) {
	set, err := e.Read(ep, rawQuery)
	if err != nil {
		return nil, err
	}
	q, err := e.compiler.Compile(set)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", ep.Name, err)
	}
	return q, nil
}

// Run plans a request to ep and executes it with provider.
func (e *Engine) Run(ctx context.Context, provider plan.Provider, ep constraint.Endpoint, rawQuery string) ([]*plan.Row, error) {
	q, err := e.Plan(ep, rawQuery)
	if err != nil {
		return nil, err
	}
	rows, err := provider.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", ep.Name, err)
	}
	e.logger.Debug("request served", "endpoint", ep.Name, "resource", q.Resource, "rows", len(rows))
	return rows, nil
}

// Endpoint returns an endpoint over the named resource type that allows
// every parameter.
func (e *Engine) Endpoint(resourceName string) (constraint.Endpoint, error) {
	rt, ok := e.registry.Type(resourceName)
	if !ok {
		return constraint.Endpoint{}, fmt.Errorf("unknown resource type %q", resourceName)
	}
	return constraint.Endpoint{Name: resourceName, Resource: rt}, nil
}
