package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/dataset"
	"github.com/roach88/apiquery/internal/document"
	"github.com/roach88/apiquery/internal/engine"
	"github.com/roach88/apiquery/internal/funcs"
	"github.com/roach88/apiquery/internal/memsource"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
	"github.com/roach88/apiquery/internal/store"
	"github.com/roach88/apiquery/internal/testutil"
)

// Provider names, in the order requests run against them. The first
// provider's rows are checked against the expectations; the others must
// produce the same document.
const (
	ProviderMemory = "memory"
	ProviderSQLite = "sqlite"
)

type provider struct {
	name string
	plan.Provider
}

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and error ids.
type Harness struct {
	engine    *engine.Engine
	providers []provider
	logger    *slog.Logger
}

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the engine and the providers.
// Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario loads its data into fresh providers for isolation: the
// in-memory source and an in-memory SQLite store.
//
// Execution flow:
// 1. Load the schema and the dataset
// 2. Create the engine with the scenario's functions, options and clock
// 3. Plan each request; request errors become error documents
// 4. Execute the plan with every provider and compare the documents
// 5. Check the request's expectation
//
// A returned error means the scenario could not run. Failed expectations
// are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := resource.Load(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	data, err := dataset.Load(reg, scenario.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	eng, err := newEngine(scenario, reg, o.logger)
	if err != nil {
		return nil, err
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:", reg, store.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	if err := st.Import(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to import data: %w", err)
	}

	h := &Harness{
		engine: eng,
		providers: []provider{
			{ProviderMemory, memsource.New(data, memsource.WithLogger(o.logger))},
			{ProviderSQLite, st},
		},
		logger: o.logger,
	}

	result := NewResult()
	for _, req := range scenario.Requests {
		if err := h.execute(ctx, req, result); err != nil {
			return nil, fmt.Errorf("request %s: %w", req.Name, err)
		}
	}
	return result, nil
}

func newEngine(s *Scenario, reg *resource.Registry, logger *slog.Logger) (*engine.Engine, error) {
	exts, err := funcs.Lookup(s.Functions...)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewFixedClock()
	if s.Now != "" {
		now, err := time.Parse(time.RFC3339, s.Now)
		if err != nil {
			return nil, fmt.Errorf("now: %w", err)
		}
		clock.Set(now)
	}

	opts := []engine.Option{
		engine.WithFunctions(exts...),
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequentialIDGenerator()),
		engine.WithLogger(logger),
	}
	if s.Options != nil {
		opts = append(opts, engine.WithOptions(*s.Options))
	}
	return engine.New(reg, opts...), nil
}

// execute runs one request. Only failures that prevent the request from
// running are returned.
func (h *Harness) execute(ctx context.Context, req Request, result *Result) error {
	rt, ok := h.engine.Registry().Type(req.Resource)
	if !ok {
		return fmt.Errorf("unknown resource type %q", req.Resource)
	}
	ep := constraint.Endpoint{Name: req.Resource, Resource: rt, Parameters: req.Parameters}

	q, err := h.engine.Plan(ep, req.Query)
	if list, ok := constraint.AsErrorList(err); ok {
		result.AddRequest(req, document.Errors(list))
		for _, e := range checkErrors(req, list) {
			result.AddError(e.Error())
		}
		return nil
	}
	if err != nil {
		return err
	}

	var (
		first     []*plan.Row
		reference []byte
	)
	for i, p := range h.providers {
		rows, err := p.Execute(ctx, q)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		doc, err := document.MarshalData(rows)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if i == 0 {
			first, reference = rows, doc
			continue
		}
		if !bytes.Equal(doc, reference) {
			result.AddError((&AssertionError{
				Request:  req.Name,
				Type:     "provider parity: " + p.name,
				Expected: string(reference),
				Actual:   string(doc),
			}).Error())
		}
	}
	h.logger.Debug("request executed", "request", req.Name, "rows", len(first))

	result.AddRequest(req, document.Data(first))
	for _, e := range checkRows(req, first) {
		result.AddError(e.Error())
	}
	return nil
}
