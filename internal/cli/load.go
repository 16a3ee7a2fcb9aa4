package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/apiquery/internal/config"
	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/document"
	"github.com/roach88/apiquery/internal/engine"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
)

// environment is what commands build from the global flags: the
// configuration, the frozen schema and an engine over it.
type environment struct {
	config     *config.Config
	registry   *resource.Registry
	engine     *engine.Engine
	logger     *slog.Logger
	schemaPath string
}

// loadEnvironment loads the configuration and schema. Failures are output
// through f and returned as command errors.
func loadEnvironment(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*environment, error) {
	logger := newLogger(opts, cmd.ErrOrStderr())

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, commandError(f, ErrCodeConfig, "loading configuration", err)
	}

	schemaPath := opts.Schema
	if schemaPath == "" {
		schemaPath = cfg.Schema
	}
	if schemaPath == "" {
		return nil, commandError(f, ErrCodeNotFound, fmt.Sprintf("no schema: set --schema or schema in %s", opts.Config), nil)
	}
	f.VerboseLog("Loading schema %s", schemaPath)

	reg, err := resource.Load(schemaPath)
	if err != nil {
		return nil, commandError(f, ErrCodeSchema, "loading schema", err)
	}
	if err := cfg.CheckEndpoints(reg); err != nil {
		return nil, commandError(f, ErrCodeConfig, "checking endpoints", err)
	}
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return nil, commandError(f, ErrCodeConfig, "configuring engine", err)
	}

	return &environment{
		config:     cfg,
		registry:   reg,
		engine:     engine.New(reg, append(engineOpts, engine.WithLogger(logger))...),
		logger:     logger,
		schemaPath: schemaPath,
	}, nil
}

// requestArgs splits the positional arguments of a request command:
// an endpoint name and an optional query string with or without its
// leading '?'. "blogs?sort=title" is accepted as a single argument.
func requestArgs(args []string) (endpoint, rawQuery string) {
	endpoint = args[0]
	if len(args) > 1 {
		rawQuery = args[1]
	} else if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint, rawQuery = endpoint[:i], endpoint[i+1:]
	}
	return endpoint, strings.TrimPrefix(rawQuery, "?")
}

// endpoint resolves an endpoint name. Failures are output through f.
func (env *environment) endpoint(f *OutputFormatter, name string) (constraint.Endpoint, error) {
	ep, err := env.config.Endpoint(env.registry, name)
	if err != nil {
		return constraint.Endpoint{}, commandError(f, ErrCodeNotFound, "resolving endpoint", err)
	}
	return ep, nil
}

// read parses and validates a request without compiling it.
func (env *environment) read(f *OutputFormatter, args []string) (*constraint.Set, error) {
	name, raw := requestArgs(args)
	ep, err := env.endpoint(f, name)
	if err != nil {
		return nil, err
	}
	set, err := env.engine.Read(ep, raw)
	if err != nil {
		return nil, requestError(f, err)
	}
	return set, nil
}

// plan compiles a request.
func (env *environment) plan(f *OutputFormatter, args []string) (*plan.Query, error) {
	name, raw := requestArgs(args)
	ep, err := env.endpoint(f, name)
	if err != nil {
		return nil, err
	}
	q, err := env.engine.Plan(ep, raw)
	if err != nil {
		return nil, requestError(f, err)
	}
	return q, nil
}

// requestError outputs the error document of a rejected query string. Any
// other failure is a command error.
func requestError(f *OutputFormatter, err error) error {
	if list, ok := constraint.AsErrorList(err); ok {
		return rejected(f, list)
	}
	return commandError(f, ErrCodeRequest, "reading query string", err)
}

// rejected outputs the error document of a rejected request.
func rejected(f *OutputFormatter, list *constraint.ErrorList) error {
	if err := f.Document(document.Errors(list)); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: query string rejected with %d error(s)", ErrCodeRequest, len(list.Errors)))
}
