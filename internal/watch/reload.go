package watch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/apiquery/internal/config"
	"github.com/roach88/apiquery/internal/constraint"
	"github.com/roach88/apiquery/internal/document"
	"github.com/roach88/apiquery/internal/engine"
	"github.com/roach88/apiquery/internal/plan"
	"github.com/roach88/apiquery/internal/resource"
)

// Query is a request re-planned on every reload.
type Query struct {
	Endpoint string
	Raw      string
}

// Outcome is the result of planning one query.
type Outcome struct {
	Query Query

	// Plan is set when the query is valid; Errors when it is rejected.
	Plan   *plan.Query
	Errors *constraint.ErrorList

	// Fingerprint identifies the plan or the error document.
	Fingerprint string

	// Changed reports whether the fingerprint differs from the previous
	// reload. Every outcome of the first reload is changed.
	Changed bool
}

// Reloader rebuilds the engine from the configuration and schema files and
// plans its queries against it.
type Reloader struct {
	configPath string
	schemaPath string
	queries    []Query
	logger     *slog.Logger

	previous map[int]string
}

// NewReloader creates a Reloader. A non-empty schemaPath overrides the
// schema the configuration names.
func NewReloader(configPath, schemaPath string, queries []Query, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		configPath: configPath,
		schemaPath: schemaPath,
		queries:    queries,
		logger:     logger,
		previous:   make(map[int]string),
	}
}

// Files returns the files a reload reads: the configuration file and the
// schema it resolves to.
func (r *Reloader) Files() ([]string, error) {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, err
	}
	return []string{r.configPath, r.schema(cfg)}, nil
}

func (r *Reloader) schema(cfg *config.Config) string {
	if r.schemaPath != "" {
		return r.schemaPath
	}
	return cfg.Schema
}

// Reload loads the configuration and schema, then plans every query.
// Request errors are outcomes; only failures to build the engine or to
// resolve an endpoint are returned.
func (r *Reloader) Reload() ([]Outcome, error) {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, err
	}
	path := r.schema(cfg)
	if path == "" {
		return nil, fmt.Errorf("no schema: set --schema or schema in %s", r.configPath)
	}
	reg, err := resource.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckEndpoints(reg); err != nil {
		return nil, err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	eng := engine.New(reg, append(opts, engine.WithLogger(r.logger))...)

	outcomes := make([]Outcome, len(r.queries))
	changed := 0
	for i, q := range r.queries {
		ep, err := cfg.Endpoint(reg, q.Endpoint)
		if err != nil {
			return nil, err
		}
		out := Outcome{Query: q}
		p, err := eng.Plan(ep, q.Raw)
		if list, ok := constraint.AsErrorList(err); ok {
			out.Errors = list
			out.Fingerprint = errorFingerprint(list)
		} else if err != nil {
			return nil, err
		} else {
			out.Plan = p
			out.Fingerprint = document.Fingerprint(p)
		}
		prev, seen := r.previous[i]
		out.Changed = !seen || prev != out.Fingerprint
		if out.Changed {
			changed++
		}
		outcomes[i] = out
	}

	// Commit fingerprints only after every query planned, so a failed
	// reload compares against the last good one.
	for i, out := range outcomes {
		r.previous[i] = out.Fingerprint
	}
	r.logger.Info("queries re-planned", "schema", path, "queries", len(outcomes), "changed", changed)
	return outcomes, nil
}

// errorFingerprint identifies a rejection by its titles and details. Error
// ids are random per request and left out.
func errorFingerprint(list *constraint.ErrorList) string {
	var b strings.Builder
	for _, e := range list.Errors {
		b.WriteString(e.Title)
		b.WriteByte(0)
		b.WriteString(e.Detail)
		b.WriteByte('\n')
	}
	return document.FingerprintText(b.String())
}
