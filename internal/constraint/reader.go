package constraint

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"slices"
	"strings"

	"github.com/roach88/apiquery/internal/ast"
	"github.com/roach88/apiquery/internal/parse"
	"github.com/roach88/apiquery/internal/resource"
)

// Parameter families.
const (
	ParamFilter  = "filter"
	ParamSort    = "sort"
	ParamInclude = "include"
	ParamFields  = "fields"
	ParamPage    = "page"
)

// Families lists every parameter family in canonical order.
var Families = []string{ParamFilter, ParamSort, ParamInclude, ParamFields, ParamPage}

// Param is one decoded query string parameter.
type Param struct {
	Name  string
	Value string
}

// ParseQuery splits a raw query string into decoded parameters, keeping
// their order.
func ParseQuery(raw string) ([]Param, error) {
	var params []Param
	for _, part := range strings.Split(strings.TrimPrefix(raw, "?"), "&") {
		if part == "" {
			continue
		}
		name, val, _ := strings.Cut(part, "=")
		dn, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("decode parameter name %q: %w", name, err)
		}
		dv, err := url.QueryUnescape(val)
		if err != nil {
			return nil, fmt.Errorf("decode parameter %q: %w", dn, err)
		}
		params = append(params, Param{Name: dn, Value: dv})
	}
	return params, nil
}

// Endpoint describes where a request is served: its primary resource type
// and the parameters it accepts.
type Endpoint struct {
	Name     string
	Resource *resource.Type

	// Parameters lists allowed families ("filter") or exact names
	// ("page[size]"). Nil allows every parameter.
	Parameters []string
}

func (e Endpoint) allows(name, family string) bool {
	if e.Parameters == nil {
		return true
	}
	return slices.Contains(e.Parameters, family) || slices.Contains(e.Parameters, name)
}

// Options tune defaulting and limits.
type Options struct {
	// DefaultPageSize applies to the primary scope when page[size] does not
	// set it. 0 means unlimited.
	DefaultPageSize int `yaml:"defaultPageSize"`

	// MaxPageSize and MaxPageNumber cap page values. 0 disables the cap.
	MaxPageSize   int `yaml:"maxPageSize"`
	MaxPageNumber int `yaml:"maxPageNumber"`

	// AllowUnknownParameters ignores parameters outside the known families
	// instead of failing the request.
	AllowUnknownParameters bool `yaml:"allowUnknownParameters"`
}

// DefaultOptions returns the standard engine options.
func DefaultOptions() Options {
	return Options{DefaultPageSize: 10}
}

// Reader turns query string parameters into a validated constraint Set.
//
// A Reader is immutable after construction and safe for concurrent use.
type Reader struct {
	parser *parse.Parser
	opts   Options
	ids    IDGenerator
	logger *slog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithOptions sets the engine options.
func WithOptions(opts Options) ReaderOption {
	return func(r *Reader) { r.opts = opts }
}

// WithIDGenerator sets the error id generator. The default generates UUIDv7.
func WithIDGenerator(ids IDGenerator) ReaderOption {
	return func(r *Reader) { r.ids = ids }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) { r.logger = logger }
}

// NewReader creates a Reader that parses values with p.
func NewReader(p *parse.Parser, opts ...ReaderOption) *Reader {
	r := &Reader{
		parser: p,
		opts:   DefaultOptions(),
		ids:    uuidGenerator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Options returns the reader's options.
func (r *Reader) Options() Options { return r.opts }

// readState collects per-request values that are combined after every
// parameter has been read.
type readState struct {
	set     *Set
	filters map[*Scope][]ast.Expression
	sizes   map[*Scope]int
	numbers map[*Scope]int
}

// Read validates params for ep. Every failing parameter contributes one
// error object; the returned error is an *ErrorList when any failed.
func (r *Reader) Read(ep Endpoint, params []Param) (*Set, error) {
	st := &readState{
		set: &Set{
			Resource:  ep.Resource,
			Fieldsets: make(map[*resource.Type]*ast.SparseFieldSet),
		},
		filters: make(map[*Scope][]ast.Expression),
		sizes:   make(map[*Scope]int),
		numbers: make(map[*Scope]int),
	}
	st.set.scope(nil)

	var errs []*ErrorObject
	for _, p := range params {
		if obj := r.readParam(ep, st, p); obj != nil {
			errs = append(errs, obj)
		}
	}
	if len(errs) > 0 {
		return nil, &ErrorList{Errors: errs}
	}

	for _, sc := range st.set.Scopes {
		sc.Filter = ast.NewLogical(ast.And, st.filters[sc]...)
		page, obj := r.pagination(ep, sc, st)
		if obj != nil {
			errs = append(errs, obj)
		}
		sc.Page = page
	}
	if len(errs) > 0 {
		return nil, &ErrorList{Errors: errs}
	}
	return st.set, nil
}

func (r *Reader) pagination(ep Endpoint, sc *Scope, st *readState) (*ast.Pagination, *ErrorObject) {
	size, hasSize := st.sizes[sc]
	number, hasNumber := st.numbers[sc]
	if !hasSize && sc.Path == nil {
		size, hasSize = r.opts.DefaultPageSize, r.opts.DefaultPageSize > 0
	}
	if !hasSize && !hasNumber {
		return nil, nil
	}
	if !hasNumber {
		number = 1
	}
	// The row offset (number-1)*size must fit in an int.
	if size > 1 && number-1 > math.MaxInt/size {
		return nil, r.newError(ParamPage+"[number]", TitlePagination, overflowDetail(sc, ep.Resource, size), nil)
	}
	return &ast.Pagination{Number: number, Size: size}, nil
}

func overflowDetail(sc *Scope, primary *resource.Type, size int) string {
	name := sc.Name()
	if name == "" {
		name = primary.PublicName()
	}
	return fmt.Sprintf("Page number cannot be higher than %d for scope '%s' with page size %d.", math.MaxInt/size+1, name, size)
}

// splitName splits "filter[posts]" into its family and bracket parts.
func splitName(name string) (family, key string, bracketed, ok bool) {
	open := strings.IndexByte(name, '[')
	if open < 0 {
		return name, "", false, !strings.ContainsRune(name, ']')
	}
	if !strings.HasSuffix(name, "]") {
		return "", "", false, false
	}
	key = name[open+1 : len(name)-1]
	if strings.ContainsAny(key, "[]") {
		return "", "", false, false
	}
	return name[:open], key, true, true
}

func (r *Reader) readParam(ep Endpoint, st *readState, p Param) *ErrorObject {
	family, key, bracketed, ok := splitName(p.Name)
	if ok {
		ok = knownShape(family, key, bracketed)
	}
	if !ok {
		if r.opts.AllowUnknownParameters {
			r.logger.Debug("ignoring unknown parameter", "param", p.Name)
			return nil
		}
		return r.newError(p.Name, TitleUnknown, fmt.Sprintf("Query string parameter '%s' is unknown.", p.Name), nil)
	}
	if !ep.allows(p.Name, family) {
		return r.newError(p.Name, TitleNotAllowed, fmt.Sprintf("Query string parameter '%s' cannot be used at this endpoint.", p.Name), nil)
	}

	r.logger.Debug("reading parameter", "param", p.Name, "scope", key)

	switch family {
	case ParamFilter:
		return r.readFilter(ep, st, p, key)
	case ParamSort:
		return r.readSort(ep, st, p, key)
	case ParamInclude:
		return r.readInclude(ep, st, p)
	case ParamFields:
		return r.readFields(st, p, key)
	default:
		return r.readPage(ep, st, p, key)
	}
}

func knownShape(family, key string, bracketed bool) bool {
	switch family {
	case ParamFilter, ParamSort:
		return true
	case ParamInclude:
		return !bracketed
	case ParamFields:
		return bracketed
	case ParamPage:
		return bracketed && (key == "size" || key == "number")
	}
	return false
}

type scopeParser func(text string, rt *resource.Type) (*ast.FieldChain, error)

// readScope resolves the bracketed scope of filter and sort parameters.
func (r *Reader) readScope(ep Endpoint, st *readState, p Param, key, title string, parseScope scopeParser) (*Scope, *ErrorObject) {
	if key == "" {
		return st.set.Primary(), nil
	}
	chain, err := parseScope(key, ep.Resource)
	if err != nil {
		return nil, r.parseError(p.Name, title, key, err)
	}
	return st.set.scope(chain), nil
}

func (r *Reader) readFilter(ep Endpoint, st *readState, p Param, key string) *ErrorObject {
	sc, obj := r.readScope(ep, st, p, key, TitleFilter, r.parser.ParseFilterScope)
	if obj != nil {
		return obj
	}
	expr, err := r.parser.ParseFilter(p.Value, sc.Target(ep.Resource))
	if err != nil {
		return r.parseError(p.Name, TitleFilter, p.Value, err)
	}
	st.filters[sc] = append(st.filters[sc], expr)
	return nil
}

func (r *Reader) readSort(ep Endpoint, st *readState, p Param, key string) *ErrorObject {
	sc, obj := r.readScope(ep, st, p, key, TitleSort, r.parser.ParseScope)
	if obj != nil {
		return obj
	}
	if sc.Sort != nil {
		return r.newError(p.Name, TitleSort, multipleDetail(ParamSort, sc, ep.Resource), nil)
	}
	sort, err := r.parser.ParseSort(p.Value, sc.Target(ep.Resource))
	if err != nil {
		return r.parseError(p.Name, TitleSort, p.Value, err)
	}
	sc.Sort = sort
	return nil
}

func (r *Reader) readInclude(ep Endpoint, st *readState, p Param) *ErrorObject {
	inc, err := r.parser.ParseInclude(p.Value, ep.Resource)
	if err != nil {
		return r.parseError(p.Name, TitleInclude, p.Value, err)
	}
	for _, path := range inc.Paths() {
		st.set.Include = st.set.Include.Merge(path)
	}
	return nil
}

func (r *Reader) readFields(st *readState, p Param, key string) *ErrorObject {
	rt, err := r.parser.ParseResourceType(key)
	if err != nil {
		return r.parseError(p.Name, TitleFieldset, key, err)
	}
	fs, err := r.parser.ParseSparseFieldSet(p.Value, rt)
	if err != nil {
		return r.parseError(p.Name, TitleFieldset, p.Value, err)
	}
	if prev, ok := st.set.Fieldsets[rt]; ok {
		merged := &ast.SparseFieldSet{Fields: slices.Clone(prev.Fields)}
		for _, f := range fs.Fields {
			if !merged.Contains(f) {
				merged.Fields = append(merged.Fields, f)
			}
		}
		fs = merged
	}
	st.set.Fieldsets[rt] = fs
	return nil
}

func (r *Reader) readPage(ep Endpoint, st *readState, p Param, key string) *ErrorObject {
	kind, limit, seen := parse.PageSize, r.opts.MaxPageSize, st.sizes
	if key == "number" {
		kind, limit, seen = parse.PageNumber, r.opts.MaxPageNumber, st.numbers
	}
	values, err := r.parser.ParsePagination(p.Value, ep.Resource, kind, limit)
	if err != nil {
		return r.parseError(p.Name, TitlePagination, p.Value, err)
	}
	for _, elem := range values.Elements {
		sc := st.set.scope(elem.Scope)
		if _, dup := seen[sc]; dup {
			return r.newError(p.Name, TitlePagination, multipleDetail(p.Name, sc, ep.Resource), nil)
		}
		seen[sc] = elem.Value
	}
	return nil
}

func multipleDetail(param string, sc *Scope, primary *resource.Type) string {
	name := sc.Name()
	if name == "" {
		name = primary.PublicName()
	}
	return fmt.Sprintf("Multiple '%s' parameters for scope '%s'.", param, name)
}

func (r *Reader) parseError(param, title, text string, err error) *ErrorObject {
	detail := err.Error()
	if pe, ok := parse.AsError(err); ok {
		detail = pe.Detail(text)
	}
	return r.newError(param, title, detail, err)
}

func (r *Reader) newError(param, title, detail string, cause error) *ErrorObject {
	r.logger.Debug("parameter rejected", "param", param, "title", title)
	return &ErrorObject{
		ID:     r.ids.Generate(),
		Status: statusBadRequest,
		Title:  title,
		Detail: detail,
		Source: &ErrorSource{Parameter: param},
		Cause:  cause,
	}
}
