package harness

// RequestResult is the outcome of one scenario request.
type RequestResult struct {
	Name     string `json:"name"`
	Resource string `json:"resource"`
	Query    string `json:"query"`

	// Document is the result or error document every provider produced.
	Document map[string]any `json:"document"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every request met its expectation and the providers agreed.
	Pass bool `json:"pass"`

	// Requests holds one entry per scenario request, in order.
	// Used for golden comparison.
	Requests []RequestResult `json:"requests"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Requests: []RequestResult{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddRequest records the document of a request.
func (r *Result) AddRequest(req Request, doc map[string]any) {
	r.Requests = append(r.Requests, RequestResult{
		Name:     req.Name,
		Resource: req.Resource,
		Query:    req.Query,
		Document: doc,
	})
}
