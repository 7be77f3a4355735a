package harness

// CheckResult is the outcome of one check.
type CheckResult struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Pass  bool   `json:"pass"`
	Error string `json:"error,omitempty"`
}

// StagedGraph is a graph produced by a stage or roundtrip check.
type StagedGraph struct {
	Check       int    `json:"check"`
	Golden      string `json:"golden,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every check passed.
	Pass bool `json:"pass"`

	Checks []CheckResult `json:"checks"`

	// Graphs holds every staged graph in check order.
	Graphs []StagedGraph `json:"graphs"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Checks: []CheckResult{},
		Graphs: []StagedGraph{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addCheck records a check outcome; a failed check also adds its error.
func (r *Result) addCheck(index int, kind string, err error) {
	cr := CheckResult{Index: index, Kind: kind, Pass: err == nil}
	if err != nil {
		cr.Error = err.Error()
		r.AddError(cr.Error)
	}
	r.Checks = append(r.Checks, cr)
}
