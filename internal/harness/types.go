package harness

import (
	"fmt"
	"strings"
)

// Step outcome cases.
const (
	CaseOK        = "ok"
	CaseConflict  = "conflict"
	CaseNotFound  = "not_found"
	CaseLoadError = "load_error"
	CaseSaveError = "save_error"
	CaseError     = "error"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int
	Op     string
	Args   string
	Case   string
	Result string
}

// String renders the event as one golden trace line.
func (e TraceEvent) String() string {
	parts := []string{fmt.Sprintf("%04d", e.Seq), e.Op}
	if e.Args != "" {
		parts = append(parts, e.Args)
	}
	parts = append(parts, "->", e.Case)
	if e.Result != "" {
		parts = append(parts, e.Result)
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expected case and every
	// assertion held.
	Pass bool

	Trace  []TraceEvent
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(e TraceEvent) {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}

// Render formats the trace for golden comparison.
func (r *Result) Render(name string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
