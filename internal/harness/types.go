package harness

import (
	"bytes"
	"fmt"

	"github.com/roach88/configstore/internal/model"
)

// TraceEvent is one observable outcome of a scan: a summary, a delta, or
// the error that ended the stream.
type TraceEvent struct {
	Scan     int              `json:"scan"`
	Change   model.ChangeType `json:"change,omitempty"`
	Type     model.EntityType `json:"type,omitempty"`
	ID       string           `json:"id,omitempty"`
	Patch    int              `json:"patch,omitempty"`
	Version  string           `json:"version,omitempty"`
	Entities int              `json:"entities,omitempty"`
	Changes  int              `json:"changes,omitempty"`
	Code     model.ErrorCode  `json:"code,omitempty"`
}

func (e TraceEvent) String() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("scan %d: error %s", e.Scan, e.Code)
	case e.Change != "":
		return fmt.Sprintf("scan %d: %s %s %s patch=%d version=%s", e.Scan, e.Change, e.Type, e.ID, e.Patch, e.Version)
	}
	return fmt.Sprintf("scan %d: %d entities, %d changes", e.Scan, e.Entities, e.Changes)
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors lists the expectations that did not hold.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError records a failed expectation.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Render formats the trace one event per line under a scenario header.
func (r *Result) Render(name string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, e := range r.Trace {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
