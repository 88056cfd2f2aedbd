package diag

import (
	"encoding/json"
	"fmt"
	"io"
)

// Formatter renders Diagnostics either as JSON-lines or as short prose,
// matching spec §7 ("Errors can be formatted as JSON (one object per
// line) or prose").
type Formatter struct {
	JSON bool
}

// NewFormatter creates a Formatter; json selects the JSON-lines mode.
func NewFormatter(json bool) *Formatter {
	return &Formatter{JSON: json}
}

type jsonDiagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Span     string `json:"span,omitempty"`
}

// Write renders all diagnostics to w, one per line in JSON mode or as a
// `severity[code]: message` line (with a `--> span` line when the span is
// valid) in prose mode.
func (f *Formatter) Write(w io.Writer, diags []Diagnostic) error {
	for _, d := range diags {
		if f.JSON {
			jd := jsonDiagnostic{
				Severity: string(d.Severity),
				Code:     string(d.Code),
				Message:  d.Message,
			}
			if d.Span.IsValid() {
				jd.Span = d.Span.String()
			}
			enc, err := json.Marshal(jd)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, string(enc)); err != nil {
				return err
			}
			continue
		}
		severity := d.Severity
		if severity == "" {
			severity = SeverityError
		}
		if d.Code != "" {
			fmt.Fprintf(w, "%s[%s]: %s\n", severity, d.Code, d.Message)
		} else {
			fmt.Fprintf(w, "%s: %s\n", severity, d.Message)
		}
		if d.Span.IsValid() {
			fmt.Fprintf(w, "  --> %s\n", d.Span)
		}
	}
	return nil
}
