package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ppde/internal/explain"
	"ppde/internal/gate"
)

// Stats counts what one run looked at and why candidates were dropped.
type Stats struct {
	Files          int `json:"files"`
	Sites          int `json:"sites"`
	Outcomes       int `json:"outcomes"`
	DetectorErrors int `json:"detectorErrors"`
	SkippedFiles   int `json:"skippedFiles"`
	Commits        int `json:"commits"`
	StoreRecords   int `json:"storeRecords"`
	Admitted       int `json:"admitted"`

	// Decisions counts gate decisions by name.
	Decisions map[string]int `json:"decisions"`
}

func newStats() Stats {
	s := Stats{Decisions: make(map[string]int)}
	for _, d := range gate.Decisions() {
		s.Decisions[d.String()] = 0
	}
	return s
}

// Report is the result of one analysis.
type Report struct {
	Root         string                `json:"root"`
	Author       string                `json:"author"`
	HeadCommit   string                `json:"headCommit"`
	Reference    time.Time             `json:"reference"`
	Findings     []gate.Finding        `json:"findings"`
	Explanations []explain.Explanation `json:"explanations"`
	Stats        Stats                 `json:"stats"`
}

// Text renders the human report. It depends only on the tree, the store and
// the configuration, never on the clock.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed repository: %s\n", r.Root)
	b.WriteString(explain.RenderReport(r.Explanations))
	return b.String()
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	out := *r
	if out.Findings == nil {
		out.Findings = []gate.Finding{}
	}
	if out.Explanations == nil {
		out.Explanations = []explain.Explanation{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decisionGroup logs the gate decision counts in policy order.
func (s Stats) decisionGroup() slog.Attr {
	attrs := make([]any, 0, len(s.Decisions))
	for _, d := range gate.Decisions() {
		attrs = append(attrs, slog.Int(d.String(), s.Decisions[d.String()]))
	}
	return slog.Group("decisions", attrs...)
}
