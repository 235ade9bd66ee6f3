// Package explain renders admitted findings as short, neutral, factual text.
//
// Every explanation has three lines: what history shows in this context,
// what was observed at the site, and a fixed sentence noting the difference.
// The text never grades, advises or predicts.
package explain

import (
	"fmt"
	"math"
	"strings"

	"ppde/internal/classify"
	"ppde/internal/detectors"
	"ppde/internal/gate"
)

// DeviationSentence closes every explanation.
const DeviationSentence = "This differs from how you usually write code in this context."

// phrasing describes one detector in plain words.
type phrasing struct {
	subject string
	// present and absent complete "<subject> ... in K of N past observations".
	present, absent string
	// observedPresent and observedAbsent describe the current site.
	observedPresent, observedAbsent string
}

var phrasings = map[string]phrasing{
	detectors.HasTimeoutParameter: {
		subject:         "external calls",
		present:         "specify a timeout",
		absent:          "do not specify a timeout",
		observedPresent: "This call specifies a timeout.",
		observedAbsent:  "This call does not specify a timeout.",
	},
	detectors.MutatesParameter: {
		subject:         "functions",
		present:         "reassign one or more of their parameters",
		absent:          "leave their parameters unassigned",
		observedPresent: "This function reassigns one or more of its parameters.",
		observedAbsent:  "This function does not reassign any of its parameters.",
	},
	detectors.WritesGlobalState: {
		subject:         "functions",
		present:         "write to global state",
		absent:          "do not write to global state",
		observedPresent: "This function writes to global state.",
		observedAbsent:  "This function does not write to global state.",
	},
	detectors.HasBroadException: {
		subject:         "exception handlers",
		present:         "catch a broad exception type",
		absent:          "catch a specific exception type",
		observedPresent: "This exception handler catches a broad exception type.",
		observedAbsent:  "This exception handler catches a specific exception type.",
	},
	detectors.SwallowsException: {
		subject:         "exception handlers",
		present:         "swallow the exception silently",
		absent:          "do not swallow the exception",
		observedPresent: "This exception handler swallows the exception silently.",
		observedAbsent:  "This exception handler does not swallow the exception.",
	},
}

var fallbackPhrasing = phrasing{
	subject:         "this pattern",
	present:         "is present",
	absent:          "is absent",
	observedPresent: "The pattern was detected here.",
	observedAbsent:  "The pattern was not detected here.",
}

var scopeLabels = map[classify.Scope]string{
	classify.ScopeModule: "a top-level function",
	classify.ScopeMethod: "a class method",
	classify.ScopeNested: "a nested function",
}

var stabilityLabels = map[classify.Stability]string{
	classify.StabilityNew:      "a recently created file",
	classify.StabilityYoung:    "a recently modified file",
	classify.StabilityStable:   "a stable file",
	classify.StabilityVolatile: "a frequently changing file",
}

var tierLabels = map[classify.Tier]string{
	classify.TierSmall:  "small function",
	classify.TierMedium: "medium-sized function",
	classify.TierLarge:  "large function",
	classify.TierHuge:   "very large function",
}

// Explanation pairs a finding with its rendered text.
type Explanation struct {
	Finding gate.Finding `json:"finding"`
	Message string       `json:"message"`
}

// Explain renders the three-line explanation for f.
func Explain(f gate.Finding) string {
	p, ok := phrasings[f.DetectorID]
	if !ok {
		p = fallbackPhrasing
	}

	dominant := !f.Observed
	dominantCount := f.K
	norm := p.present
	if !dominant {
		dominantCount = f.N - f.K
		norm = p.absent
	}

	observation := p.observedAbsent
	if f.Observed {
		observation = p.observedPresent
	}

	ctx := f.Context
	first := fmt.Sprintf("In %s within %s (%s), %s %s in %d of %d past observations (%d%%).",
		label(scopeLabels, ctx.Scope(), "this context"),
		label(stabilityLabels, ctx.Stability(), "this file"),
		label(tierLabels, ctx.Tier(), "function"),
		p.subject, norm, dominantCount, f.N, percent(f.MajorityShare))

	return strings.Join([]string{first, observation, DeviationSentence}, "\n")
}

func label[K comparable](labels map[K]string, key K, fallback string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return fallback
}

// percent rounds a share to a whole percent, half away from zero.
func percent(share float64) int {
	return int(math.Round(share * 100))
}

// ExplainAll renders findings in order.
func ExplainAll(findings []gate.Finding) []Explanation {
	out := make([]Explanation, 0, len(findings))
	for _, f := range findings {
		out = append(out, Explanation{Finding: f, Message: Explain(f)})
	}
	return out
}

// RenderReport formats explanations as the plain-text CLI report.
func RenderReport(explanations []Explanation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total findings: %d\n", len(explanations))
	if len(explanations) == 0 {
		b.WriteString("No unusual patterns detected.\n")
		return b.String()
	}

	for i, e := range explanations {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Finding #%d\n", i+1)
		fmt.Fprintf(&b, "Detector: %s\n", e.Finding.DetectorID)
		if e.Finding.Occurrences > 1 {
			fmt.Fprintf(&b, "Occurrences: %d\n", e.Finding.Occurrences)
		}
		b.WriteString("\n")
		b.WriteString(e.Message)
		b.WriteString("\n")
	}
	return b.String()
}
