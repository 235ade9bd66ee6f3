// Package gate decides which surprise candidates become findings, then ranks,
// de-duplicates and caps them.
//
// Policies run in a fixed order and the first failing one decides:
// sparsity, novelty, divergence, threshold.
package gate

import (
	"fmt"
	"sort"

	"ppde/internal/classify"
	"ppde/internal/scoring"
)

// shareEpsilon absorbs float rounding when a share sits exactly on a threshold.
const shareEpsilon = 1e-9

// Config holds the gating parameters for one run.
type Config struct {
	// MinObservations is the smallest n a record needs to be trusted.
	MinObservations int `json:"minObservations" mapstructure:"minObservations" toml:"minObservations"`
	// StableThreshold is the majority share required in stable and young files.
	StableThreshold float64 `json:"stableThreshold" mapstructure:"stableThreshold" toml:"stableThreshold"`
	// VolatileThreshold is the majority share required in volatile files.
	VolatileThreshold float64 `json:"volatileThreshold" mapstructure:"volatileThreshold" toml:"volatileThreshold"`
	// OutputCap bounds the number of findings reported. Zero reports nothing.
	OutputCap int `json:"outputCap" mapstructure:"outputCap" toml:"outputCap"`
	// CollapseDuplicates merges findings with the same detector, context and
	// observed value before ranking.
	CollapseDuplicates bool `json:"collapseDuplicates" mapstructure:"collapseDuplicates" toml:"collapseDuplicates"`
}

// DefaultConfig returns the stock gate parameters.
func DefaultConfig() Config {
	return Config{
		MinObservations:    10,
		StableThreshold:    0.65,
		VolatileThreshold:  0.80,
		OutputCap:          20,
		CollapseDuplicates: true,
	}
}

// Validate checks that thresholds lie in [0.5, 1] and are ordered, and that
// counts are non-negative.
func (c Config) Validate() error {
	if c.MinObservations < 0 {
		return fmt.Errorf("minObservations must be >= 0, got %d", c.MinObservations)
	}
	if c.StableThreshold < 0.5 || c.StableThreshold > 1 {
		return fmt.Errorf("stableThreshold must be in [0.5, 1], got %v", c.StableThreshold)
	}
	if c.VolatileThreshold < 0.5 || c.VolatileThreshold > 1 {
		return fmt.Errorf("volatileThreshold must be in [0.5, 1], got %v", c.VolatileThreshold)
	}
	if c.VolatileThreshold < c.StableThreshold {
		return fmt.Errorf("volatileThreshold (%v) must not be below stableThreshold (%v)", c.VolatileThreshold, c.StableThreshold)
	}
	if c.OutputCap < 0 {
		return fmt.Errorf("outputCap must be >= 0, got %d", c.OutputCap)
	}
	return nil
}

// Decision is the gate's verdict on one candidate.
type Decision int

const (
	Admitted Decision = iota
	SuppressedSparse
	SuppressedNew
	SuppressedConsistent
	SuppressedBelowThreshold
)

var decisionNames = [...]string{
	Admitted:                 "admitted",
	SuppressedSparse:         "sparse",
	SuppressedNew:            "new_file",
	SuppressedConsistent:     "consistent",
	SuppressedBelowThreshold: "below_threshold",
}

func (d Decision) String() string {
	if d < 0 || int(d) >= len(decisionNames) {
		return fmt.Sprintf("decision(%d)", int(d))
	}
	return decisionNames[d]
}

// Decisions lists every decision in declaration order.
func Decisions() []Decision {
	return []Decision{Admitted, SuppressedSparse, SuppressedNew, SuppressedConsistent, SuppressedBelowThreshold}
}

// Finding is a candidate that passed every policy.
type Finding struct {
	DetectorID    string           `json:"detector"`
	Context       classify.Context `json:"context"`
	Observed      bool             `json:"observed"`
	MajorityShare float64          `json:"majorityShare"`
	N             int              `json:"n"`
	K             int              `json:"k"`
	// Occurrences counts the sites merged into this finding by Collapse.
	Occurrences int `json:"occurrences"`
	Order       int `json:"-"`
}

// Admit runs the policies against c. The returned Finding is only meaningful
// when the decision is Admitted.
func Admit(c scoring.Candidate, stability classify.Stability, cfg Config) (Finding, Decision) {
	if c.N < cfg.MinObservations || c.N == 0 {
		return Finding{}, SuppressedSparse
	}
	if stability == classify.StabilityNew {
		return Finding{}, SuppressedNew
	}
	if !c.Divergent {
		return Finding{}, SuppressedConsistent
	}
	if c.MajorityShare+shareEpsilon < thresholdFor(stability, cfg) {
		return Finding{}, SuppressedBelowThreshold
	}

	return Finding{
		DetectorID:    c.Outcome.DetectorID,
		Context:       c.Context,
		Observed:      c.Outcome.Value,
		MajorityShare: c.MajorityShare,
		N:             c.N,
		K:             c.K,
		Occurrences:   1,
		Order:         c.Order,
	}, Admitted
}

func thresholdFor(stability classify.Stability, cfg Config) float64 {
	if stability == classify.StabilityVolatile {
		return cfg.VolatileThreshold
	}
	return cfg.StableThreshold
}

// Rank sorts findings in place: descending share, then descending n, then
// ascending input order.
func Rank(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.MajorityShare != b.MajorityShare {
			return a.MajorityShare > b.MajorityShare
		}
		if a.N != b.N {
			return a.N > b.N
		}
		return a.Order < b.Order
	})
}

// Cap truncates ranked findings to at most limit entries.
func Cap(findings []Finding, limit int) []Finding {
	if limit <= 0 {
		return nil
	}
	if len(findings) > limit {
		return findings[:limit]
	}
	return findings
}

type collapseKey struct {
	detector string
	context  classify.Context
	observed bool
}

// Collapse merges findings sharing detector, context and observed value into
// the earliest one, summing occurrences. Input order is otherwise preserved.
func Collapse(findings []Finding) []Finding {
	index := make(map[collapseKey]int, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		key := collapseKey{f.DetectorID, f.Context, f.Observed}
		if i, ok := index[key]; ok {
			out[i].Occurrences += occurrences(f)
			if f.Order < out[i].Order {
				out[i].Order = f.Order
			}
			continue
		}
		f.Occurrences = occurrences(f)
		index[key] = len(out)
		out = append(out, f)
	}
	return out
}

func occurrences(f Finding) int {
	if f.Occurrences < 1 {
		return 1
	}
	return f.Occurrences
}

// Select applies collapse (when enabled), rank and cap, returning a new slice.
// The cap counts collapsed findings, so sites sharing a detector, context and
// observed value take one slot between them.
func Select(findings []Finding, cfg Config) []Finding {
	out := make([]Finding, len(findings))
	copy(out, findings)
	if cfg.CollapseDuplicates {
		out = Collapse(out)
	}
	Rank(out)
	return Cap(out, cfg.OutputCap)
}
