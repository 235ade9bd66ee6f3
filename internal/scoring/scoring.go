// Package scoring turns a detector outcome and its historical record into a
// surprise candidate. It never suppresses anything; that is the gate's job.
package scoring

import (
	"ppde/internal/classify"
	"ppde/internal/detectors"
	"ppde/internal/frequency"
)

// Candidate is a scored outcome awaiting the gate.
type Candidate struct {
	Outcome detectors.Outcome
	Context classify.Context

	// MajorityShare is max(p, 1-p) where p = K/N, or 0 when N == 0.
	MajorityShare float64
	N             int
	K             int

	// Divergent is true when the observed value is the minority class.
	Divergent bool

	// Order is the input-order key used to break ranking ties.
	Order int
}

// Score computes the candidate for one outcome. With no observations the
// candidate carries a zero share and is never divergent.
func Score(outcome detectors.Outcome, ctx classify.Context, rec frequency.Record, order int) Candidate {
	c := Candidate{
		Outcome: outcome,
		Context: ctx,
		N:       rec.N,
		K:       rec.K,
		Order:   order,
	}
	if rec.N <= 0 {
		return c
	}

	p := float64(rec.K) / float64(rec.N)
	dominant := p >= 0.5
	c.MajorityShare = p
	if !dominant {
		c.MajorityShare = 1 - p
	}
	c.Divergent = outcome.Value != dominant
	return c
}

// Scorer scores outcomes against a store.
type Scorer struct {
	store frequency.Store
}

// NewScorer creates a scorer. A nil store behaves as cold start.
func NewScorer(store frequency.Store) *Scorer {
	if store == nil {
		store = frequency.Empty()
	}
	return &Scorer{store: store}
}

// Score classifies the outcome's site, looks up its record and scores it.
func (s *Scorer) Score(outcome detectors.Outcome, order int) Candidate {
	ctx := classify.Classify(outcome.Site)
	return Score(outcome, ctx, s.store.Lookup(outcome.DetectorID, ctx), order)
}
