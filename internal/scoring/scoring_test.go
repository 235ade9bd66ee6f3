package scoring

import (
	"math"
	"testing"

	"ppde/internal/classify"
	"ppde/internal/detectors"
	"ppde/internal/frequency"
)

var site = classify.SiteDescriptor{
	Scope:     classify.ScopeModule,
	Stability: classify.StabilityStable,
	Tier:      classify.TierMedium,
}

func outcome(value bool) detectors.Outcome {
	return detectors.Outcome{DetectorID: detectors.HasTimeoutParameter, Site: site, Value: value}
}

func TestScore(t *testing.T) {
	ctx := classify.Classify(site)
	tests := []struct {
		name          string
		rec           frequency.Record
		value         bool
		wantShare     float64
		wantDivergent bool
	}{
		{"no data", frequency.Record{}, true, 0, false},
		{"no data false", frequency.Record{}, false, 0, false},
		{"mostly true, observed false", frequency.Record{N: 20, K: 17}, false, 0.85, true},
		{"mostly true, observed true", frequency.Record{N: 20, K: 17}, true, 0.85, false},
		{"mostly false, observed true", frequency.Record{N: 20, K: 3}, true, 0.85, true},
		{"mostly false, observed false", frequency.Record{N: 20, K: 3}, false, 0.85, false},
		{"even split counts as true", frequency.Record{N: 10, K: 5}, false, 0.5, true},
		{"unanimous", frequency.Record{N: 9, K: 9}, false, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Score(outcome(tt.value), ctx, tt.rec, 7)
			if math.Abs(c.MajorityShare-tt.wantShare) > 1e-9 {
				t.Errorf("MajorityShare = %v, want %v", c.MajorityShare, tt.wantShare)
			}
			if c.Divergent != tt.wantDivergent {
				t.Errorf("Divergent = %v, want %v", c.Divergent, tt.wantDivergent)
			}
			if c.N != tt.rec.N || c.K != tt.rec.K || c.Order != 7 || c.Context != ctx {
				t.Errorf("candidate did not carry its inputs: %+v", c)
			}
		})
	}
}

func TestScore_Symmetry(t *testing.T) {
	ctx := classify.Classify(site)
	a := Score(outcome(true), ctx, frequency.Record{N: 20, K: 3}, 0)
	b := Score(outcome(false), ctx, frequency.Record{N: 20, K: 17}, 0)
	if math.Abs(a.MajorityShare-b.MajorityShare) > 1e-9 || a.Divergent != b.Divergent {
		t.Errorf("mirror records scored differently: %+v vs %+v", a, b)
	}
}

func TestScorer_UsesStore(t *testing.T) {
	ctx := classify.Classify(site)
	table, err := frequency.NewTable(map[frequency.Key]frequency.Record{
		{Detector: detectors.HasTimeoutParameter, Context: ctx}: {N: 20, K: 17},
	})
	if err != nil {
		t.Fatal(err)
	}

	c := NewScorer(table).Score(outcome(false), 3)
	if !c.Divergent || c.N != 20 || c.Context != ctx {
		t.Errorf("Score() = %+v", c)
	}

	cold := NewScorer(nil).Score(outcome(false), 3)
	if cold.N != 0 || cold.Divergent {
		t.Errorf("cold start Score() = %+v", cold)
	}
}
