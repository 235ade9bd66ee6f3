package gate

import (
	"fmt"
	"testing"

	"ppde/internal/classify"
	"ppde/internal/detectors"
	"ppde/internal/frequency"
	"ppde/internal/scoring"
)

func candidate(stability classify.Stability, n, k int, value bool, order int) scoring.Candidate {
	site := classify.SiteDescriptor{Scope: classify.ScopeMethod, Stability: stability, Tier: classify.TierMedium}
	out := detectors.Outcome{DetectorID: detectors.HasBroadException, Site: site, Value: value}
	return scoring.Score(out, classify.Classify(site), frequency.Record{N: n, K: k}, order)
}

func TestAdmit(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name      string
		stability classify.Stability
		n, k      int
		value     bool
		want      Decision
	}{
		{"sparse 9 of 9", classify.StabilityStable, 9, 9, false, SuppressedSparse},
		{"no data", classify.StabilityStable, 0, 0, true, SuppressedSparse},
		{"new file", classify.StabilityNew, 50, 50, false, SuppressedNew},
		{"consistent", classify.StabilityStable, 20, 17, true, SuppressedConsistent},
		{"stable 17 of 20", classify.StabilityStable, 20, 17, false, Admitted},
		{"stable 15 of 20", classify.StabilityStable, 20, 15, false, Admitted},
		{"young 15 of 20", classify.StabilityYoung, 20, 15, false, Admitted},
		{"volatile 17 of 20", classify.StabilityVolatile, 20, 17, false, Admitted},
		{"volatile 15 of 20", classify.StabilityVolatile, 20, 15, false, SuppressedBelowThreshold},
		{"stable at threshold", classify.StabilityStable, 20, 13, false, Admitted},
		{"stable below threshold", classify.StabilityStable, 20, 12, false, SuppressedBelowThreshold},
		{"volatile at threshold", classify.StabilityVolatile, 20, 4, true, Admitted},
		{"minority true observed", classify.StabilityStable, 20, 3, true, Admitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate(tt.stability, tt.n, tt.k, tt.value, 0)
			f, got := Admit(c, tt.stability, cfg)
			if got != tt.want {
				t.Fatalf("Admit() = %s, want %s", got, tt.want)
			}
			if got == Admitted {
				if f.N != tt.n || f.K != tt.k || f.Observed != tt.value || f.Occurrences != 1 {
					t.Errorf("finding = %+v", f)
				}
			}
		})
	}
}

func TestAdmit_PolicyOrder(t *testing.T) {
	// Sparse and new at once: sparsity is checked first.
	c := candidate(classify.StabilityNew, 3, 3, false, 0)
	if _, d := Admit(c, classify.StabilityNew, DefaultConfig()); d != SuppressedSparse {
		t.Errorf("Admit() = %s, want sparse", d)
	}
	// New and consistent at once: novelty wins.
	c = candidate(classify.StabilityNew, 30, 30, true, 0)
	if _, d := Admit(c, classify.StabilityNew, DefaultConfig()); d != SuppressedNew {
		t.Errorf("Admit() = %s, want new_file", d)
	}
}

func TestRankAndCap(t *testing.T) {
	var findings []Finding
	for i := 0; i < 50; i++ {
		findings = append(findings, Finding{
			DetectorID:    fmt.Sprintf("d%02d", i),
			MajorityShare: 0.70 + float64(i%5)*0.05,
			N:             10 + i%3,
			Order:         i,
			Occurrences:   1,
		})
	}

	got := Select(findings, Config{OutputCap: 20})
	if len(got) != 20 {
		t.Fatalf("Select() returned %d findings, want 20", len(got))
	}
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		switch {
		case a.MajorityShare > b.MajorityShare:
		case a.MajorityShare == b.MajorityShare && a.N > b.N:
		case a.MajorityShare == b.MajorityShare && a.N == b.N && a.Order < b.Order:
		default:
			t.Fatalf("findings %d and %d out of order: %+v then %+v", i-1, i, a, b)
		}
	}
	if got[0].MajorityShare < 0.89 {
		t.Errorf("strongest finding missing from top: %+v", got[0])
	}
	if findings[0].Order != 0 {
		t.Error("Select must not reorder its input")
	}
}

func TestSelect_CapAppliesAfterCollapse(t *testing.T) {
	var findings []Finding
	for i := 0; i < 50; i++ {
		findings = append(findings, Finding{
			DetectorID:    fmt.Sprintf("d%02d", i%25),
			MajorityShare: 0.9,
			N:             20,
			Order:         i,
			Occurrences:   1,
		})
	}

	got := Select(findings, Config{OutputCap: 20, CollapseDuplicates: true})
	if len(got) != 20 {
		t.Fatalf("Select() returned %d findings, want 20", len(got))
	}
	for _, f := range got {
		if f.Occurrences != 2 {
			t.Errorf("%s occurrences = %d, want 2", f.DetectorID, f.Occurrences)
		}
	}

	same := make([]Finding, 50)
	for i := range same {
		same[i] = Finding{DetectorID: "d", MajorityShare: 0.9, N: 20, Order: i, Occurrences: 1}
	}
	got = Select(same, Config{OutputCap: 20, CollapseDuplicates: true})
	if len(got) != 1 || got[0].Occurrences != 50 {
		t.Errorf("identical keys should collapse to one finding, got %d", len(got))
	}
	if got := Select(same, Config{OutputCap: 20}); len(got) != 20 {
		t.Errorf("without collapse Select() returned %d findings, want 20", len(got))
	}
}

func TestCap(t *testing.T) {
	f := []Finding{{Order: 0}, {Order: 1}}
	if got := Cap(f, 0); len(got) != 0 {
		t.Errorf("Cap(0) = %d findings", len(got))
	}
	if got := Cap(f, -1); len(got) != 0 {
		t.Errorf("Cap(-1) = %d findings", len(got))
	}
	if got := Cap(f, 5); len(got) != 2 {
		t.Errorf("Cap(5) = %d findings", len(got))
	}
}

func TestCollapse(t *testing.T) {
	findings := []Finding{
		{DetectorID: "a", Context: 5, Observed: false, MajorityShare: 0.9, N: 20, Order: 3},
		{DetectorID: "b", Context: 5, Observed: false, MajorityShare: 0.8, N: 20, Order: 4},
		{DetectorID: "a", Context: 5, Observed: false, MajorityShare: 0.9, N: 20, Order: 7},
		{DetectorID: "a", Context: 6, Observed: false, MajorityShare: 0.9, N: 20, Order: 8},
		{DetectorID: "a", Context: 5, Observed: false, MajorityShare: 0.9, N: 20, Order: 9},
	}

	got := Collapse(findings)
	if len(got) != 3 {
		t.Fatalf("Collapse() returned %d findings, want 3", len(got))
	}
	if got[0].DetectorID != "a" || got[0].Occurrences != 3 || got[0].Order != 3 {
		t.Errorf("merged finding = %+v", got[0])
	}
	if got[1].DetectorID != "b" || got[2].Context != 6 {
		t.Errorf("Collapse changed order: %+v", got)
	}

	noCollapse := Select(findings, Config{OutputCap: 10})
	if len(noCollapse) != 5 {
		t.Errorf("Select without collapse returned %d findings, want 5", len(noCollapse))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"equal thresholds", func(c *Config) { c.VolatileThreshold = c.StableThreshold }, false},
		{"zero cap", func(c *Config) { c.OutputCap = 0 }, false},
		{"stable below half", func(c *Config) { c.StableThreshold = 0.4 }, true},
		{"volatile above one", func(c *Config) { c.VolatileThreshold = 1.2 }, true},
		{"volatile below stable", func(c *Config) { c.VolatileThreshold = 0.6 }, true},
		{"negative min observations", func(c *Config) { c.MinObservations = -1 }, true},
		{"negative cap", func(c *Config) { c.OutputCap = -5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecision_String(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range Decisions() {
		s := d.String()
		if s == "" || seen[s] {
			t.Errorf("decision %d has empty or duplicate name %q", int(d), s)
		}
		seen[s] = true
	}
	if Decision(42).String() != "decision(42)" {
		t.Error("unknown decision should render its number")
	}
}
