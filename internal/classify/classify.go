// Package classify maps code sites onto the 48 canonical context buckets.
//
// A context combines three axes: the scope the code lives in, the stability
// of its file, and the size tier of the enclosing function. The encoding is
// fixed: id = scope*16 + stability*4 + tier.
package classify

import (
	"fmt"
	"time"
)

// NumContexts is the number of canonical buckets (3 scopes x 4 stabilities x 4 tiers).
const NumContexts = int(numScopes) * int(numStabilities) * int(numTiers)

// Scope is where a site sits syntactically.
type Scope uint8

const (
	ScopeModule Scope = iota // module-level function or top-level statement
	ScopeMethod              // method of a class
	ScopeNested              // function nested in another function
	numScopes
)

// Stability is the historical stability class of a site's file.
type Stability uint8

const (
	StabilityNew      Stability = iota // first seen recently, or never committed
	StabilityYoung                     // modified within the recent window
	StabilityStable                    // untouched within the recent window
	StabilityVolatile                  // repeatedly fixed within the recent window
	numStabilities
)

// Tier is the size/complexity band of a site's enclosing function.
type Tier uint8

const (
	TierSmall Tier = iota
	TierMedium
	TierLarge
	TierHuge
	numTiers
)

var scopeNames = [...]string{"module", "method", "nested"}
var stabilityNames = [...]string{"new", "young", "stable", "volatile"}
var tierNames = [...]string{"small", "medium", "large", "huge"}

func (s Scope) String() string {
	if s >= numScopes {
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
	return scopeNames[s]
}

func (s Stability) String() string {
	if s >= numStabilities {
		return fmt.Sprintf("stability(%d)", uint8(s))
	}
	return stabilityNames[s]
}

func (t Tier) String() string {
	if t >= numTiers {
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
	return tierNames[t]
}

// ParseStability parses the lowercase stability name.
func ParseStability(s string) (Stability, bool) {
	for i, name := range stabilityNames {
		if name == s {
			return Stability(i), true
		}
	}
	return StabilityNew, false
}

// SiteDescriptor identifies the classification axes of one analyzed site.
type SiteDescriptor struct {
	Scope     Scope
	Stability Stability
	Tier      Tier
}

// Context is an opaque bucket identifier in [0, NumContexts).
type Context uint8

// Classify maps a descriptor to its context. It is total: out-of-range axis
// values are clamped to ScopeModule, StabilityNew and TierSmall. Because new
// files are never reported, a clamped descriptor can never surface a finding.
func Classify(d SiteDescriptor) Context {
	scope, stability, tier := d.Scope, d.Stability, d.Tier
	if scope >= numScopes {
		scope = ScopeModule
	}
	if stability >= numStabilities {
		stability = StabilityNew
	}
	if tier >= numTiers {
		tier = TierSmall
	}
	return Context(uint8(scope)*16 + uint8(stability)*4 + uint8(tier))
}

// Valid reports whether c is one of the canonical buckets.
func (c Context) Valid() bool {
	return int(c) < NumContexts
}

// Scope decodes the scope axis.
func (c Context) Scope() Scope { return Scope(uint8(c) / 16) }

// Stability decodes the stability axis.
func (c Context) Stability() Stability { return Stability(uint8(c) / 4 % 4) }

// Tier decodes the tier axis.
func (c Context) Tier() Tier { return Tier(uint8(c) % 4) }

// Descriptor decodes all three axes.
func (c Context) Descriptor() SiteDescriptor {
	return SiteDescriptor{Scope: c.Scope(), Stability: c.Stability(), Tier: c.Tier()}
}

// String returns the stable signature "scope:stability:tier".
func (c Context) String() string {
	if !c.Valid() {
		return fmt.Sprintf("context(%d)", uint8(c))
	}
	return c.Scope().String() + ":" + c.Stability().String() + ":" + c.Tier().String()
}

// All lists every canonical context in id order.
func All() []Context {
	out := make([]Context, NumContexts)
	for i := range out {
		out[i] = Context(i)
	}
	return out
}

// ScopeOf resolves the scope axis. Precedence: nested > method > module.
func ScopeOf(nested, inClass bool) Scope {
	switch {
	case nested:
		return ScopeNested
	case inClass:
		return ScopeMethod
	default:
		return ScopeModule
	}
}

// Cutoffs are the fixed thresholds used to derive stability and tier.
type Cutoffs struct {
	NewDays         int   `json:"newDays" mapstructure:"newDays" toml:"newDays"`
	RecentDays      int   `json:"recentDays" mapstructure:"recentDays" toml:"recentDays"`
	FixThreshold    int   `json:"fixThreshold" mapstructure:"fixThreshold" toml:"fixThreshold"`
	LineTiers       []int `json:"lineTiers" mapstructure:"lineTiers" toml:"lineTiers"`
	CyclomaticTiers []int `json:"cyclomaticTiers" mapstructure:"cyclomaticTiers" toml:"cyclomaticTiers"`
}

// DefaultCutoffs returns the stock thresholds.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{
		NewDays:         30,
		RecentDays:      90,
		FixThreshold:    3,
		LineTiers:       []int{10, 25, 60},
		CyclomaticTiers: []int{3, 6, 11},
	}
}

// Validate checks that windows are non-negative and that each tier list
// holds three strictly ascending cutoffs.
func (c Cutoffs) Validate() error {
	if c.NewDays < 0 || c.RecentDays < 0 {
		return fmt.Errorf("newDays and recentDays must be >= 0, got %d and %d", c.NewDays, c.RecentDays)
	}
	if c.FixThreshold < 1 {
		return fmt.Errorf("fixThreshold must be >= 1, got %d", c.FixThreshold)
	}
	lists := []struct {
		name  string
		tiers []int
	}{{"lineTiers", c.LineTiers}, {"cyclomaticTiers", c.CyclomaticTiers}}
	for _, l := range lists {
		name, tiers := l.name, l.tiers
		if len(tiers) != int(numTiers)-1 {
			return fmt.Errorf("%s needs %d cutoffs, got %d", name, int(numTiers)-1, len(tiers))
		}
		for i := 1; i < len(tiers); i++ {
			if tiers[i] <= tiers[i-1] {
				return fmt.Errorf("%s must be strictly ascending, got %v", name, tiers)
			}
		}
	}
	return nil
}

// FileHistory summarizes what history says about one file.
type FileHistory struct {
	Seen         bool
	FirstSeen    time.Time
	LastModified time.Time
	// FixCommits holds the timestamps of commits whose message looks like a fix.
	FixCommits []time.Time
}

// StabilityOf derives the stability axis relative to ref.
// Precedence: NEW > VOLATILE > YOUNG > STABLE.
func StabilityOf(h FileHistory, ref time.Time, c Cutoffs) Stability {
	if !h.Seen || h.FirstSeen.IsZero() {
		return StabilityNew
	}
	if ref.Sub(h.FirstSeen) < days(c.NewDays) {
		return StabilityNew
	}

	recent := ref.Add(-days(c.RecentDays))
	fixes := 0
	for _, ts := range h.FixCommits {
		if !ts.Before(recent) && !ts.After(ref) {
			fixes++
		}
	}
	if c.FixThreshold > 0 && fixes >= c.FixThreshold {
		return StabilityVolatile
	}

	if h.LastModified.IsZero() || !h.LastModified.Before(recent) {
		return StabilityYoung
	}
	return StabilityStable
}

// TierOf returns the larger of the line tier and the cyclomatic tier.
func TierOf(lines, cyclomatic int, c Cutoffs) Tier {
	lt := bandOf(lines, c.LineTiers)
	ct := bandOf(cyclomatic, c.CyclomaticTiers)
	if ct > lt {
		return ct
	}
	return lt
}

// bandOf returns how many cutoffs v exceeds, capped at TierHuge.
func bandOf(v int, cutoffs []int) Tier {
	t := TierSmall
	for _, cut := range cutoffs {
		if v > cut && t < TierHuge {
			t++
		}
	}
	return t
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
