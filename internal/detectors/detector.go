// Package detectors holds the pattern predicates run at each analysis site.
//
// A detector answers one yes/no question about a syntax node. It has no
// history, no configuration and no notion of severity; deciding whether an
// answer is unusual happens downstream.
package detectors

import (
	"fmt"

	"ppde/internal/classify"
	"ppde/internal/complexity"
	"ppde/internal/errors"
)

// Node is the syntax node handed to detectors.
type Node = complexity.Node

// Detector IDs registered by Default, in registration order.
const (
	HasTimeoutParameter = "has_timeout_parameter"
	MutatesParameter    = "mutates_parameter"
	WritesGlobalState   = "writes_global_state"
	HasBroadException   = "has_broad_exception"
	SwallowsException   = "swallows_exception"
)

// Detector is a pure predicate over one syntax node.
type Detector interface {
	// ID is the stable identifier used as part of the frequency key.
	ID() string
	// Applies reports whether the detector is meaningful for a node kind.
	Applies(kind string) bool
	// Detect reports whether the pattern is present at n.
	Detect(n *Node) (bool, error)
}

// NodeFilter is implemented by detectors that only apply to some nodes of a
// kind, such as external calls among all calls.
type NodeFilter interface {
	Accepts(n *Node) bool
}

// Outcome is one detector's answer at one site.
type Outcome struct {
	DetectorID string
	Site       classify.SiteDescriptor
	Value      bool
}

// Registry is an ordered set of detectors. Order is registration order and
// determines the order outcomes are produced in.
type Registry struct {
	detectors []Detector
	ids       map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]bool)}
}

// Default returns a registry with the five built-in detectors.
func Default() *Registry {
	r := NewRegistry()
	for _, d := range []Detector{
		timeoutDetector{},
		parameterMutationDetector{},
		globalWriteDetector{},
		broadExceptionDetector{},
		swallowedExceptionDetector{},
	} {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register appends d. IDs must be unique and non-empty.
func (r *Registry) Register(d Detector) error {
	id := d.ID()
	if id == "" {
		return fmt.Errorf("detector has an empty id")
	}
	if r.ids[id] {
		return fmt.Errorf("detector %q already registered", id)
	}
	r.ids[id] = true
	r.detectors = append(r.detectors, d)
	return nil
}

// Detectors returns the registered detectors in order.
func (r *Registry) Detectors() []Detector {
	out := make([]Detector, len(r.detectors))
	copy(out, r.detectors)
	return out
}

// For returns the detectors that apply to a node kind, in order.
func (r *Registry) For(kind string) []Detector {
	var out []Detector
	for _, d := range r.detectors {
		if d.Applies(kind) {
			out = append(out, d)
		}
	}
	return out
}

// ForNode returns the detectors that apply to n, honoring NodeFilter.
func (r *Registry) ForNode(n *Node) []Detector {
	var out []Detector
	for _, d := range r.For(n.Type()) {
		if f, ok := d.(NodeFilter); ok && !f.Accepts(n) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// IDs lists the registered detector ids in order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.detectors))
	for i, d := range r.detectors {
		out[i] = d.ID()
	}
	return out
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int { return len(r.detectors) }

// Evaluate runs every applicable detector at every site of pf, in document
// order and then registration order. A failing detector is reported to visit
// with a non-nil error and does not stop the others.
func (r *Registry) Evaluate(pf *complexity.ParsedFile, visit func(site complexity.Site, detectorID string, value bool, err error)) {
	for _, site := range pf.Sites {
		for _, d := range r.ForNode(site.Node) {
			value, err := Run(d, site.Node)
			visit(site, d.ID(), value, err)
		}
	}
}

// Run calls d.Detect, converting a panic into a DETECTOR_FAILED error so a
// misbehaving detector only loses its own outcome.
func Run(d Detector, n *Node) (value bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = false
			err = errors.NewPpdeError(errors.DetectorFailed,
				fmt.Sprintf("detector %s panicked", d.ID()), fmt.Errorf("%v", rec), nil)
		}
	}()
	value, err = d.Detect(n)
	if err != nil {
		return false, errors.NewPpdeError(errors.DetectorFailed, "detector "+d.ID()+" failed", err, nil)
	}
	return value, nil
}
