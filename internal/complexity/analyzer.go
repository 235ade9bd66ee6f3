//go:build cgo

package complexity

import (
	"context"

	"ppde/internal/classify"
)

// Analyzer parses Python sources into analysis sites.
type Analyzer struct {
	parser *Parser
}

// NewAnalyzer creates a new analyzer with its own parser.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		parser: NewParser(),
	}
}

// Analyze parses source and extracts its sites in document order.
func (a *Analyzer) Analyze(ctx context.Context, source []byte) (*ParsedFile, error) {
	root, err := a.parser.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	return extractSites(root), nil
}

func extractSites(root *Node) *ParsedFile {
	pf := &ParsedFile{}
	cache := make(map[[2]uint32]FunctionMetrics)
	measure := func(fn *Node) FunctionMetrics {
		if m, ok := cache[fn.span()]; ok {
			return m
		}
		m := Measure(fn)
		cache[fn.span()] = m
		return m
	}

	root.Walk(func(n *Node) bool {
		kind := n.Type()
		if kind == KindFunction {
			pf.Functions = append(pf.Functions, measure(n))
		}
		if !IsSiteKind(kind) {
			return true
		}

		site := Site{Kind: kind, Node: n, Line: n.StartLine()}
		fn := n
		if kind != KindFunction {
			fn = enclosing(n, KindFunction)
		}
		if fn != nil {
			site.Function = fn
			site.Metrics = measure(fn)
			site.Scope = functionScope(fn)
		} else {
			site.Scope = classify.ScopeOf(false, enclosing(n, "class_definition") != nil)
		}
		pf.Sites = append(pf.Sites, site)
		return true
	})
	return pf
}

// functionScope classifies a function definition: nested inside another
// function, a method of a class, or module level.
func functionScope(fn *Node) classify.Scope {
	nested := enclosing(fn, KindFunction) != nil
	inClass := enclosing(fn, "class_definition") != nil
	return classify.ScopeOf(nested, inClass)
}

// enclosing returns the nearest strict ancestor of n with the given kind.
func enclosing(n *Node, kind string) *Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == kind {
			return p
		}
	}
	return nil
}

// Measure computes size metrics for a function definition.
// Cyclomatic complexity counts decision points + 1, nested functions included.
func Measure(fn *Node) FunctionMetrics {
	start, end := fn.StartLine(), fn.EndLine()
	cyclomatic := 1
	fn.Walk(func(n *Node) bool {
		if decisionNodeTypes[n.Type()] {
			cyclomatic++
		}
		return true
	})

	name := "<unknown>"
	if nameNode := fn.Field("name"); nameNode != nil {
		name = nameNode.Text()
	}

	return FunctionMetrics{
		Name:       name,
		StartLine:  start,
		EndLine:    end,
		Lines:      end - start + 1,
		Cyclomatic: cyclomatic,
	}
}

// IsAvailable returns whether tree-sitter parsing is available.
// Returns true when CGO is enabled.
func IsAvailable() bool {
	return true
}
