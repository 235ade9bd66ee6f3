//go:build !cgo

package complexity

import "context"

// Analyzer is a stub for non-CGO builds.
type Analyzer struct{}

// NewAnalyzer returns nil when CGO is disabled.
func NewAnalyzer() *Analyzer {
	return nil
}

// Analyze always fails with ErrNoCGO.
func (a *Analyzer) Analyze(ctx context.Context, source []byte) (*ParsedFile, error) {
	return nil, ErrNoCGO
}

// Parser is a stub for non-CGO builds.
type Parser struct{}

// NewParser returns nil when CGO is disabled.
func NewParser() *Parser {
	return nil
}

// Parse always fails with ErrNoCGO.
func (p *Parser) Parse(ctx context.Context, source []byte) (*Node, error) {
	return nil, ErrNoCGO
}

// Node is a stub for non-CGO builds. No Node is ever produced without CGO.
type Node struct{}

func (n *Node) Type() string { return "" }
func (n *Node) Text() string { return "" }
func (n *Node) StartLine() int { return 0 }
func (n *Node) EndLine() int { return 0 }
func (n *Node) Field(name string) *Node { return nil }
func (n *Node) Parent() *Node { return nil }
func (n *Node) NamedChildren() []*Node { return nil }
func (n *Node) Walk(fn func(*Node) bool) {}
func (n *Node) Contains(kind string) bool { return false }

// Measure returns zero metrics without CGO.
func Measure(fn *Node) FunctionMetrics {
	return FunctionMetrics{}
}

// IsAvailable returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}
