//go:build cgo

package complexity

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parser wraps a tree-sitter parser configured for Python.
// A Parser is not safe for concurrent use; give each goroutine its own.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new tree-sitter parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// Parse parses source and returns the root node. Sources that tree-sitter
// can only recover with error nodes are rejected with ErrSyntax.
func (p *Parser) Parse(ctx context.Context, source []byte) (*Node, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrSyntax
	}
	return wrap(root, source), nil
}

// Node is a syntax node bound to the source it was parsed from.
type Node struct {
	n   *sitter.Node
	src []byte
}

func wrap(n *sitter.Node, src []byte) *Node {
	if n == nil {
		return nil
	}
	return &Node{n: n, src: src}
}

// Type returns the grammar node kind, e.g. "call".
func (n *Node) Type() string {
	if n == nil {
		return ""
	}
	return n.n.Type()
}

// Text returns the source text covered by the node.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.n.Content(n.src)
}

// StartLine is 1-based.
func (n *Node) StartLine() int { return int(n.n.StartPoint().Row) + 1 }

// EndLine is 1-based.
func (n *Node) EndLine() int { return int(n.n.EndPoint().Row) + 1 }

// Field returns the child stored under a grammar field name, or nil.
func (n *Node) Field(name string) *Node {
	if n == nil {
		return nil
	}
	return wrap(n.n.ChildByFieldName(name), n.src)
}

// Parent returns the enclosing node, or nil at the root.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return wrap(n.n.Parent(), n.src)
}

// NamedChildren returns the named children in source order, skipping comments.
func (n *Node) NamedChildren() []*Node {
	if n == nil {
		return nil
	}
	count := int(n.n.NamedChildCount())
	out := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, wrap(child, n.src))
	}
	return out
}

// Walk visits n and its named descendants in pre-order. Returning false from
// fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.NamedChildren() {
		child.Walk(fn)
	}
}

// Contains reports whether any named descendant of n (n included) has kind.
func (n *Node) Contains(kind string) bool {
	found := false
	n.Walk(func(c *Node) bool {
		if found {
			return false
		}
		if c.Type() == kind {
			found = true
			return false
		}
		return true
	})
	return found
}

func (n *Node) span() [2]uint32 {
	return [2]uint32{n.n.StartByte(), n.n.EndByte()}
}
