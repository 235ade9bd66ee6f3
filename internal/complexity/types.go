// Package complexity parses Python sources with tree-sitter, extracts the
// sites the detectors inspect and measures the functions enclosing them.
package complexity

import (
	"errors"

	"ppde/internal/classify"
)

// Node kinds that become analysis sites.
const (
	KindCall     = "call"
	KindFunction = "function_definition"
	KindExcept   = "except_clause"
)

// ErrSyntax is returned when a source file does not parse cleanly.
var ErrSyntax = errors.New("source contains syntax errors")

// ErrNoCGO is returned when parsing is unavailable due to missing CGO.
var ErrNoCGO = errors.New("python parsing requires CGO (tree-sitter)")

// FunctionMetrics contains size metrics for a single function.
type FunctionMetrics struct {
	// Name is the function name
	Name string `json:"name"`

	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`

	// Lines is the number of lines in the function
	Lines int `json:"lines"`

	// Cyclomatic is the cyclomatic complexity (decision points + 1)
	Cyclomatic int `json:"cyclomatic"`
}

// Site is one node the detectors are asked about.
type Site struct {
	Kind string
	Node *Node
	Line int

	Scope classify.Scope

	// Function is the definition the site's size is taken from: the site
	// itself for function definitions, otherwise the nearest enclosing one.
	// It is nil for module-level calls and handlers.
	Function *Node

	// Metrics measures Function; zero when Function is nil.
	Metrics FunctionMetrics
}

// ParsedFile is the result of analyzing one source file.
type ParsedFile struct {
	Sites     []Site
	Functions []FunctionMetrics
}

// IsSiteKind reports whether a node kind is analyzed.
func IsSiteKind(kind string) bool {
	switch kind {
	case KindCall, KindFunction, KindExcept:
		return true
	}
	return false
}

// decisionNodeTypes contribute to cyclomatic complexity.
var decisionNodeTypes = map[string]bool{
	"if_statement":             true,
	"elif_clause":              true,
	"for_statement":            true,
	"while_statement":          true,
	"except_clause":            true,
	"with_statement":           true,
	"boolean_operator":         true, // and, or
	"conditional_expression":   true, // ternary
	"list_comprehension":       true,
	"dictionary_comprehension": true,
	"set_comprehension":        true,
	"generator_expression":     true,
}
