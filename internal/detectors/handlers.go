package detectors

import "ppde/internal/complexity"

var broadExceptionTypes = map[string]bool{
	"Exception":     true,
	"BaseException": true,
}

// broadExceptionDetector reports bare except clauses and handlers for
// Exception or BaseException.
type broadExceptionDetector struct{}

func (broadExceptionDetector) ID() string { return HasBroadException }

func (broadExceptionDetector) Applies(kind string) bool { return kind == complexity.KindExcept }

func (broadExceptionDetector) Detect(n *Node) (bool, error) {
	caught := caughtType(n)
	if caught == nil {
		return true, nil
	}
	return caught.Type() == "identifier" && broadExceptionTypes[caught.Text()], nil
}

// caughtType returns the expression naming the caught type, or nil for a
// bare except.
func caughtType(n *Node) *Node {
	for _, c := range n.NamedChildren() {
		if c.Type() == "block" {
			return nil
		}
		if c.Type() == "as_pattern" {
			if inner := c.NamedChildren(); len(inner) > 0 {
				return inner[0]
			}
		}
		return c
	}
	return nil
}

// swallowedExceptionDetector reports handlers whose body is only pass.
type swallowedExceptionDetector struct{}

func (swallowedExceptionDetector) ID() string { return SwallowsException }

func (swallowedExceptionDetector) Applies(kind string) bool { return kind == complexity.KindExcept }

func (swallowedExceptionDetector) Detect(n *Node) (bool, error) {
	var body *Node
	for _, c := range n.NamedChildren() {
		if c.Type() == "block" {
			body = c
		}
	}
	stmts := body.NamedChildren()
	return len(stmts) == 1 && stmts[0].Type() == "pass_statement", nil
}
