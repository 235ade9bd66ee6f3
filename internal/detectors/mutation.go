package detectors

import "ppde/internal/complexity"

// parameterMutationDetector reports whether a function assigns to one of its
// own parameters. self is ignored.
type parameterMutationDetector struct{}

func (parameterMutationDetector) ID() string { return MutatesParameter }

func (parameterMutationDetector) Applies(kind string) bool { return kind == complexity.KindFunction }

func (parameterMutationDetector) Detect(n *Node) (bool, error) {
	params := parameterNames(n)
	delete(params, "self")
	if len(params) == 0 {
		return false, nil
	}

	body := n.Field("body")
	found := false
	body.Walk(func(c *Node) bool {
		if found {
			return false
		}
		switch c.Type() {
		case "assignment", "augmented_assignment":
			if left := c.Field("left"); left.Type() == "identifier" && params[left.Text()] {
				found = true
				return false
			}
		}
		return true
	})
	return found, nil
}

// parameterNames collects the plain, typed and defaulted parameter names.
// Splat parameters are not included.
func parameterNames(fn *Node) map[string]bool {
	names := make(map[string]bool)
	for _, p := range fn.Field("parameters").NamedChildren() {
		switch p.Type() {
		case "identifier":
			names[p.Text()] = true
		case "typed_parameter":
			if kids := p.NamedChildren(); len(kids) > 0 && kids[0].Type() == "identifier" {
				names[kids[0].Text()] = true
			}
		case "default_parameter", "typed_default_parameter":
			if name := p.Field("name"); name.Type() == "identifier" {
				names[name.Text()] = true
			}
		}
	}
	return names
}

// globalWriteDetector reports whether a function declares a global.
type globalWriteDetector struct{}

func (globalWriteDetector) ID() string { return WritesGlobalState }

func (globalWriteDetector) Applies(kind string) bool { return kind == complexity.KindFunction }

func (globalWriteDetector) Detect(n *Node) (bool, error) {
	return n.Field("body").Contains("global_statement"), nil
}
