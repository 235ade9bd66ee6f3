package detectors

import "ppde/internal/complexity"

// externalCallTargets are the callee names treated as network, database or
// filesystem access. Bare names match both plain calls and method calls.
var externalCallTargets = map[string]bool{
	"requests.get": true, "requests.post": true, "requests.put": true, "requests.delete": true,
	"get": true, "post": true, "put": true, "delete": true,
	"urlopen": true, "urllib": true,
	"query": true, "execute": true, "fetchall": true, "fetchone": true,
	"db.query": true, "session.execute": true, "cursor.execute": true,
	"open": true, "read": true, "write": true,
}

// timeoutDetector reports whether an external call passes timeout=.
// Calls that are not external are not sites for this detector.
type timeoutDetector struct{}

func (timeoutDetector) ID() string { return HasTimeoutParameter }

func (timeoutDetector) Applies(kind string) bool { return kind == complexity.KindCall }

// Accepts limits the detector to external calls.
func (timeoutDetector) Accepts(n *Node) bool { return IsExternalCall(n) }

func (timeoutDetector) Detect(n *Node) (bool, error) {
	return hasKeywordArg(n, "timeout"), nil
}

// IsExternalCall reports whether a call node targets one of the known
// network, database or filesystem entry points.
func IsExternalCall(n *Node) bool {
	if n.Type() != complexity.KindCall {
		return false
	}
	fn := n.Field("function")
	switch fn.Type() {
	case "identifier":
		return externalCallTargets[fn.Text()]
	case "attribute":
		attr := fn.Field("attribute")
		if attr == nil {
			return false
		}
		if externalCallTargets[attr.Text()] {
			return true
		}
		if obj := fn.Field("object"); obj.Type() == "identifier" {
			return externalCallTargets[obj.Text()+"."+attr.Text()]
		}
	}
	return false
}

func hasKeywordArg(call *Node, keyword string) bool {
	args := call.Field("arguments")
	if args.Type() != "argument_list" {
		return false
	}
	for _, arg := range args.NamedChildren() {
		if arg.Type() != "keyword_argument" {
			continue
		}
		if name := arg.Field("name"); name != nil && name.Text() == keyword {
			return true
		}
	}
	return false
}
