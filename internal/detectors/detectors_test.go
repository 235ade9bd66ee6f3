//go:build cgo

package detectors

import (
	"context"
	"errors"
	"testing"

	"ppde/internal/complexity"
	ppdeerrors "ppde/internal/errors"
)

// firstSite parses source and returns the first site of the given kind.
func firstSite(t *testing.T, source, kind string) *Node {
	t.Helper()
	pf, err := complexity.NewAnalyzer().Analyze(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for _, s := range pf.Sites {
		if s.Kind == kind {
			return s.Node
		}
	}
	t.Fatalf("no %s site in source", kind)
	return nil
}

func detect(t *testing.T, d Detector, n *Node) bool {
	t.Helper()
	v, err := Run(d, n)
	if err != nil {
		t.Fatalf("Run(%s) error = %v", d.ID(), err)
	}
	return v
}

func TestTimeoutDetector(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		external bool
		want     bool
	}{
		{"requests without timeout", "requests.get(url)\n", true, false},
		{"requests with timeout", "requests.get(url, timeout=5)\n", true, true},
		{"cursor execute", "cursor.execute(sql)\n", true, false},
		{"method name match", "client.post(url, data, timeout=t)\n", true, true},
		{"open builtin", "open(path)\n", true, false},
		{"non external call", "print(x, timeout=1)\n", false, true},
		{"non external plain", "compute(x)\n", false, false},
	}

	d := timeoutDetector{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := firstSite(t, tt.source, complexity.KindCall)
			if got := d.Accepts(n); got != tt.external {
				t.Errorf("Accepts() = %v, want %v", got, tt.external)
			}
			if got := detect(t, d, n); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParameterMutationDetector(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"reassigns param", "def f(a, b):\n    a = 1\n    return a\n", true},
		{"augmented assign", "def f(total):\n    total += 1\n", true},
		{"typed default param", "def f(n: int = 0):\n    n = n + 1\n", true},
		{"local only", "def f(a):\n    b = a\n    return b\n", false},
		{"self excluded", "class C:\n    def f(self):\n        self = None\n", false},
		{"attribute assign", "def f(obj):\n    obj.x = 1\n", false},
		{"no params", "def f():\n    x = 1\n", false},
	}

	d := parameterMutationDetector{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := firstSite(t, tt.source, complexity.KindFunction)
			if got := detect(t, d, n); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobalWriteDetector(t *testing.T) {
	d := globalWriteDetector{}
	withGlobal := firstSite(t, "def f():\n    global counter\n    counter = 1\n", complexity.KindFunction)
	if !detect(t, d, withGlobal) {
		t.Error("expected global statement to be detected")
	}
	without := firstSite(t, "def f():\n    counter = 1\n", complexity.KindFunction)
	if detect(t, d, without) {
		t.Error("local assignment reported as global write")
	}
}

func TestExceptionDetectors(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		wantBroad   bool
		wantSwallow bool
	}{
		{"bare except pass", "try:\n    x()\nexcept:\n    pass\n", true, true},
		{"exception logged", "try:\n    x()\nexcept Exception as e:\n    log(e)\n", true, false},
		{"base exception", "try:\n    x()\nexcept BaseException:\n    raise\n", true, false},
		{"specific swallowed", "try:\n    x()\nexcept ValueError:\n    pass\n", false, true},
		{"tuple of types", "try:\n    x()\nexcept (ValueError, TypeError):\n    pass\n", false, true},
		{"pass with comment", "try:\n    x()\nexcept KeyError:\n    # ignore\n    pass\n", false, true},
		{"pass then more", "try:\n    x()\nexcept KeyError:\n    pass\n    y()\n", false, false},
	}

	broad, swallow := broadExceptionDetector{}, swallowedExceptionDetector{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := firstSite(t, tt.source, complexity.KindExcept)
			if got := detect(t, broad, n); got != tt.wantBroad {
				t.Errorf("broad = %v, want %v", got, tt.wantBroad)
			}
			if got := detect(t, swallow, n); got != tt.wantSwallow {
				t.Errorf("swallow = %v, want %v", got, tt.wantSwallow)
			}
		})
	}
}

func TestRegistry_ForNode(t *testing.T) {
	r := Default()
	if got := r.IDs(); len(got) != 5 || got[0] != HasTimeoutParameter || got[4] != SwallowsException {
		t.Fatalf("Default() ids = %v", got)
	}

	call := firstSite(t, "compute(x)\n", complexity.KindCall)
	if got := r.ForNode(call); len(got) != 0 {
		t.Errorf("non-external call got %d detectors", len(got))
	}
	ext := firstSite(t, "requests.get(u)\n", complexity.KindCall)
	if got := r.ForNode(ext); len(got) != 1 || got[0].ID() != HasTimeoutParameter {
		t.Errorf("external call detectors = %v", got)
	}
	fn := firstSite(t, "def f(a):\n    pass\n", complexity.KindFunction)
	if got := r.ForNode(fn); len(got) != 2 || got[0].ID() != MutatesParameter || got[1].ID() != WritesGlobalState {
		t.Errorf("function detectors = %v", got)
	}
}

type panicky struct{}

func (panicky) ID() string { return "panicky" }
func (panicky) Applies(string) bool { return true }
func (panicky) Detect(*Node) (bool, error) { panic("boom") }

type failing struct{}

func (failing) ID() string { return "failing" }
func (failing) Applies(string) bool { return true }
func (failing) Detect(*Node) (bool, error) { return true, errors.New("cannot decide") }

func TestRun_RecoversFailures(t *testing.T) {
	for _, d := range []Detector{panicky{}, failing{}} {
		v, err := Run(d, nil)
		if v {
			t.Errorf("%s: value should be false on failure", d.ID())
		}
		if !ppdeerrors.Is(err, ppdeerrors.DetectorFailed) {
			t.Errorf("%s: error = %v, want DETECTOR_FAILED", d.ID(), err)
		}
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(failing{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(failing{}); err == nil {
		t.Error("duplicate registration should fail")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_EvaluateContinuesAfterFailure(t *testing.T) {
	r := NewRegistry()
	for _, d := range []Detector{panicky{}, parameterMutationDetector{}} {
		if err := r.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	pf, err := complexity.NewAnalyzer().Analyze(context.Background(), []byte("def f(a):\n    a = 1\n"))
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	var failures int
	r.Evaluate(pf, func(site complexity.Site, id string, value bool, err error) {
		ids = append(ids, id)
		if err != nil {
			failures++
			return
		}
		if id == MutatesParameter && !value {
			t.Error("mutation should be detected")
		}
	})
	if len(ids) != 2 || ids[0] != "panicky" || ids[1] != MutatesParameter {
		t.Errorf("evaluation order = %v", ids)
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}
