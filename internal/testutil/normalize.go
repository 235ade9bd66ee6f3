package testutil

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

// RepoPlaceholder replaces the temporary repository root in golden output.
const RepoPlaceholder = "<repo>"

// NormalizeText replaces every spelling of root in s with RepoPlaceholder
// and converts line endings to \n.
func NormalizeText(s, root string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if root == "" {
		return s
	}
	for _, r := range rootSpellings(root) {
		s = strings.ReplaceAll(s, r, RepoPlaceholder)
	}
	return s
}

// rootSpellings returns root plus its symlink-resolved and slash forms,
// longest first so a longer spelling is never partially replaced.
func rootSpellings(root string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(root)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		add(resolved)
	}
	for _, p := range append([]string(nil), out...) {
		add(filepath.ToSlash(p))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// MarshalNormalized marshals v to indented JSON with sorted keys, replacing
// root in every string value, with a trailing newline.
func MarshalNormalized(t *testing.T, v any, root string) []byte {
	t.Helper()

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}
	generic = normalizeValue(generic, root)

	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return append(out, '\n')
}

func normalizeValue(v any, root string) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeValue(item, root)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeValue(item, root)
		}
		return val
	case string:
		return NormalizeText(val, root)
	default:
		return v
	}
}
