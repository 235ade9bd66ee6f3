//go:build cgo

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ppde/internal/errors"
	"ppde/internal/testutil"
)

func TestAnalyzeCommand(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.WriteFile("app.py", "def handler(event):\n    event['seen'] = True\n")
	repo.Commit("add handler", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	out, err := execute(t, "analyze", repo.Root, "--store", "none")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	want := "Total findings: 0\nNo unusual patterns detected.\n"
	if !strings.HasPrefix(out, "Analyzed repository: ") || !strings.HasSuffix(out, want) {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "analyze", repo.Root, "--store", "sqlite", "--format", "json")
	if err != nil {
		t.Fatalf("analyze json: %v", err)
	}
	var report struct {
		Findings []json.RawMessage `json:"findings"`
		Stats    struct {
			Files int `json:"files"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if report.Findings == nil || len(report.Findings) != 0 || report.Stats.Files != 1 {
		t.Errorf("unexpected report: %s", out)
	}
}

func TestAnalyzeCommand_NotARepository(t *testing.T) {
	testutil.RequireGit(t)
	_, err := execute(t, "analyze", t.TempDir())
	if !errors.Is(err, errors.RepositoryInvalid) || exitCode(err) != 1 {
		t.Errorf("error = %v, want REPOSITORY_INVALID with exit 1", err)
	}
}

func TestAnalyzeCommand_SnapshotRelativeToWorkingDir(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.WriteFile("app.py", "def handler(event):\n    event['seen'] = True\n")
	repo.Commit("add handler", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	wd := t.TempDir()
	t.Chdir(wd)
	body := `{"version":1,"records":[{"detector":"mutates_parameter","context":0,"n":2,"k":3}]}`
	if err := os.WriteFile(filepath.Join(wd, "snap.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "analyze", repo.Root, "--snapshot", "snap.json")
	if !errors.Is(err, errors.StoreInvariant) {
		t.Errorf("inconsistent snapshot error = %v, want STORE_INVARIANT", err)
	}

	out, err := execute(t, "analyze", repo.Root, "--snapshot", "missing.json")
	if !errors.Is(err, errors.StoreUnavailable) || exitCode(err) != 1 {
		t.Errorf("missing snapshot error = %v, want STORE_UNAVAILABLE with exit 1", err)
	}
	if strings.Contains(out, "No unusual patterns detected.") {
		t.Errorf("a missing snapshot must not be reported as a clean run:\n%s", out)
	}
}
