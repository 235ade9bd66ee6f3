package git

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"ppde/internal/errors"
	"ppde/internal/testutil"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return base.Add(time.Duration(n) * 24 * time.Hour)
}

func setupTestAdapter(t *testing.T, repo *testutil.Repo) *GitAdapter {
	t.Helper()
	adapter, err := NewGitAdapter(repo.Root, 0, nil)
	if err != nil {
		t.Fatalf("NewGitAdapter() error = %v", err)
	}
	return adapter
}

func TestNewGitAdapter_NonGitDirectory(t *testing.T) {
	testutil.RequireGit(t)
	_, err := NewGitAdapter(t.TempDir(), time.Second, nil)
	if !errors.Is(err, errors.RepositoryInvalid) {
		t.Errorf("error = %v, want REPOSITORY_INVALID", err)
	}
}

func TestGitAdapter_Basics(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.WriteFile("a.py", "x = 1\n")
	sha := repo.Commit("initial", day(0))

	g := setupTestAdapter(t, repo)
	if g.ID() != BackendID {
		t.Errorf("ID() = %q", g.ID())
	}
	if g.queryTimeout != DefaultQueryTimeout {
		t.Errorf("timeout = %v, want default", g.queryTimeout)
	}

	ctx := context.Background()
	head, err := g.HeadCommit(ctx)
	if err != nil || head != sha {
		t.Errorf("HeadCommit() = %q, %v; want %q", head, err, sha)
	}
	ht, err := g.HeadTime(ctx)
	if err != nil || !ht.Equal(day(0)) {
		t.Errorf("HeadTime() = %v, %v; want %v", ht, err, day(0))
	}

	state, err := g.GetRepoState(ctx)
	if err != nil {
		t.Fatalf("GetRepoState() error = %v", err)
	}
	if state.HeadCommit != sha {
		t.Errorf("state.HeadCommit = %q", state.HeadCommit)
	}
}

func TestGitAdapter_CommandFailure(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.WriteFile("a.py", "x = 1\n")
	sha := repo.Commit("initial", day(0))
	g := setupTestAdapter(t, repo)

	_, err := g.ShowFile(context.Background(), sha, "missing.py")
	if !errors.Is(err, errors.GitFailed) {
		t.Errorf("ShowFile(missing) error = %v, want GIT_FAILED", err)
	}

	if _, err := g.ShowFile(context.Background(), "", "a.py"); !errors.Is(err, errors.InternalError) {
		t.Errorf("ShowFile(empty sha) error = %v, want INTERNAL_ERROR", err)
	}
}

func TestResolveAuthor(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.CommitAs("other@example.com", "one", day(0))
	repo.CommitAs("main@example.com", "two", day(1))
	repo.CommitAs("main@example.com", "three", day(2))
	g := setupTestAdapter(t, repo)
	ctx := context.Background()

	got, err := g.ResolveAuthor(ctx, "explicit@example.com")
	if err != nil || got != "explicit@example.com" {
		t.Errorf("ResolveAuthor(explicit) = %q, %v", got, err)
	}

	got, err = g.ResolveAuthor(ctx, "")
	if err != nil || got != testutil.DefaultAuthor {
		t.Errorf("ResolveAuthor(config) = %q, %v; want %q", got, err, testutil.DefaultAuthor)
	}

	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	repo.Git("config", "--unset", "user.email")
	got, err = g.ResolveAuthor(ctx, "")
	if err != nil || got != "main@example.com" {
		t.Errorf("ResolveAuthor(most frequent) = %q, %v", got, err)
	}
}

func TestMostFrequent(t *testing.T) {
	tests := []struct {
		lines []string
		want  string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "b"}, "b"},
		{[]string{"b", "a", "a", "b"}, "b"},
	}
	for _, tt := range tests {
		if got := mostFrequent(tt.lines); got != tt.want {
			t.Errorf("mostFrequent(%v) = %q, want %q", tt.lines, got, tt.want)
		}
	}
}

func TestGetCommits_WindowAuthorAndPythonFilter(t *testing.T) {
	repo := testutil.NewRepo(t)

	repo.WriteFile("old.py", "a = 1\n")
	repo.Commit("ancient", day(-400))

	repo.WriteFile("svc.py", "def f():\n    pass\n")
	first := repo.Commit("add service", day(-100))

	repo.WriteFile("README.md", "docs\n")
	repo.Commit("docs only", day(-90))

	repo.WriteFile("svc.py", "def f():\n    return 1\n")
	repo.CommitAs("someone@example.com", "their change", day(-80))

	repo.WriteFile("svc.py", "def f():\n    return 2\n")
	repo.WriteFile("util.py", "B = 2\n")
	second := repo.Commit("fix crash in f\n\nlonger body", day(-10))

	g := setupTestAdapter(t, repo)
	commits, err := g.GetCommits(context.Background(), HistoryOptions{Reference: day(0)})
	if err != nil {
		t.Fatalf("GetCommits() error = %v", err)
	}

	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2: %+v", len(commits), commits)
	}
	if commits[0].Hash != second || commits[1].Hash != first {
		t.Errorf("commits not newest first: %s, %s", commits[0].Hash, commits[1].Hash)
	}
	if commits[0].Subject() != "fix crash in f" || !strings.Contains(commits[0].Message, "longer body") {
		t.Errorf("message = %q", commits[0].Message)
	}
	if !commits[0].IsFix() || commits[1].IsFix() {
		t.Error("fix classification wrong")
	}
	files := commits[0].PythonFiles()
	if len(files) != 2 || files[0] != "svc.py" || files[1] != "util.py" {
		t.Errorf("PythonFiles() = %v", files)
	}
	if !commits[1].Files[0].IsNew {
		t.Error("first commit of svc.py should mark it new")
	}
}

func TestGetCommits_MaxCommitsAndFuture(t *testing.T) {
	repo := testutil.NewRepo(t)
	for i := 0; i < 5; i++ {
		repo.WriteFile("m.py", strings.Repeat("x = 1\n", i+1))
		repo.Commit("edit", day(-5+i))
	}
	repo.WriteFile("m.py", "future = True\n")
	repo.Commit("later", day(3))

	g := setupTestAdapter(t, repo)
	commits, err := g.GetCommits(context.Background(), HistoryOptions{Reference: day(0), MaxCommits: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(commits))
	}
	for _, c := range commits {
		if c.Timestamp.After(day(0)) {
			t.Errorf("commit after the reference time included: %v", c.Timestamp)
		}
	}
}

func TestGetCommitChanges_DeleteAndBinary(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.WriteFile("gone.py", "a = 1\n")
	repo.WriteFile("blob.bin", "\x00\x01\x02")
	repo.Commit("add", day(0))
	repo.Git("rm", "-q", "gone.py")
	sha := repo.Commit("remove", day(1))

	g := setupTestAdapter(t, repo)
	changes, err := g.GetCommitChanges(context.Background(), sha)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 || changes[0].FilePath != "gone.py" || !changes[0].IsDeleted || changes[0].Deletions != 1 {
		t.Errorf("changes = %+v", changes)
	}
	c := CommitInfo{Files: changes}
	if len(c.PythonFiles()) != 0 {
		t.Error("deleted files must not be offered for replay")
	}
}

func TestShowFile(t *testing.T) {
	repo := testutil.NewRepo(t)
	repo.WriteFile("a.py", "v = 1\n")
	first := repo.Commit("one", day(0))
	repo.WriteFile("a.py", "v = 2\n")
	repo.Commit("two", day(1))

	g := setupTestAdapter(t, repo)
	got, err := g.ShowFile(context.Background(), first, "a.py")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v = 1\n" {
		t.Errorf("ShowFile() = %q", got)
	}
}

func TestParseLog(t *testing.T) {
	out := "abc\x1fa@x\x1f1700000000\x1ffix it\n\nbody\n\x1e\n" +
		"bad record\x1e\n" +
		"def\x1fb@x\x1fnotanumber\x1fmsg\x1e\n"
	commits := parseLog(out)
	if len(commits) != 1 {
		t.Fatalf("parseLog returned %d commits, want 1", len(commits))
	}
	if commits[0].Hash != "abc" || commits[0].Message != "fix it\n\nbody" {
		t.Errorf("commit = %+v", commits[0])
	}
}
