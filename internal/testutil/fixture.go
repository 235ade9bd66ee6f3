package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// DefaultAuthor is the author email used by NewRepo.
const DefaultAuthor = "dev@example.com"

// Repo is a throwaway git repository with deterministic commit dates.
type Repo struct {
	Root string
	t    *testing.T
}

// RequireGit skips the test when git is not on PATH.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// NewRepo initializes an empty repository in a temp dir with user.email set
// to DefaultAuthor.
func NewRepo(t *testing.T) *Repo {
	t.Helper()
	RequireGit(t)

	r := &Repo{Root: t.TempDir(), t: t}
	r.Git("init", "-q")
	r.Git("config", "user.email", DefaultAuthor)
	r.Git("config", "user.name", "Dev")
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Git runs a git command in the repository and returns trimmed stdout.
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	return r.gitEnv(nil, args...)
}

func (r *Repo) gitEnv(env []string, args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Root
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1")
	cmd.Env = append(cmd.Env, env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to a repo-relative path, creating directories.
func (r *Repo) WriteFile(rel, content string) {
	r.t.Helper()
	path := filepath.Join(r.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatal(err)
	}
}

// Commit stages everything and commits as DefaultAuthor at when.
func (r *Repo) Commit(message string, when time.Time) string {
	r.t.Helper()
	return r.CommitAs(DefaultAuthor, message, when)
}

// CommitAs stages everything and commits as email at when, returning the sha.
func (r *Repo) CommitAs(email, message string, when time.Time) string {
	r.t.Helper()
	date := when.UTC().Format(time.RFC3339)
	env := []string{
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_AUTHOR_NAME=Dev",
		"GIT_COMMITTER_EMAIL=" + email,
		"GIT_COMMITTER_NAME=Dev",
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_DATE=" + date,
	}
	r.Git("add", "-A")
	r.gitEnv(env, "commit", "-q", "--allow-empty", "-m", message)
	return r.Git("rev-parse", "HEAD")
}
