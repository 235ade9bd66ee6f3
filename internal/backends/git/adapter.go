package git

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"ppde/internal/errors"
	"ppde/internal/repostate"
	"ppde/internal/slogutil"
)

const (
	// BackendID is the unique identifier for the Git backend
	BackendID = "git"

	// DefaultQueryTimeout is the default timeout for git operations (5000ms)
	DefaultQueryTimeout = 5000 * time.Millisecond
)

// GitAdapter runs git subprocesses against one repository.
type GitAdapter struct {
	repoRoot     string
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewGitAdapter creates a git backend for repoRoot. A non-positive timeout
// selects DefaultQueryTimeout. The path must be inside a git work tree.
func NewGitAdapter(repoRoot string, timeout time.Duration, logger *slog.Logger) (*GitAdapter, error) {
	logger = slogutil.OrDiscard(logger)
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	adapter := &GitAdapter{
		repoRoot:     repoRoot,
		queryTimeout: timeout,
		logger:       logger,
	}

	if !adapter.IsAvailable() {
		return nil, errors.RepositoryError(repoRoot, nil)
	}

	logger.Debug("Git adapter initialized",
		"backend", BackendID,
		"repoRoot", repoRoot,
		"timeout", timeout.String(),
	)

	return adapter, nil
}

// ID returns the backend identifier
func (g *GitAdapter) ID() string {
	return BackendID
}

// RepoRoot returns the repository the adapter was created for.
func (g *GitAdapter) RepoRoot() string {
	return g.repoRoot
}

// IsAvailable checks if git is available and this is a git repository
func (g *GitAdapter) IsAvailable() bool {
	return repostate.IsGitRepository(g.repoRoot)
}

// executeGitCommandRaw runs a git command with the adapter timeout and
// returns stdout untouched.
func (g *GitAdapter) executeGitCommandRaw(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot

	g.logger.Debug("Executing git command",
		"args", args,
		"timeout", g.queryTimeout.String(),
	)

	output, err := cmd.Output()
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewPpdeError(
				errors.Timeout,
				"Git command timed out",
				err,
				nil,
			).WithDetails(map[string]interface{}{
				"args":    args,
				"timeout": g.queryTimeout.String(),
			})
		}

		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, errors.NewPpdeError(
				errors.GitFailed,
				"Git command failed",
				err,
				nil,
			).WithDetails(map[string]interface{}{
				"args":   args,
				"stderr": strings.TrimSpace(string(exitErr.Stderr)),
			})
		}

		return nil, errors.NewPpdeError(
			errors.GitFailed,
			"Failed to execute git command",
			err,
			nil,
		)
	}

	return output, nil
}

// executeGitCommand runs a git command and returns trimmed output
func (g *GitAdapter) executeGitCommand(ctx context.Context, args ...string) (string, error) {
	output, err := g.executeGitCommandRaw(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// executeGitCommandLines runs a git command and returns output as lines
func (g *GitAdapter) executeGitCommandLines(ctx context.Context, args ...string) ([]string, error) {
	output, err := g.executeGitCommand(ctx, args...)
	if err != nil {
		return nil, err
	}

	if output == "" {
		return []string{}, nil
	}

	lines := strings.Split(output, "\n")
	// Filter out empty lines
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result, nil
}
