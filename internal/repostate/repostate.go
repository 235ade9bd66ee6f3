package repostate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ppde/internal/errors"
)

const (
	// EmptyHash represents an empty diff/list hash
	EmptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// RepoState identifies the exact tree an analysis or baseline ran against.
type RepoState struct {
	RepoStateID         string    `json:"repoStateId"`
	HeadCommit          string    `json:"headCommit"`
	HeadTime            time.Time `json:"headTime"`
	StagedDiffHash      string    `json:"stagedDiffHash"`
	WorkingTreeDiffHash string    `json:"workingTreeDiffHash"`
	UntrackedListHash   string    `json:"untrackedListHash"`
	Dirty               bool      `json:"dirty"`
}

// ComputeRepoState computes the current repository state using git commands
func ComputeRepoState(ctx context.Context, repoRoot string) (*RepoState, error) {
	headCommit, err := runGit(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return nil, errors.NewPpdeError(
			errors.RepositoryInvalid,
			"Failed to get HEAD commit",
			err,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "git log -1",
					Safe:        true,
					Description: "Check that the repository has at least one commit",
				},
			},
		)
	}
	headCommit = strings.TrimSpace(headCommit)

	headTime, err := headCommitTime(ctx, repoRoot)
	if err != nil {
		return nil, errors.NewPpdeError(errors.GitFailed, "Failed to get HEAD timestamp", err, nil)
	}

	stagedDiff, err := runGit(ctx, repoRoot, "diff", "--cached")
	if err != nil {
		return nil, errors.NewPpdeError(errors.GitFailed, "Failed to get staged diff", err, nil)
	}
	stagedDiffHash := hashString(stagedDiff)

	workingDiff, err := runGit(ctx, repoRoot, "diff", "HEAD")
	if err != nil {
		return nil, errors.NewPpdeError(errors.GitFailed, "Failed to get working tree diff", err, nil)
	}
	workingTreeDiffHash := hashString(workingDiff)

	untrackedFiles, err := runGit(ctx, repoRoot, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, errors.NewPpdeError(errors.GitFailed, "Failed to get untracked files", err, nil)
	}
	untrackedListHash := hashString(untrackedFiles)

	dirty := stagedDiffHash != EmptyHash ||
		workingTreeDiffHash != EmptyHash ||
		untrackedListHash != EmptyHash

	return &RepoState{
		RepoStateID:         computeRepoStateID(headCommit, stagedDiffHash, workingTreeDiffHash, untrackedListHash),
		HeadCommit:          headCommit,
		HeadTime:            headTime,
		StagedDiffHash:      stagedDiffHash,
		WorkingTreeDiffHash: workingTreeDiffHash,
		UntrackedListHash:   untrackedListHash,
		Dirty:               dirty,
	}, nil
}

func headCommitTime(ctx context.Context, repoRoot string) (time.Time, error) {
	out, err := runGit(ctx, repoRoot, "log", "-1", "--format=%ct", "HEAD")
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot

	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	return string(output), nil
}

// hashString computes SHA256 hash of a string
func hashString(s string) string {
	if s == "" {
		return EmptyHash
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}

// computeRepoStateID computes the composite repoStateId from all components
func computeRepoStateID(headCommit, stagedHash, workingHash, untrackedHash string) string {
	composite := fmt.Sprintf("%s:%s:%s:%s", headCommit, stagedHash, workingHash, untrackedHash)
	return hashString(composite)
}

// IsGitRepository checks if the given path is inside a git work tree
func IsGitRepository(repoRoot string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// GetRepoRoot finds the git repository root from the given directory
func GetRepoRoot(startPath string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = startPath

	output, err := cmd.Output()
	if err != nil {
		return "", errors.RepositoryError(startPath, err)
	}

	return strings.TrimSpace(string(output)), nil
}
