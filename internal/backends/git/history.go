package git

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ppde/internal/errors"
)

const (
	// DefaultMaxAgeDays bounds the history window relative to the reference time.
	DefaultMaxAgeDays = 180
	// DefaultMaxCommits bounds the number of commits kept after filtering.
	DefaultMaxCommits = 250

	authorSampleSize = 100

	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// CommitInfo represents information about a single commit
type CommitInfo struct {
	Hash      string       `json:"hash"`
	Author    string       `json:"author"` // email
	Timestamp time.Time    `json:"timestamp"`
	Message   string       `json:"message"` // full message, trimmed
	Files     []FileChange `json:"files"`
}

// Subject returns the first line of the commit message.
func (c CommitInfo) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return subject
}

// PythonFiles returns the changed .py paths that still exist after the commit.
func (c CommitInfo) PythonFiles() []string {
	var out []string
	for _, f := range c.Files {
		if f.IsPython() && !f.IsDeleted {
			out = append(out, f.FilePath)
		}
	}
	return out
}

func (c CommitInfo) touchesPython() bool {
	for _, f := range c.Files {
		if f.IsPython() {
			return true
		}
	}
	return false
}

// HistoryOptions selects the commits used to build context.
type HistoryOptions struct {
	// Author is an email; empty means ResolveAuthor("").
	Author string

	MaxAgeDays int
	MaxCommits int

	// Reference is the "now" the window is measured from, normally HEAD's time.
	Reference time.Time
}

func (o HistoryOptions) withDefaults() HistoryOptions {
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = DefaultMaxAgeDays
	}
	if o.MaxCommits <= 0 {
		o.MaxCommits = DefaultMaxCommits
	}
	return o
}

// HeadCommit returns the HEAD commit hash.
func (g *GitAdapter) HeadCommit(ctx context.Context) (string, error) {
	return g.executeGitCommand(ctx, "rev-parse", "HEAD")
}

// HeadTime returns the committer timestamp of HEAD in UTC.
func (g *GitAdapter) HeadTime(ctx context.Context) (time.Time, error) {
	output, err := g.executeGitCommand(ctx, "log", "-1", "--format=%ct", "HEAD")
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(output, 10, 64)
	if err != nil {
		return time.Time{}, errors.NewPpdeError(errors.GitFailed, "Failed to parse HEAD timestamp", err, nil)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// ResolveAuthor picks whose history to learn from.
func (g *GitAdapter) ResolveAuthor(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	// git config exits 1 when the key is unset
	if email, err := g.executeGitCommand(ctx, "config", "--get", "user.email"); err == nil && email != "" {
		return email, nil
	}

	lines, err := g.executeGitCommandLines(ctx, "log", "--format=%ae", fmt.Sprintf("--max-count=%d", authorSampleSize), "HEAD")
	if err != nil {
		return "", err
	}
	author := mostFrequent(lines)
	if author == "" {
		return "", errors.NewPpdeError(errors.RepositoryInvalid, "Repository has no commits", nil, nil)
	}
	g.logger.Debug("Resolved author from history", "author", author)
	return author, nil
}

// mostFrequent returns the most common line; ties go to the one seen first.
func mostFrequent(lines []string) string {
	counts := make(map[string]int, len(lines))
	best, bestCount := "", 0
	for _, l := range lines {
		counts[l]++
	}
	for _, l := range lines {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}

// GetCommits returns non-merge commits by the author inside the window,
// newest first. Commits after the reference time are ignored and only
// commits touching Python files are kept.
func (g *GitAdapter) GetCommits(ctx context.Context, opts HistoryOptions) ([]CommitInfo, error) {
	opts = opts.withDefaults()

	author, err := g.ResolveAuthor(ctx, opts.Author)
	if err != nil {
		return nil, err
	}
	ref := opts.Reference
	if ref.IsZero() {
		if ref, err = g.HeadTime(ctx); err != nil {
			return nil, err
		}
	}

	g.logger.Debug("Getting commits",
		"author", author,
		"maxAgeDays", opts.MaxAgeDays,
		"maxCommits", opts.MaxCommits,
		"reference", ref.Format(time.RFC3339),
	)

	output, err := g.executeGitCommandRaw(ctx,
		"log",
		"--no-merges",
		"--format=%H%x1f%ae%x1f%ct%x1f%B%x1e",
		"--author="+author,
		fmt.Sprintf("--max-count=%d", opts.MaxCommits*2),
		"HEAD",
	)
	if err != nil {
		return nil, err
	}

	window := time.Duration(opts.MaxAgeDays) * 24 * time.Hour
	commits := make([]CommitInfo, 0)
	for _, c := range parseLog(string(output)) {
		delta := ref.Sub(c.Timestamp)
		if delta < 0 {
			continue
		}
		if delta > window {
			break
		}

		files, err := g.GetCommitChanges(ctx, c.Hash)
		if err != nil {
			return nil, err
		}
		c.Files = files
		if !c.touchesPython() {
			continue
		}
		commits = append(commits, c)
		if len(commits) >= opts.MaxCommits {
			break
		}
	}

	g.logger.Debug("Commits selected", "count", len(commits))
	return commits, nil
}

// parseLog splits the record/field separated log output. Malformed
// records are dropped.
func parseLog(output string) []CommitInfo {
	var commits []CommitInfo
	for _, record := range strings.Split(output, recordSep) {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		parts := strings.SplitN(record, fieldSep, 4)
		if len(parts) != 4 {
			continue
		}
		secs, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		commits = append(commits, CommitInfo{
			Hash:      parts[0],
			Author:    parts[1],
			Timestamp: time.Unix(secs, 0).UTC(),
			Message:   strings.TrimSpace(parts[3]),
		})
	}
	return commits
}

// ShowFile returns the content of path at commit sha.
func (g *GitAdapter) ShowFile(ctx context.Context, sha, path string) ([]byte, error) {
	if sha == "" || path == "" {
		return nil, errors.NewPpdeError(errors.InternalError, "Commit and path are required", nil, nil)
	}
	return g.executeGitCommandRaw(ctx, "show", sha+":"+path)
}

// Oldest returns commits sorted oldest first without modifying the input.
func Oldest(commits []CommitInfo) []CommitInfo {
	out := make([]CommitInfo, len(commits))
	copy(out, commits)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
