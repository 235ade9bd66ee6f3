package git

import (
	"context"
	"time"
)

// HistoryBackend is the read-only view of git history that analysis and the
// baseline builder depend on.
type HistoryBackend interface {
	// HeadCommit returns the full sha of HEAD.
	HeadCommit(ctx context.Context) (string, error)

	// HeadTime returns the committer timestamp of HEAD.
	HeadTime(ctx context.Context) (time.Time, error)

	// ResolveAuthor returns configured when non-empty, else user.email, else
	// the most frequent author email of the last 100 commits.
	ResolveAuthor(ctx context.Context, configured string) (string, error)

	// GetCommits returns the author's windowed commits, newest first.
	GetCommits(ctx context.Context, opts HistoryOptions) ([]CommitInfo, error)

	// ShowFile returns the content of path as of commit sha.
	ShowFile(ctx context.Context, sha, path string) ([]byte, error)
}

var _ HistoryBackend = (*GitAdapter)(nil)
