package git

import (
	"strings"
	"time"

	"ppde/internal/classify"
)

var (
	fixKeywords      = []string{"fix", "bug", "error", "crash", "broken", "issue"}
	refactorKeywords = []string{"refactor", "cleanup", "style", "migration"}
)

// IsFix reports whether the commit message suggests a bug fix.
func (c CommitInfo) IsFix() bool {
	return containsAny(c.Message, fixKeywords)
}

// IsRefactor reports whether the commit message suggests an intentional
// restructuring rather than a behavior change.
func (c CommitInfo) IsRefactor() bool {
	return containsAny(c.Message, refactorKeywords)
}

func containsAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// HistoryIndex accumulates per-file history one commit at a time.
type HistoryIndex struct {
	files map[string]classify.FileHistory
}

// NewHistoryIndex returns an empty index.
func NewHistoryIndex() *HistoryIndex {
	return &HistoryIndex{files: make(map[string]classify.FileHistory)}
}

// Apply records one commit. Commits may be applied in any order. Deleted
// paths are included since the deletion still touched them.
func (x *HistoryIndex) Apply(c CommitInfo) {
	fix := c.IsFix()
	for _, f := range c.Files {
		h := x.files[f.FilePath]
		if !h.Seen || c.Timestamp.Before(h.FirstSeen) {
			h.FirstSeen = c.Timestamp
		}
		if !h.Seen || c.Timestamp.After(h.LastModified) {
			h.LastModified = c.Timestamp
		}
		h.Seen = true
		if fix {
			h.FixCommits = append(h.FixCommits, c.Timestamp)
		}
		x.files[f.FilePath] = h
	}
}

// Get returns a copy of the history of path; unseen paths yield the zero value.
func (x *HistoryIndex) Get(path string) classify.FileHistory {
	h := x.files[path]
	h.FixCommits = append([]time.Time(nil), h.FixCommits...)
	return h
}

// FileHistories summarizes, per changed path, when each file was first and
// last touched and which touching commits were fixes.
func FileHistories(commits []CommitInfo) map[string]classify.FileHistory {
	x := NewHistoryIndex()
	for _, c := range commits {
		x.Apply(c)
	}
	return x.files
}

// ChurnSummary counts commit kinds in a window.
type ChurnSummary struct {
	Commits         int `json:"commits"`
	FixCommits      int `json:"fixCommits"`
	RefactorCommits int `json:"refactorCommits"`
	FilesTouched    int `json:"filesTouched"`
	LinesAdded      int `json:"linesAdded"`
	LinesDeleted    int `json:"linesDeleted"`
}

// Summarize computes a ChurnSummary over commits.
func Summarize(commits []CommitInfo) ChurnSummary {
	var s ChurnSummary
	files := make(map[string]struct{})
	for _, c := range commits {
		s.Commits++
		if c.IsFix() {
			s.FixCommits++
		}
		if c.IsRefactor() {
			s.RefactorCommits++
		}
		for _, f := range c.Files {
			files[f.FilePath] = struct{}{}
			s.LinesAdded += f.Additions
			s.LinesDeleted += f.Deletions
		}
	}
	s.FilesTouched = len(files)
	return s
}
