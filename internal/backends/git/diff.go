package git

import (
	"context"
	"path"
	"strconv"
	"strings"

	"ppde/internal/errors"
)

// FileChange represents statistics for a file changed by one commit
type FileChange struct {
	FilePath  string `json:"filePath"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	IsNew     bool   `json:"isNew"`
	IsDeleted bool   `json:"isDeleted"`
}

// IsPython reports whether the changed path is a Python source file.
func (f FileChange) IsPython() bool {
	return path.Ext(f.FilePath) == ".py"
}

// GetCommitChanges returns per-file statistics for one commit. Renames are
// reported as a delete plus an add so every path is a real path at the commit.
func (g *GitAdapter) GetCommitChanges(ctx context.Context, commitHash string) ([]FileChange, error) {
	if commitHash == "" {
		return nil, errors.NewPpdeError(
			errors.InternalError,
			"Commit hash is required",
			nil,
			nil,
		)
	}

	lines, err := g.executeGitCommandLines(ctx, "show", "--numstat", "--no-renames", "--format=", commitHash)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return []FileChange{}, nil
	}
	stats := g.parseNumstat(lines)

	statusLines, err := g.executeGitCommandLines(ctx, "show", "--name-status", "--no-renames", "--format=", commitHash)
	if err != nil {
		return nil, err
	}
	applyNameStatus(stats, statusLines)
	return stats, nil
}

// parseNumstat parses numstat output into FileChange values
// Format: "additions<TAB>deletions<TAB>filename"
func (g *GitAdapter) parseNumstat(lines []string) []FileChange {
	stats := make([]FileChange, 0, len(lines))

	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			g.logger.Warn("Skipping malformed numstat line", "line", line)
			continue
		}

		additions, deletions := 0, 0
		// Binary files are marked with "-"
		if parts[0] != "-" && parts[1] != "-" {
			var err error
			if additions, err = strconv.Atoi(parts[0]); err != nil {
				g.logger.Warn("Failed to parse additions", "line", line, "error", err.Error())
				continue
			}
			if deletions, err = strconv.Atoi(parts[1]); err != nil {
				g.logger.Warn("Failed to parse deletions", "line", line, "error", err.Error())
				continue
			}
		}

		stats = append(stats, FileChange{
			FilePath:  parts[2],
			Additions: additions,
			Deletions: deletions,
		})
	}

	return stats
}

func applyNameStatus(stats []FileChange, statusLines []string) {
	statusMap := make(map[string]byte, len(statusLines))
	for _, line := range statusLines {
		status, filePath, ok := strings.Cut(line, "\t")
		if !ok || status == "" {
			continue
		}
		statusMap[filePath] = status[0]
	}

	for i := range stats {
		switch statusMap[stats[i].FilePath] {
		case 'A':
			stats[i].IsNew = true
		case 'D':
			stats[i].IsDeleted = true
		}
	}
}
