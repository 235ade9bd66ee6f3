// Package paths resolves the on-disk layout ppde uses inside a repository.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-repository state directory.
	DataDirName = ".ppde"
	// ConfigFileName lives under DataDirName.
	ConfigFileName = "config.json"
	// DatabaseFileName is the sqlite frequency store.
	DatabaseFileName = "ppde.db"
	// LogsSubdir holds file logs.
	LogsSubdir = "logs"
	// LogFileName is the CLI log file under LogsSubdir.
	LogFileName = "ppde.log"
)

// GetRepoDataDir returns <repoRoot>/.ppde.
func GetRepoDataDir(repoRoot string) string {
	return filepath.Join(repoRoot, DataDirName)
}

// EnsureRepoDataDir creates <repoRoot>/.ppde if needed and returns it.
func EnsureRepoDataDir(repoRoot string) (string, error) {
	dir := GetRepoDataDir(repoRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetConfigPath returns <repoRoot>/.ppde/config.json.
func GetConfigPath(repoRoot string) string {
	return filepath.Join(GetRepoDataDir(repoRoot), ConfigFileName)
}

// GetDatabasePath returns <repoRoot>/.ppde/ppde.db.
func GetDatabasePath(repoRoot string) string {
	return filepath.Join(GetRepoDataDir(repoRoot), DatabaseFileName)
}

// GetLogPath returns <repoRoot>/.ppde/logs/ppde.log.
func GetLogPath(repoRoot string) string {
	return filepath.Join(GetRepoDataDir(repoRoot), LogsSubdir, LogFileName)
}

// IsSkippedDir reports whether a directory name is never scanned: hidden
// directories, virtualenvs, and bytecode caches.
func IsSkippedDir(name string) bool {
	if name == "." || name == "" {
		return false
	}
	return strings.HasPrefix(name, ".") || name == "venv" || name == "__pycache__"
}
