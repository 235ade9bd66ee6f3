package analysis

import (
	"log/slog"

	"ppde/internal/config"
	"ppde/internal/frequency"
	"ppde/internal/storage"
)

// SourceFor returns the frequency source selected by cfg.Store.
func SourceFor(cfg *config.Config, root string, logger *slog.Logger) frequency.Source {
	switch cfg.Store.Backend {
	case config.StoreSnapshot:
		return frequency.SnapshotSource{Path: cfg.SnapshotPath(root), Logger: logger}
	case config.StoreNone:
		return frequency.EmptySource{}
	default:
		return storage.FrequencySource{RepoRoot: root, Logger: logger}
	}
}
