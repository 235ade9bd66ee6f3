package git

import (
	"context"

	"ppde/internal/repostate"
)

// GetRepoState returns the current repository state
func (g *GitAdapter) GetRepoState(ctx context.Context) (*repostate.RepoState, error) {
	g.logger.Debug("Computing repository state", "repoRoot", g.repoRoot)

	state, err := repostate.ComputeRepoState(ctx, g.repoRoot)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Repository state computed",
		"repoStateId", state.RepoStateID,
		"headCommit", state.HeadCommit,
		"dirty", state.Dirty,
	)

	return state, nil
}
