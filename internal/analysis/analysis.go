// Package analysis runs the deviation pipeline over a repository's working
// tree: classify each site, score it against the frequency store, gate it,
// and explain what survives.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ppde/internal/backends/git"
	"ppde/internal/classify"
	"ppde/internal/complexity"
	"ppde/internal/config"
	"ppde/internal/detectors"
	"ppde/internal/errors"
	"ppde/internal/explain"
	"ppde/internal/frequency"
	"ppde/internal/gate"
	"ppde/internal/scoring"
	"ppde/internal/slogutil"
)

// Options configures an Analyzer. Zero values select defaults: the default
// config, the default detector registry, cold start, and a discard logger.
type Options struct {
	Config   *config.Config
	Registry *detectors.Registry
	Source   frequency.Source
	Logger   *slog.Logger
}

// Analyzer runs one analysis at a time. It holds no state between runs.
type Analyzer struct {
	cfg      *config.Config
	registry *detectors.Registry
	source   frequency.Source
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	a := &Analyzer{
		cfg:      opts.Config,
		registry: opts.Registry,
		source:   opts.Source,
		logger:   slogutil.OrDiscard(opts.Logger),
	}
	if a.cfg == nil {
		a.cfg = config.DefaultConfig()
	}
	if a.registry == nil {
		a.registry = detectors.Default()
	}
	if a.source == nil {
		a.source = frequency.EmptySource{}
	}
	return a
}

// Analyze validates root, loads history and the frequency table, and
// evaluates every Python file in the working tree.
func (a *Analyzer) Analyze(ctx context.Context, root string) (*Report, error) {
	if !complexity.IsAvailable() {
		return nil, errors.NewPpdeError(errors.InternalError, complexity.ErrNoCGO.Error(), nil, nil)
	}

	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}

	backend, err := git.NewGitAdapter(root, a.cfg.History.Timeout(), a.logger)
	if err != nil {
		return nil, err
	}
	ref, err := backend.HeadTime(ctx)
	if err != nil {
		return nil, errors.NewPpdeError(errors.RepositoryInvalid, "repository has no commits", err, nil)
	}
	head, err := backend.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	author, err := backend.ResolveAuthor(ctx, a.cfg.History.Author)
	if err != nil {
		return nil, err
	}
	commits, err := backend.GetCommits(ctx, git.HistoryOptions{
		Author:     author,
		MaxAgeDays: a.cfg.History.MaxAgeDays,
		MaxCommits: a.cfg.History.MaxCommits,
		Reference:  ref,
	})
	if err != nil {
		return nil, err
	}

	table, err := a.loadTable(ctx)
	if err != nil {
		return nil, err
	}

	files, err := WalkPython(root, a.cfg.Scan.Ignore)
	if err != nil {
		return nil, errors.NewPpdeError(errors.RepositoryInvalid, "failed to walk repository", err, nil)
	}

	a.logger.Info("Analysis started",
		"root", root,
		"author", author,
		"commits", len(commits),
		"files", len(files),
		"records", table.Len(),
	)

	run := &run{
		cfg:       a.cfg,
		registry:  a.registry,
		scorer:    scoring.NewScorer(table),
		histories: git.FileHistories(commits),
		ref:       ref,
		parser:    complexity.NewAnalyzer(),
		logger:    a.logger,
		stats:     newStats(),
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.file(ctx, root, rel)
	}

	findings := gate.Select(run.admitted, a.cfg.Gate)
	report := &Report{
		Root:         root,
		Author:       author,
		HeadCommit:   head,
		Reference:    ref,
		Findings:     findings,
		Explanations: explain.ExplainAll(findings),
		Stats:        run.stats,
	}
	report.Stats.Commits = len(commits)
	report.Stats.StoreRecords = table.Len()
	report.Stats.Admitted = len(run.admitted)

	a.logger.Info("Analysis finished",
		"files", report.Stats.Files,
		"sites", report.Stats.Sites,
		"outcomes", report.Stats.Outcomes,
		"admitted", report.Stats.Admitted,
		"reported", len(findings),
		"skippedFiles", report.Stats.SkippedFiles,
		"detectorErrors", report.Stats.DetectorErrors,
		report.Stats.decisionGroup(),
	)
	return report, nil
}

// loadTable reads the store. An optional store that is unavailable degrades
// to cold start; an explicit source that cannot be read, or an inconsistent
// store, is fatal.
func (a *Analyzer) loadTable(ctx context.Context) (*frequency.Table, error) {
	table, err := a.source.Load(ctx)
	if err == nil {
		return table, nil
	}
	if errors.Is(err, errors.StoreUnavailable) && frequency.IsOptional(a.source) {
		a.logger.Warn("Frequency store unavailable, using cold start", "error", err.Error())
		return frequency.Empty(), nil
	}
	return nil, err
}

func validateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.RepositoryError(root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.NewPpdeError(errors.RepositoryInvalid, "path does not exist: "+abs, err, nil)
	}
	if !info.IsDir() {
		return "", errors.NewPpdeError(errors.RepositoryInvalid, "path is not a directory: "+abs, nil, nil)
	}
	return abs, nil
}

// run holds the state of one Analyze call.
type run struct {
	cfg       *config.Config
	registry  *detectors.Registry
	scorer    *scoring.Scorer
	histories map[string]classify.FileHistory
	ref       time.Time
	parser    *complexity.Analyzer
	logger    *slog.Logger

	order    int
	admitted []gate.Finding
	stats    Stats
}

func (r *run) file(ctx context.Context, root, rel string) {
	source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		r.skip(rel, errors.NewPpdeError(errors.ParseFailed, "cannot read "+rel, err, nil))
		return
	}
	parsed, err := r.parser.Analyze(ctx, source)
	if err != nil {
		r.skip(rel, errors.NewPpdeError(errors.ParseFailed, "cannot parse "+rel, err, nil))
		return
	}

	r.stats.Files++
	r.stats.Sites += len(parsed.Sites)
	stability := classify.StabilityOf(r.histories[rel], r.ref, r.cfg.Classifier)

	r.registry.Evaluate(parsed, func(site complexity.Site, detectorID string, value bool, err error) {
		if err != nil {
			r.stats.DetectorErrors++
			r.logger.Warn("Detector failed",
				"file", rel,
				"line", site.Line,
				"detector", detectorID,
				"error", err.Error(),
			)
			return
		}

		r.stats.Outcomes++
		outcome := detectors.Outcome{
			DetectorID: detectorID,
			Site: classify.SiteDescriptor{
				Scope:     site.Scope,
				Stability: stability,
				Tier:      classify.TierOf(site.Metrics.Lines, site.Metrics.Cyclomatic, r.cfg.Classifier),
			},
			Value: value,
		}
		candidate := r.scorer.Score(outcome, r.order)
		r.order++

		finding, decision := gate.Admit(candidate, stability, r.cfg.Gate)
		r.stats.Decisions[decision.String()]++
		if decision == gate.Admitted {
			r.admitted = append(r.admitted, finding)
		}
	})
}

func (r *run) skip(rel string, err error) {
	r.stats.SkippedFiles++
	r.logger.Warn("Skipping file", "file", rel, "error", err.Error())
}

// Describe renders a one-line summary for logs and the CLI footer.
func (s Stats) Describe() string {
	return fmt.Sprintf("%d files, %d sites, %d outcomes, %d skipped files, %d detector errors",
		s.Files, s.Sites, s.Outcomes, s.SkippedFiles, s.DetectorErrors)
}
