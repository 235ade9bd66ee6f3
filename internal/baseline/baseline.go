// Package baseline replays the author's recent history to populate the
// frequency table that analysis scores against.
//
// Every in-window commit contributes the Python files it changed, read as
// they were at that commit and classified with the history known at that
// point. Snapshots are parsed in parallel; observations are merged in commit
// order so the resulting table does not depend on scheduling.
package baseline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ppde/internal/backends/git"
	"ppde/internal/classify"
	"ppde/internal/complexity"
	"ppde/internal/config"
	"ppde/internal/detectors"
	"ppde/internal/errors"
	"ppde/internal/frequency"
	"ppde/internal/slogutil"
	"ppde/internal/storage"
)

// Cache stores observations by content hash. *storage.ObservationCache
// implements it.
type Cache interface {
	Get(ctx context.Context, contentHash string) (string, bool, error)
	PutAll(ctx context.Context, entries map[string]string) error
}

var _ Cache = (*storage.ObservationCache)(nil)

// Options configures a Builder.
type Options struct {
	Config   *config.Config
	Registry *detectors.Registry
	// Cache is consulted only when Config.Baseline.UseCache is set.
	Cache  Cache
	Logger *slog.Logger
}

// Builder replays history from a backend.
type Builder struct {
	backend  git.HistoryBackend
	cfg      *config.Config
	registry *detectors.Registry
	cache    Cache
	logger   *slog.Logger
}

// NewBuilder creates a Builder over backend.
func NewBuilder(backend git.HistoryBackend, opts Options) *Builder {
	b := &Builder{
		backend:  backend,
		cfg:      opts.Config,
		registry: opts.Registry,
		logger:   slogutil.OrDiscard(opts.Logger),
	}
	if b.cfg == nil {
		b.cfg = config.DefaultConfig()
	}
	if b.registry == nil {
		b.registry = detectors.Default()
	}
	if b.cfg.Baseline.UseCache {
		b.cache = opts.Cache
	}
	return b
}

// Result is a frozen table plus provenance for publishing.
type Result struct {
	Table          *frequency.Table
	Author         string
	HeadCommit     string
	Reference      time.Time
	Commits        int
	Snapshots      int
	Observations   int
	CacheHits      int
	Skipped        int
	DetectorErrors int
	Churn          git.ChurnSummary
}

// RunMeta returns the provenance recorded with a published build.
func (r *Result) RunMeta(repoStateID string) storage.RunMeta {
	return storage.RunMeta{
		Source:      storage.SourceBuild,
		HeadCommit:  r.HeadCommit,
		RepoStateID: repoStateID,
		Author:      r.Author,
		Commits:     r.Commits,
		Files:       r.Snapshots,
	}
}

type job struct {
	sha     string
	path    string
	when    time.Time
	history classify.FileHistory
}

type jobResult struct {
	obs      []observation
	hash     string
	encoded  string
	cacheHit bool
	skipped  bool
	failed   int
}

// Build replays the window ending at HEAD and returns the frozen table.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	if !complexity.IsAvailable() {
		return nil, errors.NewPpdeError(errors.InternalError, complexity.ErrNoCGO.Error(), nil, nil)
	}

	ref, err := b.backend.HeadTime(ctx)
	if err != nil {
		return nil, errors.NewPpdeError(errors.RepositoryInvalid, "repository has no commits", err, nil)
	}
	head, err := b.backend.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	author, err := b.backend.ResolveAuthor(ctx, b.cfg.History.Author)
	if err != nil {
		return nil, err
	}
	commits, err := b.backend.GetCommits(ctx, git.HistoryOptions{
		Author:     author,
		MaxAgeDays: b.cfg.History.MaxAgeDays,
		MaxCommits: b.cfg.History.MaxCommits,
		Reference:  ref,
	})
	if err != nil {
		return nil, err
	}

	jobs := plan(commits)
	b.logger.Info("Baseline replay started",
		"author", author,
		"commits", len(commits),
		"snapshots", len(jobs),
		"workers", b.workers(),
		"cache", b.cache != nil,
	)

	results, err := b.runJobs(ctx, jobs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Author:     author,
		HeadCommit: head,
		Reference:  ref,
		Commits:    len(commits),
		Churn:      git.Summarize(commits),
	}
	builder := frequency.NewBuilder()
	fresh := make(map[string]string)
	cutoffs := b.cfg.Classifier
	for i, r := range results {
		res.DetectorErrors += r.failed
		if r.skipped {
			res.Skipped++
			continue
		}
		res.Snapshots++
		if r.cacheHit {
			res.CacheHits++
		} else if r.encoded != "" {
			fresh[r.hash] = r.encoded
		}

		stability := classify.StabilityOf(jobs[i].history, jobs[i].when, cutoffs)
		for _, o := range r.obs {
			ctxID := classify.Classify(classify.SiteDescriptor{
				Scope:     o.Scope,
				Stability: stability,
				Tier:      classify.TierOf(o.Lines, o.Cyclomatic, cutoffs),
			})
			builder.Observe(o.Detector, ctxID, o.Value)
			res.Observations++
		}
	}

	table, err := builder.Freeze()
	if err != nil {
		return nil, err
	}
	res.Table = table

	if b.cache != nil && len(fresh) > 0 {
		if err := b.cache.PutAll(ctx, fresh); err != nil {
			b.logger.Warn("Failed to update observation cache", "error", err.Error())
		}
	}

	b.logger.Info("Baseline replay finished",
		"snapshots", res.Snapshots,
		"observations", res.Observations,
		"records", table.Len(),
		"cacheHits", res.CacheHits,
		"skipped", res.Skipped,
	)
	return res, nil
}

// plan turns commits into per-file jobs, oldest commit first. Each job
// carries the file's history including its own commit.
func plan(commits []git.CommitInfo) []job {
	index := git.NewHistoryIndex()
	var jobs []job
	for _, c := range git.Oldest(commits) {
		index.Apply(c)
		for _, p := range c.PythonFiles() {
			jobs = append(jobs, job{
				sha:     c.Hash,
				path:    p,
				when:    c.Timestamp,
				history: index.Get(p),
			})
		}
	}
	return jobs
}

func (b *Builder) workers() int {
	if b.cfg.Baseline.Workers < 1 {
		return 1
	}
	return b.cfg.Baseline.Workers
}

// runJobs evaluates jobs concurrently. Results are indexed like jobs. Only
// cancellation aborts the run; per-file failures are recorded as skips.
func (b *Builder) runJobs(ctx context.Context, jobs []job) ([]jobResult, error) {
	results := make([]jobResult, len(jobs))
	parsers := sync.Pool{New: func() any { return complexity.NewAnalyzer() }}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parser := parsers.Get().(*complexity.Analyzer)
			defer parsers.Put(parser)
			results[i] = b.runJob(gctx, parser, jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Builder) runJob(ctx context.Context, parser *complexity.Analyzer, j job) jobResult {
	content, err := b.backend.ShowFile(ctx, j.sha, j.path)
	if err != nil {
		b.logger.Warn("Skipping snapshot",
			"commit", shortSHA(j.sha),
			"file", j.path,
			"error", err.Error(),
		)
		return jobResult{skipped: true}
	}

	hash := contentHash(content)
	if b.cache != nil {
		cached, ok, err := b.cache.Get(ctx, hash)
		if err != nil {
			b.logger.Debug("Observation cache lookup failed", "error", err.Error())
		} else if ok {
			if obs, err := decodeObservations(cached); err == nil {
				return jobResult{obs: obs, hash: hash, cacheHit: true}
			}
		}
	}

	parsed, err := parser.Analyze(ctx, content)
	if err != nil {
		b.logger.Debug("Skipping unparseable snapshot",
			"commit", shortSHA(j.sha),
			"file", j.path,
			"error", err.Error(),
		)
		return jobResult{skipped: true}
	}

	obs, failed := observe(b.registry, parsed)
	res := jobResult{obs: obs, hash: hash, failed: failed}
	if b.cache != nil && failed == 0 {
		if encoded, err := encodeObservations(obs); err == nil {
			res.encoded = encoded
		}
	}
	return res
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
