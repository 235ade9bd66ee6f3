package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ppde/internal/backends/git"
	"ppde/internal/baseline"
	"ppde/internal/detectors"
	"ppde/internal/errors"
	"ppde/internal/frequency"
	"ppde/internal/storage"
)

var (
	exportOut    string
	exportFormat string
	importIn     string
	showRuns     int
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Build and manage the frequency baseline",
	Long:  "Build, inspect, export and import the per-repository frequency table stored in .ppde/ppde.db",
}

var baselineBuildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Replay your recent commits and publish a new baseline",
	Long: `Replay the Python files changed by your commits in the history window,
run every detector over them, and publish the resulting frequency table.

The window and author come from the history section of .ppde/config.json.
The previous baseline stays active until the new one is fully written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBaselineBuild,
}

var baselineShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Summarize the active baseline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBaselineShow,
}

var baselineExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Write the active baseline to a snapshot file",
	Long: `Write the active baseline to a snapshot file.

The format is taken from --format or the file extension (.json, .yaml, .toml).
A trailing .zst compresses the file.

Examples:
  ppde baseline export --out baseline.json
  ppde baseline export --out baseline.yaml.zst`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBaselineExport,
}

var baselineImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Validate a snapshot file and publish it as the active baseline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBaselineImport,
}

func init() {
	baselineShowCmd.Flags().IntVar(&showRuns, "runs", 5, "Number of past runs to list")
	baselineExportCmd.Flags().StringVar(&exportOut, "out", "", "Snapshot file to write")
	baselineExportCmd.Flags().StringVar(&exportFormat, "format", "", "Snapshot format (json, yaml, toml); default from extension")
	_ = baselineExportCmd.MarkFlagRequired("out")
	baselineImportCmd.Flags().StringVar(&importIn, "in", "", "Snapshot file to import")
	_ = baselineImportCmd.MarkFlagRequired("in")

	baselineCmd.AddCommand(baselineBuildCmd)
	baselineCmd.AddCommand(baselineShowCmd)
	baselineCmd.AddCommand(baselineExportCmd)
	baselineCmd.AddCommand(baselineImportCmd)
	rootCmd.AddCommand(baselineCmd)
}

func runBaselineBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()
	s, err := openSession(args)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext()
	defer cancel()

	adapter, err := git.NewGitAdapter(s.root, s.cfg.History.Timeout(), s.logger)
	if err != nil {
		return err
	}
	db, err := storage.Open(s.root, s.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := detectors.Default()
	cache := storage.NewObservationCache(db, baseline.Signature(registry))
	if pruned, err := cache.Prune(ctx); err != nil {
		s.logger.Warn("Failed to prune observation cache", "error", err.Error())
	} else if pruned > 0 {
		s.logger.Info("Pruned stale observation cache entries", "count", pruned)
	}

	res, err := baseline.NewBuilder(adapter, baseline.Options{
		Config:   s.cfg,
		Registry: registry,
		Cache:    cache,
		Logger:   s.logger,
	}).Build(ctx)
	if err != nil {
		return err
	}

	stateID := ""
	if state, err := adapter.GetRepoState(ctx); err != nil {
		s.logger.Warn("Failed to compute repository state", "error", err.Error())
	} else {
		stateID = state.RepoStateID
	}

	run, err := db.Publish(ctx, res.Table, res.RunMeta(stateID))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(out, "%s baseline %s\n", green("Published"), run.ID)
	fmt.Fprintf(out, "  Author:        %s\n", res.Author)
	fmt.Fprintf(out, "  Commits:       %d (%d fix, %d refactor)\n", res.Commits, res.Churn.FixCommits, res.Churn.RefactorCommits)
	fmt.Fprintf(out, "  Snapshots:     %d (%d from cache, %d skipped)\n", res.Snapshots, res.CacheHits, res.Skipped)
	fmt.Fprintf(out, "  Observations:  %d\n", res.Observations)
	fmt.Fprintf(out, "  Records:       %d\n", run.Records)

	s.logger.Debug("Baseline build completed", "duration", time.Since(start).Milliseconds())
	return nil
}

func runBaselineShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(args)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext()
	defer cancel()

	db, err := storage.OpenExisting(s.root, s.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	table, run, err := db.LoadActive(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if run == nil {
		fmt.Fprintln(out, "No baseline has been published. Run 'ppde baseline build'.")
		return nil
	}

	runs, err := db.ListRuns(ctx, showRuns)
	if err != nil {
		return errors.NewPpdeError(errors.StoreUnavailable, "failed to list runs", err, nil)
	}
	renderBaselineShow(out, run, runs, table, s.cfg.Gate.MinObservations)
	return nil
}

func runBaselineExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(args)
	if err != nil {
		return err
	}
	defer s.Close()

	var format frequency.Format
	if exportFormat != "" {
		if format, err = frequency.ParseFormat(exportFormat); err != nil {
			return err
		}
	}

	ctx, cancel := commandContext()
	defer cancel()

	db, err := storage.OpenExisting(s.root, s.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	table, run, err := db.LoadActive(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		return errors.NewPpdeError(errors.StoreUnavailable, "no baseline has been published", nil, nil)
	}
	if err := frequency.WriteSnapshotFile(exportOut, table, format); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records from baseline %s to %s\n", table.Len(), run.ID, exportOut)
	return nil
}

func runBaselineImport(cmd *cobra.Command, args []string) error {
	s, err := openSession(args)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext()
	defer cancel()

	table, err := frequency.SnapshotSource{Path: importIn, Logger: s.logger}.Load(ctx)
	if err != nil {
		return err
	}

	db, err := storage.Open(s.root, s.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.Publish(ctx, table, storage.RunMeta{Source: storage.SourceImport})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records as baseline %s\n", run.Records, run.ID)
	return nil
}

// writeRuns lists past runs, newest first.
func writeRuns(w io.Writer, runs []storage.BuildRun) {
	for _, r := range runs {
		marker := " "
		if r.Active {
			marker = "*"
		}
		head := short(r.HeadCommit, 8)
		if head == "" {
			head = "-"
		}
		fmt.Fprintf(w, "  %s %s  %-6s  %s  %-8s  %d records\n",
			marker, r.CreatedAt.Format(time.RFC3339), r.Source, short(r.ID, 8), head, r.Records)
	}
}

func short(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
