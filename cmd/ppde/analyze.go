package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ppde/internal/analysis"
	"ppde/internal/config"
	"ppde/internal/errors"
)

var (
	analyzeFormat   string
	analyzeStore    string
	analyzeSnapshot string
	analyzeCap      int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Report code that deviates from your usual patterns",
	Long: `Analyze the Python files of a repository's working tree against the
frequency baseline learned from your commits.

Examples:
  ppde analyze                      # Analyze the current directory
  ppde analyze ../service --cap 5   # At most five findings
  ppde analyze --format json        # Machine-readable output
  ppde analyze --store none         # Cold start, reports nothing`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format (human, json)")
	analyzeCmd.Flags().StringVar(&analyzeStore, "store", "", "Frequency store: sqlite, snapshot or none (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeSnapshot, "snapshot", "", "Snapshot file to score against (implies --store snapshot)")
	analyzeCmd.Flags().IntVar(&analyzeCap, "cap", -1, "Maximum number of findings (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

// applyAnalyzeFlags overrides cfg with explicitly set flags. A --snapshot
// path is relative to the working directory, like --in and --out; only the
// config file's store.snapshotPath is relative to the repository.
func applyAnalyzeFlags(cfg *config.Config) error {
	if analyzeSnapshot != "" {
		abs, err := filepath.Abs(analyzeSnapshot)
		if err != nil {
			return errors.NewPpdeError(errors.ConfigInvalid, "invalid --snapshot path "+analyzeSnapshot, err, nil)
		}
		cfg.Store.Backend = config.StoreSnapshot
		cfg.Store.SnapshotPath = abs
	}
	if analyzeStore != "" {
		cfg.Store.Backend = analyzeStore
	}
	if analyzeCap >= 0 {
		cfg.Gate.OutputCap = analyzeCap
	}
	if err := cfg.Validate(); err != nil {
		return errors.NewPpdeError(errors.ConfigInvalid, err.Error(), err, nil)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	if analyzeFormat != "human" && analyzeFormat != "json" {
		return fmt.Errorf("unsupported format: %s", analyzeFormat)
	}

	s, err := openSession(args)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := applyAnalyzeFlags(s.cfg); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	analyzer := analysis.NewAnalyzer(analysis.Options{
		Config: s.cfg,
		Source: analysis.SourceFor(s.cfg, s.root, s.logger),
		Logger: s.logger,
	})
	report, err := analyzer.Analyze(ctx, s.root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeFormat == "json" {
		data, err := report.JSON()
		if err != nil {
			return errors.NewPpdeError(errors.InternalError, "failed to encode report", err, nil)
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, report.Text())
	}

	s.logger.Debug("Analyze completed",
		"stats", report.Stats.Describe(),
		"duration", time.Since(start).Milliseconds(),
	)
	return nil
}
