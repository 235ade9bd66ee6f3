package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/montanaflynn/stats"

	"ppde/internal/frequency"
	"ppde/internal/storage"
)

// detectorSummary describes one detector's records in a table.
type detectorSummary struct {
	Detector     string
	Records      int
	Trusted      int // records with n >= minObservations
	Observations int
	Present      int
	MedianN      float64
	P90N         float64
	MaxN         float64
}

// PresentShare is the fraction of observations where the pattern was present.
func (d detectorSummary) PresentShare() float64 {
	if d.Observations == 0 {
		return 0
	}
	return float64(d.Present) / float64(d.Observations)
}

// summarize groups table records by detector, in detector order.
func summarize(table *frequency.Table, minObservations int) []detectorSummary {
	byDetector := make(map[string]*detectorSummary)
	counts := make(map[string]stats.Float64Data)
	for _, e := range table.Records() {
		d, ok := byDetector[e.Detector]
		if !ok {
			d = &detectorSummary{Detector: e.Detector}
			byDetector[e.Detector] = d
		}
		d.Records++
		d.Observations += e.N
		d.Present += e.K
		if e.N >= minObservations {
			d.Trusted++
		}
		counts[e.Detector] = append(counts[e.Detector], float64(e.N))
	}

	out := make([]detectorSummary, 0, len(byDetector))
	for _, id := range table.Detectors() {
		d := byDetector[id]
		data := counts[id]
		d.MedianN, _ = stats.Median(data)
		d.P90N, _ = stats.Percentile(data, 90)
		d.MaxN, _ = stats.Max(data)
		out = append(out, *d)
	}
	return out
}

func renderBaselineShow(w io.Writer, run *storage.BuildRun, runs []storage.BuildRun, table *frequency.Table, minObservations int) {
	bold := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintln(w, bold("Active baseline"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintf(w, "  ID:            %s\n", run.ID)
	fmt.Fprintf(w, "  Source:        %s\n", run.Source)
	fmt.Fprintf(w, "  Created:       %s\n", run.CreatedAt.Format(time.RFC3339))
	if run.HeadCommit != "" {
		fmt.Fprintf(w, "  HEAD:          %s\n", run.HeadCommit)
	}
	if run.Author != "" {
		fmt.Fprintf(w, "  Author:        %s\n", run.Author)
	}
	fmt.Fprintf(w, "  Commits:       %d\n", run.Commits)
	fmt.Fprintf(w, "  Records:       %d\n", run.Records)
	fmt.Fprintf(w, "  Observations:  %d\n", run.Observations)
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Detectors"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	summaries := summarize(table, minObservations)
	if len(summaries) == 0 {
		fmt.Fprintln(w, gray("  (no records)"))
	}
	for _, d := range summaries {
		fmt.Fprintf(w, "  %s\n", d.Detector)
		fmt.Fprintf(w, "    contexts %d (%d with n >= %d), observations %d, present %.0f%%\n",
			d.Records, d.Trusted, minObservations, d.Observations, d.PresentShare()*100)
		fmt.Fprintf(w, "    %s median %.0f, p90 %.0f, max %.0f\n", gray("n per context:"), d.MedianN, d.P90N, d.MaxN)
	}

	if len(runs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Recent runs"))
		fmt.Fprintln(w, strings.Repeat("─", 50))
		writeRuns(w, runs)
	}
}
