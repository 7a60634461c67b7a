package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/metrics"
)

type metricsReportFlags struct {
	dir   string
	input []string
}

func newMetricsReportCmd() *cobra.Command {
	flags := &metricsReportFlags{}

	cmd := &cobra.Command{
		Use:   "metrics-report",
		Short: "Summarize decode metrics CSVs",
		Long: `Reads metrics CSV files written by decode --metrics-csv and prints the
aggregated decode statistics: per-class counts, annotation kinds and
decode time percentiles. With --dir every *_metrics.csv in the directory
is read.`,
		Example: `  madscope metrics-report --input decode_metrics.csv
  madscope metrics-report --dir results/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			flags.input = append(flags.input, args...)
			if flags.dir == "" && len(flags.input) == 0 {
				return missingFlagError(cmd, "--input or --dir")
			}
			return runMetricsReport(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Directory containing *_metrics.csv files")
	cmd.Flags().StringSliceVar(&flags.input, "input", nil, "Metrics CSV file (repeatable)")

	return cmd
}

func runMetricsReport(cmd *cobra.Command, flags *metricsReportFlags) error {
	files := append([]string(nil), flags.input...)
	if flags.dir != "" {
		matches, err := filepath.Glob(filepath.Join(flags.dir, "*_metrics.csv"))
		if err != nil {
			return fmt.Errorf("glob metrics CSVs: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no *_metrics.csv files found in %s", flags.dir)
	}
	sort.Strings(files)

	var all []metrics.Metric
	var first, last time.Time
	loaded := 0
	for _, f := range files {
		records, start, end, err := metrics.ReadMetricsCSV(f)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipping %s: %v\n", filepath.Base(f), err)
			continue
		}
		loaded++
		all = append(all, records...)
		if !start.IsZero() && (first.IsZero() || start.Before(first)) {
			first = start
		}
		if end.After(last) {
			last = end
		}
	}
	if loaded == 0 {
		return fmt.Errorf("no valid metrics files")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== madscope Decode Metrics ===\n")
	fmt.Fprintf(out, "Files: %d\n", loaded)
	if !first.IsZero() {
		fmt.Fprintf(out, "Capture span: %s to %s (%s)\n",
			first.UTC().Format(time.RFC3339), last.UTC().Format(time.RFC3339), last.Sub(first).Round(time.Millisecond))
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, metrics.FormatSummary(metrics.Summarize(all)))
	return nil
}
