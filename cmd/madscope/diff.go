package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/pcap"
	"github.com/tturner/madscope/internal/report"
)

type diffFlags struct {
	decodeFlags
	baseline   string
	compare    string
	format     string
	outputFile string
	noTiming   bool
	maxGap     time.Duration
}

func newDiffCmd() *cobra.Command {
	flags := &diffFlags{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the management traffic of two captures",
		Long: `Compare two captures: operations (class, method and attribute) present in
only one of them, management classes added or removed, and request to
response latency. Requests and responses are paired by class and
transaction ID; the first response wins.`,
		Example: `  # Compare before and after a subnet manager upgrade
  madscope diff --baseline before.pcap --compare after.pcap

  # Positional form, JSON output
  madscope diff before.pcap after.pcap --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.baseline == "" && len(args) > 0 {
				flags.baseline = args[0]
				args = args[1:]
			}
			if flags.compare == "" && len(args) > 0 {
				flags.compare = args[0]
			}
			if flags.baseline == "" {
				return missingFlagError(cmd, "--baseline")
			}
			if flags.compare == "" {
				return missingFlagError(cmd, "--compare")
			}
			return runDiff(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.baseline, "baseline", "", "Baseline pcap/pcapng file")
	cmd.Flags().StringVar(&flags.compare, "compare", "", "Capture to compare against the baseline")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flags.outputFile, "output", "", "Write the JSON result to this file instead of stdout")
	cmd.Flags().BoolVar(&flags.noTiming, "no-timing", false, "Skip request/response latency analysis")
	cmd.Flags().DurationVar(&flags.maxGap, "max-latency", 10*time.Second, "Ignore request/response pairs further apart than this")
	flags.register(cmd)

	return cmd
}

func runDiff(cmd *cobra.Command, flags *diffFlags) error {
	format := strings.ToLower(strings.TrimSpace(flags.format))
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q (expected text or json)", flags.format)
	}
	_, logger, opts, err := flags.setup(cmd, flags.baseline)
	if err != nil {
		return err
	}
	defer logger.Close()

	diffOpts := pcap.DefaultDiffOptions()
	diffOpts.Decode = opts
	diffOpts.IncludeTiming = !flags.noTiming
	diffOpts.MaxLatencyGap = flags.maxGap

	result, err := pcap.DiffCaptures(flags.baseline, flags.compare, diffOpts)
	if err != nil {
		path := flags.baseline
		if strings.HasPrefix(err.Error(), "compare:") {
			path = flags.compare
		}
		return errors.WrapPCAPError(err, path)
	}
	logger.Verbose("diff: %d added, %d removed operations", len(result.AddedOperations), len(result.RemovedOperations))

	out := cmd.OutOrStdout()
	if format == "json" {
		if flags.outputFile != "" {
			return report.WriteJSONFile(flags.outputFile, result)
		}
		return report.WriteJSON(out, result)
	}
	fmt.Fprint(out, pcap.FormatDiffReport(result))
	return nil
}
