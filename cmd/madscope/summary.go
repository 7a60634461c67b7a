package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/pcap"
	"github.com/tturner/madscope/internal/report"
)

type summaryFlags struct {
	decodeFlags
	inputFile   string
	pcapDir     string
	format      string
	outputFile  string
	tsharkCheck bool
	tsharkPath  string
}

func newSummaryCmd() *cobra.Command {
	flags := &summaryFlags{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize management traffic in a capture or directory",
		Long: `Summarize the management datagrams in a capture: counts per class and
attribute, annotation kinds, status errors and reassembled transfers.

With --pcap-dir every .pcap/.pcapng under the directory is summarized
into one table. --tshark-check counts the same datagrams with tshark's
InfiniBand dissector for comparison. If --input is omitted, the first
positional argument is used.`,
		Example: `  # Summarize one capture
  madscope summary --input fabric.pcap

  # Cross-check against tshark
  madscope summary fabric.pcap --tshark-check

  # Every capture under a directory
  madscope summary --pcap-dir captures/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.inputFile == "" && flags.pcapDir == "" && len(args) > 0 {
				flags.inputFile = args[0]
			}
			if flags.inputFile == "" && flags.pcapDir == "" {
				return missingFlagError(cmd, "--input or --pcap-dir")
			}
			return runSummary(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputFile, "input", "", "Input pcap/pcapng file")
	cmd.Flags().StringVar(&flags.pcapDir, "pcap-dir", "", "Summarize every capture under this directory")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flags.outputFile, "output", "", "Write the JSON report to this file instead of stdout")
	cmd.Flags().BoolVar(&flags.tsharkCheck, "tshark-check", false, "Compare datagram counts with tshark")
	cmd.Flags().StringVar(&flags.tsharkPath, "tshark", "", "Path to tshark binary")
	flags.register(cmd)

	return cmd
}

func runSummary(cmd *cobra.Command, flags *summaryFlags) error {
	format := strings.ToLower(strings.TrimSpace(flags.format))
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q (expected text or json)", flags.format)
	}
	input := flags.inputFile
	if input == "" {
		input = flags.pcapDir
	}
	_, logger, opts, err := flags.setup(cmd, input)
	if err != nil {
		return err
	}
	defer logger.Close()

	var tshark string
	if flags.tsharkCheck {
		if tshark, err = pcap.ResolveTsharkPath(flags.tsharkPath); err != nil {
			return err
		}
		logger.Verbose("Using tshark at %s", tshark)
	}

	var entries []pcap.SummaryEntry
	if flags.pcapDir != "" {
		entries, err = pcap.BuildSummaryEntries(flags.pcapDir, opts)
		if err != nil {
			return errors.WrapPCAPError(err, flags.pcapDir)
		}
		if len(entries) == 0 {
			return fmt.Errorf("no pcap files found in %s", flags.pcapDir)
		}
	} else {
		s, err := pcap.Summarize(flags.inputFile, opts)
		if err != nil {
			return errors.WrapPCAPError(err, flags.inputFile)
		}
		entries = []pcap.SummaryEntry{{Name: flags.inputFile, Path: flags.inputFile, Summary: s}}
	}

	if tshark != "" {
		for _, e := range entries {
			if e.Summary == nil {
				continue
			}
			if err := e.Summary.CompareWithTshark(tshark); err != nil {
				logger.Error("tshark check %s: %v", e.Path, err)
				continue
			}
			if e.Summary.TsharkMADs != e.Summary.Stats.MADPackets {
				logger.Info("%s: madscope found %d datagrams, tshark %d", e.Name, e.Summary.Stats.MADPackets, e.Summary.TsharkMADs)
			}
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		r := report.NewSummaryReport(version, entries)
		if flags.outputFile != "" {
			return report.WriteJSONFile(flags.outputFile, r)
		}
		return report.WriteJSON(out, r)
	}

	if flags.pcapDir != "" {
		report.WriteSummaryEntries(out, entries)
		return nil
	}
	report.WriteSummary(out, entries[0].Summary)
	return nil
}
