package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/pcap"
	"github.com/tturner/madscope/internal/report"
)

type coverageFlags struct {
	decodeFlags
	inputFile  string
	pcapDir    string
	format     string
	outputFile string
}

func newCoverageCmd() *cobra.Command {
	flags := &coverageFlags{}

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Report which attributes were seen and which have decoders",
		Long: `Tally every class/method/attribute combination in one capture or every
capture under a directory, and mark which attributes have a registered
field layout. Attributes that fell through to the unrecognized path are
listed separately.`,
		Example: `  # Coverage of one capture
  madscope coverage --input fabric.pcap

  # Aggregate a capture library as JSON
  madscope coverage --pcap-dir captures/ --format json`,
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
			return runCoverage(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputFile, "input", "", "Input pcap/pcapng file")
	cmd.Flags().StringVar(&flags.pcapDir, "pcap-dir", "", "Aggregate every capture under this directory")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flags.outputFile, "output", "", "Write the JSON report to this file instead of stdout")
	flags.register(cmd)

	return cmd
}

func runCoverage(cmd *cobra.Command, flags *coverageFlags) error {
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

	var (
		coverage   *pcap.CoverageReport
		fileErrors []pcap.CoverageFileError
	)
	if flags.pcapDir != "" {
		coverage, fileErrors, err = pcap.AggregateCoverageReport(flags.pcapDir, opts)
		if err != nil {
			return errors.WrapPCAPError(err, flags.pcapDir)
		}
		for _, fe := range fileErrors {
			logger.Error("coverage %s: %v", fe.Path, fe.Err)
		}
	} else {
		coverage, err = pcap.SummarizeCoverage(flags.inputFile, opts)
		if err != nil {
			return errors.WrapPCAPError(err, flags.inputFile)
		}
	}
	logger.Verbose("coverage: %d datagrams, %d operations", coverage.Datagrams, len(coverage.Entries))

	out := cmd.OutOrStdout()
	if format == "json" {
		r := report.NewCoverageReport(version, input, coverage, fileErrors)
		if flags.outputFile != "" {
			return report.WriteJSONFile(flags.outputFile, r)
		}
		return report.WriteJSON(out, r)
	}
	report.WriteCoverage(out, coverage, fileErrors)
	return nil
}
