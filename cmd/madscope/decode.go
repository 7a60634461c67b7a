package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/mad/tree"
	"github.com/tturner/madscope/internal/metrics"
	"github.com/tturner/madscope/internal/pcap"
	"github.com/tturner/madscope/internal/report"
)

type decodeCmdFlags struct {
	decodeFlags
	inputFile     string
	format        string
	outputFile    string
	hex           bool
	offsets       bool
	annotatedOnly bool
	metricsCSV    string
	metricsJSON   string
}

func newDecodeCmd() *cobra.Command {
	flags := &decodeCmdFlags{}

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode every management datagram in a capture",
		Long: `Decode every management datagram in a pcap or pcapng capture and print
the field tree and annotations of each one.

Raw InfiniBand (link type 247) and RoCEv2 (UDP 4791) captures are read.
Multi-segment SA/PA transfers are reassembled in capture order unless
--no-reassembly is set. If --input is omitted, the first positional
argument is used.`,
		Example: `  # Decode a capture
  madscope decode --input fabric.pcap

  # Only datagrams with warnings, with hex dumps
  madscope decode fabric.pcap --annotated-only --hex

  # JSON report and per-datagram metrics
  madscope decode fabric.pcap --format json --output decode.json --metrics-csv decode_metrics.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.inputFile == "" && len(args) > 0 {
				flags.inputFile = args[0]
			}
			if flags.inputFile == "" {
				return missingFlagError(cmd, "--input")
			}
			return runDecode(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputFile, "input", "", "Input pcap/pcapng file (required)")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flags.outputFile, "output", "", "Write the JSON report to this file instead of stdout")
	cmd.Flags().BoolVar(&flags.hex, "hex", false, "Append a hex dump to each datagram")
	cmd.Flags().BoolVar(&flags.offsets, "offsets", false, "Show byte ranges of header groups")
	cmd.Flags().BoolVar(&flags.annotatedOnly, "annotated-only", false, "Only print datagrams with warnings or errors")
	cmd.Flags().StringVar(&flags.metricsCSV, "metrics-csv", "", "Write per-datagram decode metrics as CSV")
	cmd.Flags().StringVar(&flags.metricsJSON, "metrics-json", "", "Write per-datagram decode metrics as JSON lines")
	flags.register(cmd)

	return cmd
}

func runDecode(cmd *cobra.Command, flags *decodeCmdFlags) error {
	format := strings.ToLower(strings.TrimSpace(flags.format))
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q (expected text or json)", flags.format)
	}

	cfg, logger, opts, err := flags.setup(cmd, flags.inputFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	var sink *metrics.Sink
	if flags.metricsCSV != "" || flags.metricsJSON != "" {
		sink = metrics.NewSink()
		opts.Metrics = sink
	}

	decoded, err := pcap.DecodeFile(flags.inputFile, dissect.New(opts))
	if err != nil {
		return errors.WrapPCAPError(err, flags.inputFile)
	}
	logger.Info("Decoded %d datagrams from %d packets", len(decoded.Datagrams), decoded.Stats.TotalPackets)

	if sink != nil {
		if err := writeMetrics(sink, flags.metricsCSV, flags.metricsJSON); err != nil {
			return err
		}
	}

	if flags.annotatedOnly {
		decoded.Datagrams = annotatedOnly(decoded.Datagrams)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		r := report.NewDecodeReport(version, flags.inputFile, cfg.Reassemble(), decoded)
		if flags.outputFile != "" {
			return report.WriteJSONFile(flags.outputFile, r)
		}
		return report.WriteJSON(out, r)
	}

	renderDatagrams(out, decoded.Datagrams, decoded.Stalled, report.TextOptions{Hex: flags.hex, Offsets: flags.offsets})
	return nil
}

func renderDatagrams(w io.Writer, datagrams []*dissect.Datagram, stalled []tree.Annotation, opts report.TextOptions) {
	r := report.NewTextRenderer(w, opts)
	for _, dg := range datagrams {
		r.Datagram(dg)
	}
	r.Stalled(stalled)
}

func annotatedOnly(datagrams []*dissect.Datagram) []*dissect.Datagram {
	var out []*dissect.Datagram
	for _, dg := range datagrams {
		if dg.Worst() >= tree.SeverityWarn {
			out = append(out, dg)
		}
	}
	return out
}

func writeMetrics(sink *metrics.Sink, csvPath, jsonPath string) error {
	w, err := metrics.NewWriter(csvPath, jsonPath)
	if err != nil {
		return fmt.Errorf("open metrics output: %w", err)
	}
	for _, m := range sink.GetMetrics() {
		if err := w.WriteMetric(m); err != nil {
			w.Close()
			return fmt.Errorf("write metric: %w", err)
		}
	}
	return w.Close()
}
