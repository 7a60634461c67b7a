package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/mad/reassembly"
	"github.com/tturner/madscope/internal/pcap"
	"github.com/tturner/madscope/internal/report"
)

type decodeBytesFlags struct {
	decodeFlags
	hexInput string
	format   string
	dump     bool
}

func newDecodeBytesCmd() *cobra.Command {
	flags := &decodeBytesFlags{}

	cmd := &cobra.Command{
		Use:   "decode-bytes",
		Short: "Decode one management datagram given as hex",
		Long: `Decode a single management datagram from hex, starting at the common
header. Whitespace, colons, commas and 0x prefixes between bytes are
ignored. Several arguments are joined, so a datagram can be pasted as
separate words. If --hex is omitted, the positional arguments are used.`,
		Example: `  # Decode a SubnGet(NodeInfo)
  madscope decode-bytes --hex "01 01 01 01 00 00 00 00 00 00 00 00 00 00 00 01 00 11 00 00 00 00 00 00"

  # As JSON
  madscope decode-bytes 0101010100000000 0000000000000001 0011000000000000 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.hexInput == "" && len(args) > 0 {
				flags.hexInput = strings.Join(args, " ")
			}
			if flags.hexInput == "" {
				return missingFlagError(cmd, "--hex")
			}
			return runDecodeBytes(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.hexInput, "hex", "", "Datagram bytes as hex (required)")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&flags.dump, "dump", false, "Append a hex dump")
	flags.register(cmd)

	return cmd
}

func runDecodeBytes(cmd *cobra.Command, flags *decodeBytesFlags) error {
	format := strings.ToLower(strings.TrimSpace(flags.format))
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q (expected text or json)", flags.format)
	}
	data, err := parseHexBytes(flags.hexInput)
	if err != nil {
		return errors.WrapHexInputError(err, flags.hexInput)
	}

	cfg, logger, opts, err := flags.setup(cmd, "hex")
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.LogHex("Datagram", data)

	d := dissect.New(opts)
	dg := d.DecodeFrame(1, time.Time{}, reassembly.Conversation{}, data)
	out := cmd.OutOrStdout()
	if format == "json" {
		decoded := &pcap.Decoded{Datagrams: []*dissect.Datagram{dg}, Stalled: d.Pending()}
		return report.WriteJSON(out, report.NewDecodeReport(version, "hex", cfg.Reassemble(), decoded))
	}
	renderDatagrams(out, []*dissect.Datagram{dg}, d.Pending(), report.TextOptions{Hex: flags.dump, Offsets: true})
	return nil
}

// parseHexBytes accepts "01 03", "01:03", "0x01,0x03" and "0103".
func parseHexBytes(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ':' || r == ','
	})
	var b strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f)%2 == 1 {
			f = "0" + f
		}
		b.WriteString(f)
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("no bytes in input")
	}
	data, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return data, nil
}
