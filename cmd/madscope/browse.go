package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/tui"
)

type browseFlags struct {
	decodeFlags
	inputFile string
	root      string
}

func newBrowseCmd() *cobra.Command {
	flags := &browseFlags{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse decoded datagrams interactively",
		Long: `Decode a capture and open an interactive browser: datagram list on the
left, field tree and annotations of the selected datagram on the right.

Without --input a picker lists the captures under --root.

Keys: ↑/↓ move, n next annotated, x hex, ctrl+d/ctrl+u scroll detail,
c copy the datagram hex, q quit.`,
		Example: `  madscope browse fabric.pcap
  madscope browse --root captures/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.inputFile == "" && len(args) > 0 {
				flags.inputFile = args[0]
			}
			return runBrowse(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputFile, "input", "", "Input pcap/pcapng file")
	cmd.Flags().StringVar(&flags.root, "root", ".", "Directory searched by the capture picker")
	flags.register(cmd)

	return cmd
}

func runBrowse(cmd *cobra.Command, flags *browseFlags) error {
	if flags.inputFile == "" {
		path, err := tui.PickCapture(flags.root)
		if err != nil {
			return err
		}
		flags.inputFile = path
	}
	if flags.logLevel == "" && !flags.verbose && !flags.debug {
		// keep console output off the alternate screen
		flags.logLevel = "silent"
	}
	_, logger, opts, err := flags.setup(cmd, flags.inputFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	if err := tui.Run(flags.inputFile, opts); err != nil {
		return errors.WrapPCAPError(err, flags.inputFile)
	}
	return nil
}
