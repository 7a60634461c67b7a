package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "madscope",
		Short: "InfiniBand/OPA management datagram decoder",
		Long: `madscope decodes InfiniBand and Omni-Path management datagrams (MADs)
from pcap/pcapng captures, hex dumps and live interfaces. Subnet
administration and performance administration transfers are reassembled
and their record tables walked.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newDecodeBytesCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newCoverageCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMetricsReportCmd())

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden && subCmd.Name() != "completion" {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
