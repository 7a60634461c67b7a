package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/capture"
	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/report"
)

type captureFlags struct {
	decodeFlags
	iface          string
	filter         string
	output         string
	snapLen        int
	promisc        bool
	duration       time.Duration
	expireEvery    time.Duration
	listInterfaces bool
	hex            bool
}

func newCaptureCmd() *cobra.Command {
	flags := &captureFlags{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Decode management datagrams live from an interface",
		Long: `Capture from a network interface and decode management datagrams as
they arrive. The default BPF filter selects RoCEv2 (udp port 4791); use
--filter none on raw InfiniBand interfaces. Stop with Ctrl+C or --duration.`,
		Example: `  # RoCEv2 on eth0
  sudo madscope capture --interface eth0

  # Raw InfiniBand, saving a copy of the traffic
  sudo madscope capture --interface ib0 --filter none --output ib0.pcap

  # List interfaces
  madscope capture --list-interfaces`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.listInterfaces {
				return runListInterfaces(cmd)
			}
			if flags.iface == "" {
				return missingFlagError(cmd, "--interface")
			}
			return runCapture(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.iface, "interface", "", "Interface to capture on (required)")
	cmd.Flags().StringVar(&flags.filter, "filter", capture.DefaultFilter, "BPF filter, or none")
	cmd.Flags().StringVar(&flags.output, "output", "", "Write captured packets to this pcap file")
	cmd.Flags().IntVar(&flags.snapLen, "snaplen", 65535, "Capture snapshot length")
	cmd.Flags().BoolVar(&flags.promisc, "promisc", false, "Put the interface in promiscuous mode")
	cmd.Flags().DurationVar(&flags.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().DurationVar(&flags.expireEvery, "expire-every", 5*time.Second, "How often stalled transfers are expired")
	cmd.Flags().BoolVar(&flags.listInterfaces, "list-interfaces", false, "List capture interfaces and exit")
	cmd.Flags().BoolVar(&flags.hex, "hex", false, "Append a hex dump to each datagram")
	flags.register(cmd)

	return cmd
}

func runListInterfaces(cmd *cobra.Command) error {
	ifaces, err := capture.Interfaces()
	if err != nil {
		return errors.WrapCaptureError(err, "")
	}
	out := cmd.OutOrStdout()
	for _, iface := range ifaces {
		line := iface.Name
		if iface.Description != "" {
			line += "  " + iface.Description
		}
		if len(iface.Addresses) > 0 {
			line += "  [" + strings.Join(iface.Addresses, ", ") + "]"
		}
		if iface.Loopback {
			line += "  (loopback)"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runCapture(cmd *cobra.Command, flags *captureFlags) error {
	_, logger, opts, err := flags.setup(cmd, flags.iface)
	if err != nil {
		return err
	}
	defer logger.Close()

	c, err := capture.Open(capture.Options{
		Interface:   flags.iface,
		Filter:      flags.filter,
		SnapLen:     int32(flags.snapLen),
		Promisc:     flags.promisc,
		Output:      flags.output,
		ExpireEvery: flags.expireEvery,
		Logger:      logger,
	}, dissect.New(opts))
	if err != nil {
		return errors.WrapCaptureError(err, flags.iface)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if flags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.duration)
		defer cancel()
	}

	r := report.NewTextRenderer(cmd.OutOrStdout(), report.TextOptions{Hex: flags.hex})
	err = c.Run(ctx, func(dg *dissect.Datagram) { r.Datagram(dg) })

	stats := c.Stats()
	logger.Info("Captured %d packets, %d datagrams in %s", stats.Packets, stats.Datagrams, stats.Elapsed.Round(time.Millisecond))
	return err
}
