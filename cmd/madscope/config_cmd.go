package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/config"
	"github.com/tturner/madscope/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Example: `  madscope config init
  madscope config init --config lab.yaml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if !force && fileExists(path) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", config.DefaultPath, "Config file to write")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file and print the effective class ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err != nil {
				return errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
			}
			cfg, err := config.Load(path, false)
			if err != nil {
				return errors.WrapConfigError(err, path)
			}
			ranges, _ := cfg.Ranges()
			timeout, _ := cfg.Timeout()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: OK\n", path)
			fmt.Fprintf(out, "  vendor:       %s\n", ranges.Vendor)
			fmt.Fprintf(out, "  vendor_rmpp:  %s\n", ranges.VendorRMPP)
			fmt.Fprintf(out, "  application:  %s\n", ranges.Application)
			fmt.Fprintf(out, "  reserved:     %s\n", ranges.Reserved)
			fmt.Fprintf(out, "  core:         %s\n", ranges.Core)
			fmt.Fprintf(out, "  reassembly:   %t (timeout %s, max %d)\n", cfg.Reassemble(), timeout, cfg.Reassembly.MaxTransactions)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", config.DefaultPath, "Config file to check")
	return cmd
}
