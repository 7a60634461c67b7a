package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/madscope/internal/config"
	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/logging"
)

// decodeFlags are shared by every command that runs the decoder.
type decodeFlags struct {
	configPath   string
	noReassembly bool
	parseOnError bool
	logLevel     string
	logFile      string
	verbose      bool
	debug        bool
}

func (f *decodeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default madscope.yaml when present)")
	cmd.Flags().BoolVar(&f.noReassembly, "no-reassembly", false, "Decode each transfer segment on its own")
	cmd.Flags().BoolVar(&f.parseOnError, "parse-on-error", false, "Decode payloads of datagrams with an error status")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: silent, error, info, verbose, debug")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Also write logs to this file")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Shorthand for --log-level verbose")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Shorthand for --log-level debug")
}

// loadConfig reads the explicit config, else madscope.yaml in the working
// directory, else the defaults. Flags override file values.
func (f *decodeFlags) loadConfig() (*config.Config, string, error) {
	path := f.configPath
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.Load(path, false)
	case fileExists(config.DefaultPath):
		path = config.DefaultPath
		cfg, err = config.Load(path, false)
	default:
		path = "(defaults)"
		cfg = config.CreateDefault()
	}
	if err != nil {
		return nil, path, err
	}

	if f.noReassembly {
		off := false
		cfg.Decode.Reassemble = &off
	}
	if f.parseOnError {
		cfg.Decode.ParseOnErrorStatus = true
	}
	switch {
	case f.debug:
		cfg.Logging.Level = "debug"
	case f.verbose:
		cfg.Logging.Level = "verbose"
	case f.logLevel != "":
		cfg.Logging.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, path, nil
}

// setup loads config, builds the logger and returns decoder options. The
// caller closes the logger.
func (f *decodeFlags) setup(cmd *cobra.Command, input string) (*config.Config, *logging.Logger, dissect.Options, error) {
	cfg, path, err := f.loadConfig()
	if err != nil {
		return nil, nil, dissect.Options{}, err
	}
	logOpts := cfg.LoggerOptions()
	logOpts.Console = cmd.ErrOrStderr()
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, nil, dissect.Options{}, fmt.Errorf("create logger: %w", err)
	}
	logger.LogStartup(cmd.Name(), input, cfg.Reassemble(), path)
	return cfg, logger, cfg.DecoderOptions(logger), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
