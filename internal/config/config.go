package config

// Configuration loading and validation for madscope

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/errors"
	"github.com/tturner/madscope/internal/logging"
	"github.com/tturner/madscope/internal/mad/router"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "madscope.yaml"

// Config is the decoder configuration file.
type Config struct {
	Classes    ClassesConfig    `yaml:"classes"`
	Decode     DecodeConfig     `yaml:"decode"`
	Reassembly ReassemblyConfig `yaml:"reassembly"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ClassesConfig holds the management class routing sets, written as
// comma-separated values and ranges ("0x09-0x0F,0x20").
type ClassesConfig struct {
	Vendor      string `yaml:"vendor"`
	VendorRMPP  string `yaml:"vendor_rmpp"`
	Application string `yaml:"application"`
	Reserved    string `yaml:"reserved"`
	Core        string `yaml:"core"`
}

// DecodeConfig toggles decoder behavior.
type DecodeConfig struct {
	Reassemble         *bool `yaml:"reassemble,omitempty"`
	ParseOnErrorStatus bool  `yaml:"parse_on_error_status"`
}

// ReassemblyConfig bounds transfer reassembly state.
type ReassemblyConfig struct {
	Timeout         string `yaml:"timeout"`
	MaxTransactions int    `yaml:"max_transactions"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level    string         `yaml:"level"`
	Format   string         `yaml:"format"` // "console" or "json"
	File     string         `yaml:"file,omitempty"`
	Rotation RotationConfig `yaml:"rotation,omitempty"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	Enable     bool `yaml:"enable"`
	MaxSizeMB  int  `yaml:"max_size_mb,omitempty"`
	MaxBackups int  `yaml:"max_backups,omitempty"`
	MaxAgeDays int  `yaml:"max_age_days,omitempty"`
	Compress   bool `yaml:"compress,omitempty"`
}

// CreateDefault returns the built-in configuration.
func CreateDefault() *Config {
	reassemble := true
	return &Config{
		Classes: ClassesConfig{
			Vendor:      router.DefaultVendor,
			VendorRMPP:  router.DefaultVendorRMPP,
			Application: router.DefaultApplication,
			Reserved:    router.DefaultReserved,
			Core:        router.DefaultCore,
		},
		Decode: DecodeConfig{Reassemble: &reassemble},
		Reassembly: ReassemblyConfig{
			Timeout:         "30s",
			MaxTransactions: 4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Write marshals cfg to path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// WriteDefault writes the built-in configuration to path.
func WriteDefault(path string) error {
	return Write(path, CreateDefault())
}

// Load reads, defaults and validates a config file. With autoCreate a
// missing file is created from the defaults.
func Load(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if !autoCreate {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		if err := WriteDefault(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("read created config file: %w", err), path)
		}
	}
	return Parse(data)
}

// Parse decodes YAML config data, fills unset fields from the defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := CreateDefault()
	classes := &cfg.Classes
	// An omitted set keeps its default; an explicit empty string is honored.
	if classes.Vendor == "" && classes.VendorRMPP == "" && classes.Application == "" &&
		classes.Reserved == "" && classes.Core == "" {
		cfg.Classes = def.Classes
	}
	if cfg.Decode.Reassemble == nil {
		cfg.Decode.Reassemble = def.Decode.Reassemble
	}
	if cfg.Reassembly.Timeout == "" {
		cfg.Reassembly.Timeout = def.Reassembly.Timeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Rotation.Enable {
		if cfg.Logging.Rotation.MaxSizeMB == 0 {
			cfg.Logging.Rotation.MaxSizeMB = 100
		}
		if cfg.Logging.Rotation.MaxBackups == 0 {
			cfg.Logging.Rotation.MaxBackups = 3
		}
	}
}

// Validate checks every field.
func Validate(cfg *Config) error {
	if _, err := cfg.Ranges(); err != nil {
		return err
	}
	if _, err := cfg.Timeout(); err != nil {
		return err
	}
	if cfg.Reassembly.MaxTransactions < 0 {
		return fmt.Errorf("reassembly.max_transactions must be >= 0, got %d", cfg.Reassembly.MaxTransactions)
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got '%s'", cfg.Logging.Format)
	}
	rot := cfg.Logging.Rotation
	if rot.Enable && cfg.Logging.File == "" {
		return fmt.Errorf("logging.rotation requires logging.file")
	}
	if rot.MaxSizeMB < 0 || rot.MaxBackups < 0 || rot.MaxAgeDays < 0 {
		return fmt.Errorf("logging.rotation values must be >= 0")
	}
	return nil
}

// Ranges parses the class routing sets.
func (c *Config) Ranges() (router.Ranges, error) {
	var r router.Ranges
	sets := []struct {
		key string
		src string
		dst *router.RangeSet
	}{
		{"classes.vendor", c.Classes.Vendor, &r.Vendor},
		{"classes.vendor_rmpp", c.Classes.VendorRMPP, &r.VendorRMPP},
		{"classes.application", c.Classes.Application, &r.Application},
		{"classes.reserved", c.Classes.Reserved, &r.Reserved},
		{"classes.core", c.Classes.Core, &r.Core},
	}
	for _, s := range sets {
		rs, err := router.ParseRangeSet(s.src)
		if err != nil {
			return router.Ranges{}, fmt.Errorf("%s: %w", s.key, err)
		}
		*s.dst = rs
	}
	return r, nil
}

// Timeout parses reassembly.timeout. "0" disables expiry.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Reassembly.Timeout == "" || c.Reassembly.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Reassembly.Timeout)
	if err != nil {
		return 0, fmt.Errorf("reassembly.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("reassembly.timeout must be >= 0, got %s", d)
	}
	return d, nil
}

// Reassemble reports whether transfer reassembly is on.
func (c *Config) Reassemble() bool {
	return c.Decode.Reassemble == nil || *c.Decode.Reassemble
}

// DecoderOptions builds decoder options. cfg must have been validated.
func (c *Config) DecoderOptions(log *logging.Logger) dissect.Options {
	ranges, _ := c.Ranges()
	timeout, _ := c.Timeout()
	return dissect.Options{
		Ranges:             &ranges,
		Reassemble:         c.Reassemble(),
		ParseOnErrorStatus: c.Decode.ParseOnErrorStatus,
		ReassemblyTimeout:  timeout,
		MaxTransactions:    c.Reassembly.MaxTransactions,
		Logger:             log,
	}
}

// LoggerOptions builds logger options. cfg must have been validated.
func (c *Config) LoggerOptions() logging.Options {
	level, _ := logging.ParseLevel(c.Logging.Level)
	rot := c.Logging.Rotation
	return logging.Options{
		Level:  level,
		Format: strings.ToLower(c.Logging.Format),
		File:   c.Logging.File,
		Rotation: logging.Rotation{
			Enable:     rot.Enable,
			MaxSizeMB:  rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAgeDays: rot.MaxAgeDays,
			Compress:   rot.Compress,
		},
	}
}
