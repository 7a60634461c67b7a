// Package logging is the leveled logger shared by the decoder and the CLI.
// Messages go through zap; file output can rotate through lumberjack.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

var levelNames = map[string]LogLevel{
	"silent":  LogLevelSilent,
	"error":   LogLevelError,
	"info":    LogLevelInfo,
	"verbose": LogLevelVerbose,
	"debug":   LogLevelDebug,
}

// ParseLevel maps a level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q (want silent, error, info, verbose or debug)", s)
}

func (l LogLevel) String() string {
	for name, lvl := range levelNames {
		if lvl == l {
			return name
		}
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// zap has no level between debug and info; verbose takes debug and debug
// goes one below it.
const (
	zapVerbose = zapcore.DebugLevel
	zapDebug   = zapcore.DebugLevel - 1
)

// Rotation configures lumberjack file rotation.
type Rotation struct {
	Enable     bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options configures a Logger.
type Options struct {
	Level LogLevel
	// Format is "console" (default) or "json".
	Format   string
	File     string
	Rotation Rotation
	// Console receives errors, plus everything at verbose and above.
	// Defaults to stderr.
	Console io.Writer
}

// Logger provides leveled logging
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	z       *zap.Logger
	closers []io.Closer
}

// NewLogger creates a console logger that also writes to logFile when set.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return New(Options{Level: level, File: logFile})
}

// New builds a logger from opts.
func New(opts Options) (*Logger, error) {
	l := &Logger{level: opts.Level}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = encodeLevel
	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "", "console", "text":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel || l.GetLevel() >= LogLevelVerbose
	})
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(console), consoleLevel)}

	if opts.File != "" {
		ws, err := l.fileSyncer(opts.File, opts.Rotation)
		if err != nil {
			return nil, err
		}
		all := zap.LevelEnablerFunc(func(zapcore.Level) bool { return true })
		cores = append(cores, zapcore.NewCore(enc, ws, all))
	}

	l.z = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

func (l *Logger) fileSyncer(path string, rot Rotation) (zapcore.WriteSyncer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	if rot.Enable {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    atLeast(rot.MaxSizeMB, 10),
			MaxBackups: atLeast(rot.MaxBackups, 1),
			MaxAge:     atLeast(rot.MaxAgeDays, 7),
			Compress:   rot.Compress,
		}
		l.closers = append(l.closers, lj)
		return zapcore.AddSync(lj), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	l.closers = append(l.closers, f)
	return zapcore.AddSync(f), nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{level: LogLevelSilent, z: zap.NewNop()}
}

// Close flushes and closes any log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.z.Sync()
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LogLevelError, zapcore.ErrorLevel, format, v)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LogLevelInfo, zapcore.InfoLevel, format, v)
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.log(LogLevelVerbose, zapVerbose, format, v)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LogLevelDebug, zapDebug, format, v)
}

func (l *Logger) log(floor LogLevel, zl zapcore.Level, format string, v []interface{}) {
	if l == nil || l.GetLevel() < floor {
		return
	}
	if ce := l.z.Check(zl, fmt.Sprintf(format, v...)); ce != nil {
		ce.Write()
	}
}

// With returns a child logger that adds structured fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{level: l.GetLevel(), z: l.z.With(fields...)}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogStartup logs what a decode run is about to read.
func (l *Logger) LogStartup(command, input string, reassemble bool, configPath string) {
	l.Info("Starting madscope %s", command)
	l.Verbose("  Input: %s", input)
	l.Verbose("  Reassembly: %t", reassemble)
	l.Verbose("  Config: %s", configPath)
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	l.Debug("%s: %s", label, b.String())
}

func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch lvl {
	case zapVerbose:
		enc.AppendString("VERBOSE")
	case zapDebug:
		enc.AppendString("DEBUG")
	default:
		zapcore.CapitalLevelEncoder(lvl, enc)
	}
}

func atLeast(v, floor int) int {
	if v > floor {
		return v
	}
	return floor
}
