// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats.
const (
	FormatJSON     = "json"
	FormatConsole  = "console"
	FormatKeyValue = "key_value"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // CRITICAL, ERROR, WARNING, INFO, DEBUG, NOTSET or a zerolog level name
	Format  string    // json (default), console or key_value
	Output  io.Writer // optional writer (defaults to os.Stdout)
	File    string    // optional rotating JSON log file
	Service string    // service name attached to every entry
	Version string
}

var (
	mu      sync.RWMutex
	base    zerolog.Logger
	rotator *lumberjack.Logger
)

// Configure replaces the global logger. Workers call it again on start so
// their output matches the web process.
func Configure(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	writer := formatWriter(cfg.Format, out)

	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
		}
		writer = zerolog.MultiLevelWriter(writer, rotator)
	}

	service := cfg.Service
	if service == "" {
		service = "sitekit"
	}
	ctx := zerolog.New(writer).With().Timestamp().Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	base = ctx.Logger()
}

func formatWriter(format string, out io.Writer) io.Writer {
	switch format {
	case FormatConsole:
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatKeyValue:
		return zerolog.ConsoleWriter{
			Out:           out,
			NoColor:       true,
			TimeFormat:    time.RFC3339,
			PartsOrder:    []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, FieldComponent, zerolog.MessageFieldName},
			FieldsExclude: []string{FieldComponent},
		}
	default:
		return out
	}
}

// ParseLevel maps a configured level name to a zerolog level. Unknown
// names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToUpper(name) {
	case "CRITICAL":
		return zerolog.FatalLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "INFO", "":
		return zerolog.InfoLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "NOTSET", "TRACE":
		return zerolog.TraceLevel
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}

// Close flushes and closes the rotating log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}

func init() {
	Configure(Config{})
}
