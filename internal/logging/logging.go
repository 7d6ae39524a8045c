// Package logging sets up the process-wide zerolog sinks.
//
// The console sink is meant for interactive runs (short timestamps,
// key=value rendering); the optional file sink keeps structured JSON for
// later inspection. Services derive their own loggers with a "component"
// field via Component().
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config controls log level and sinks.
type Config struct {
	Level   string     `json:"level,omitempty"`   // trace|debug|info|warn|error (default info)
	Console bool       `json:"console"`           // pretty console writer on stdout
	File    FileConfig `json:"file,omitempty"`    // optional JSON file sink
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// New builds the root logger. The returned closer flushes/closes the file
// sink (if any) and is safe to call once on shutdown.
func New(cfg Config) (zerolog.Logger, func(), error) {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat})
	}

	closer := func() {}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			return zerolog.Nop(), closer, fmt.Errorf("logging.file.path is required when file sink is enabled")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerolog.Nop(), closer, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		sinks = append(sinks, f)
		closer = func() { _ = f.Close() }
	}

	var out io.Writer
	switch len(sinks) {
	case 0:
		// No sinks configured: still log somewhere sane.
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}
	case 1:
		out = sinks[0]
	default:
		out = zerolog.MultiLevelWriter(sinks...)
	}

	lvl := parseLevel(cfg.Level, zerolog.InfoLevel)
	log := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return log, closer, nil
}

// Component returns a child logger tagged with the service name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		if s == "" {
			return def
		}
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
