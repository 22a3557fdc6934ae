// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
logger.go - Global Logger

The process logger is configured once per invocation from the logging section
of the configuration. Every line it writes carries:

	service   - always "tenantvault"
	command   - the CLI command path, e.g. "backup" or "gdpr purge"

Handlers and orchestrators add correlation_id and tenant_id through Ctx, and
supervised jobs add component through WithComponent.

Secret redaction:

Configured secret values (archive key, database and FTP passwords, identity
service key, hash secret) are replaced with [REDACTED] in the encoded output.
This covers the places a secret can reach a log line without being passed to a
logging call directly, most notably pg_dump and psql stderr carried by a
DriverError and connection strings quoted in driver errors.
*/

//nolint:staticcheck // File documentation, not package doc
package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is written as the service field of every log line.
const ServiceName = "tenantvault"

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// minSecretLength keeps short values such as "x" in tests from shredding
// unrelated output.
const minSecretLength = 4

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, disabled.
	// Unknown values fall back to info.
	Level string

	// Format is json (default) or console.
	Format string

	// Caller includes the caller file and line number.
	Caller bool

	// Timestamp enables the time field.
	Timestamp bool

	// Command is the CLI command path recorded on every line.
	Command string

	// Secrets are literal values that must never appear in log output.
	Secrets []string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // Logging must work before Init, e.g. for config errors
func init() {
	log = build(DefaultConfig())
}

// Init replaces the global logger. It may be called more than once.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if secrets := redactable(cfg.Secrets); len(secrets) > 0 {
		out = &redactWriter{out: out, secrets: secrets}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	c := zerolog.New(out).With().Str("service", ServiceName)
	if cfg.Command != "" {
		c = c.Str("command", cfg.Command)
	}
	if cfg.Timestamp {
		c = c.Timestamp()
	}
	if cfg.Caller {
		c = c.Caller()
	}
	return c.Logger()
}

// parseLevel accepts zerolog level names plus "warning".
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

func redactable(secrets []string) [][]byte {
	var out [][]byte
	for _, s := range secrets {
		if len(s) >= minSecretLength {
			out = append(out, []byte(s))
		}
	}
	return out
}

// redactWriter masks secrets in each encoded log line. zerolog calls Write
// once per event, so a secret is never split across calls.
type redactWriter struct {
	out     io.Writer
	secrets [][]byte
}

func (w *redactWriter) Write(p []byte) (int, error) {
	line := p
	for _, s := range w.secrets {
		if bytes.Contains(line, s) {
			line = bytes.ReplaceAll(line, s, []byte(RedactedValue))
		}
	}
	if _, err := w.out.Write(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger, typically with NewTestLogger in tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With creates a child logger context of the global logger.
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// Info starts an info event on the global logger.
//
//	logging.Info().Str("addr", addr).Msg("API listening")
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a warn event on the global logger.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts an error event on the global logger.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// NewTestLogger writes JSON lines to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
