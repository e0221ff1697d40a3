package telemetry

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger exposes the logging capabilities required by simulator components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &stdAdapter{logger: logger}
}

type stdAdapter struct {
	logger *log.Logger
}

func (l *stdAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// WrapZerolog adapts a zerolog logger to the Logger interface. Messages are
// written at the given level.
func WrapZerolog(logger zerolog.Logger, level zerolog.Level) Logger {
	return &zerologAdapter{logger: logger, level: level}
}

type zerologAdapter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func (z *zerologAdapter) Printf(format string, args ...any) {
	if z == nil {
		return
	}
	z.logger.WithLevel(z.level).Msg(fmt.Sprintf(format, args...))
}

// Zerolog returns the underlying structured logger.
func (z *zerologAdapter) Zerolog() zerolog.Logger {
	return z.logger
}

// LogOptions selects the diagnostics format.
type LogOptions struct {
	Level  string
	Format string
	Output io.Writer
}

// ParseLevel maps a config string onto a zerolog level. Unknown values fall
// back to info.
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the diagnostics logger. Format "json" writes one object
// per line; anything else uses the console writer.
func NewZerolog(opts LogOptions) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Str("component", "mobsim").Logger()
}
