package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so packages share one set of field helpers
type Logger struct {
	*zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // human readable console output instead of JSON
	OutputFile string // optional; lines are appended to this file as JSON as well
}

// New builds the process logger from cfg
// An unknown or empty level falls back to info. A file that cannot be
// opened is skipped and reported through the returned logger.
func New(cfg Config) *Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	out := console
	var fileErr error
	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fileErr = err
		} else {
			out = zerolog.MultiLevelWriter(console, f)
		}
	}

	zl := zerolog.New(out).With().Timestamp().Caller().Logger()
	l := &Logger{Logger: &zl}
	if fileErr != nil {
		l.Warn().Err(fileErr).Str("file", cfg.OutputFile).Msg("Log file unavailable, logging to stdout only")
	}
	return l
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// NewDefault is the logger used when a constructor receives nil
func NewDefault() *Logger {
	return New(Config{Level: "info", Pretty: true})
}

// NewWriter logs JSON lines to w, for tests that inspect output
func NewWriter(w io.Writer) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{Logger: &zl}
}

// Nop discards everything
func Nop() *Logger {
	zl := zerolog.Nop()
	return &Logger{Logger: &zl}
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	zl := fn(l.With()).Logger()
	return &Logger{Logger: &zl}
}

// WithComponent tags entries with the emitting component (store, coordinator, ...)
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("component", component) })
}

// WithRequestID tags entries with the chi request id
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("request_id", requestID) })
}

// WithCityID tags entries with the city they concern
func (l *Logger) WithCityID(id int64) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Int64("city_id", id) })
}
