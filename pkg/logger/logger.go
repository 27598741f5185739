// Package logger is the structured logging facade for the tracker. It wraps
// zerolog; call sites pass alternating key/value pairs after the message.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls verbosity and destination. A nil Config reads the level
// from TRACKER_LOG_LEVEL and writes JSON lines to stdout.
type Config struct {
	Level  string
	Pretty bool
	Output io.Writer
}

type Logger struct {
	zl zerolog.Logger
}

func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{Level: os.Getenv("TRACKER_LOG_LEVEL")}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Component returns a child logger tagged with the subsystem name, so one
// process's scheduler, dispatcher and digest lines stay distinguishable.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.zl.Debug().Fields(kv).Msg(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.zl.Info().Fields(kv).Msg(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.zl.Warn().Fields(kv).Msg(msg) }

func (l *Logger) Error(err error, msg string, kv ...interface{}) {
	l.zl.Error().Err(err).Fields(kv).Msg(msg)
}
