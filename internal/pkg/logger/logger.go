package logger

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

// Logger routes ports.Logger calls to a logrus instance.
type Logger struct {
	base *log.Logger
}

// New builds a Logger from settings. verbose forces debug level. When
// settings.File is set, output is mirrored to a size-rotated file.
func New(settings domain.LoggingSettings, verbose bool) *Logger {
	base := log.New()
	base.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	base.SetLevel(ParseLevel(settings.Level))
	if verbose {
		base.SetLevel(log.DebugLevel)
	}

	var out io.Writer = os.Stderr
	if settings.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    positiveOr(settings.MaxSizeMB, 10),
			MaxBackups: positiveOr(settings.MaxBackups, 3),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
	}
	base.SetOutput(out)
	return &Logger{base: base}
}

// NewWithWriter logs to w at the given level; used by tests and tooling.
func NewWithWriter(w io.Writer, level log.Level) *Logger {
	base := log.New()
	base.SetOutput(w)
	base.SetLevel(level)
	base.SetFormatter(&log.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return &Logger{base: base}
}

// NewNop discards everything.
func NewNop() *Logger {
	return NewWithWriter(io.Discard, log.PanicLevel)
}

// ParseLevel maps a config string to a logrus level, defaulting to warn so
// degraded-path messages stay visible.
func ParseLevel(raw string) log.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "verbose":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	case "quiet", "silent":
		return log.FatalLevel
	default:
		return log.WarnLevel
	}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.base.WithFields(fields).Debug(msg)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.base.WithFields(fields).Info(msg)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.base.WithFields(fields).Warn(msg)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	l.base.WithFields(fields).WithError(err).Error(msg)
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

var _ ports.Logger = (*Logger)(nil)
