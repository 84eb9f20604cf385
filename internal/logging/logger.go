// Package logging provides structured logging for Nostrboard.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) Color() string {
	switch l {
	case DEBUG:
		return "\033[36m" // Cyan
	case INFO:
		return "\033[32m" // Green
	case WARN:
		return "\033[33m" // Yellow
	case ERROR:
		return "\033[31m" // Red
	default:
		return "\033[0m"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return DEBUG
	case l < slog.LevelWarn:
		return INFO
	case l < slog.LevelError:
		return WARN
	default:
		return ERROR
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// state is shared by a root logger and everything derived from it.
type state struct {
	mu      sync.Mutex
	level   Level
	output  io.Writer
	format  Format
	color   bool
	handler slog.Handler
}

// Logger is a structured logger
type Logger struct {
	state  *state
	fields []slog.Attr
}

var defaultLogger = New(os.Stdout)

// New creates a root logger writing text to w at INFO.
func New(w io.Writer) *Logger {
	return &Logger{state: &state{
		level:  INFO,
		output: w,
		format: FormatText,
		color:  isTerminal(w),
	}}
}

// Default returns the package logger.
func Default() *Logger {
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	defaultLogger.state.set(func(s *state) { s.level = level })
}

// SetOutput sets the output writer
func SetOutput(w io.Writer) {
	defaultLogger.state.set(func(s *state) {
		s.output = w
		s.color = isTerminal(w)
	})
}

// SetFormat switches between text and JSON lines.
func SetFormat(f Format) {
	defaultLogger.state.set(func(s *state) { s.format = f })
}

// Configure applies level and format names from config.
func Configure(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	f := FormatText
	switch strings.ToLower(format) {
	case "", "text":
	case "json":
		f = FormatJSON
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	SetLevel(lvl)
	SetFormat(f)
	return nil
}

// WithField returns a logger with a field added
func WithField(key string, value interface{}) *Logger {
	return defaultLogger.WithField(key, value)
}

// WithFields returns a logger with multiple fields added
func WithFields(fields map[string]interface{}) *Logger {
	return defaultLogger.WithFields(fields)
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make([]slog.Attr, 0, len(l.fields)+1)
	fields = append(fields, l.fields...)
	fields = append(fields, slog.Any(key, value))
	return &Logger{state: l.state, fields: fields}
}

// WithFields adds multiple fields, in key order
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(l.fields)+len(keys))
	attrs = append(attrs, l.fields...)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return &Logger{state: l.state, fields: attrs}
}

// Enabled reports whether level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	return level >= l.state.level
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}

	r := slog.NewRecord(time.Now(), level.slogLevel(), formatted, 0)
	r.AddAttrs(l.fields...)
	_ = s.handlerLocked().Handle(context.Background(), r)
}

func (s *state) set(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	s.handler = nil
}

func (s *state) handlerLocked() slog.Handler {
	if s.handler != nil {
		return s.handler
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if s.format == FormatJSON {
		s.handler = slog.NewJSONHandler(s.output, opts)
		return s.handler
	}

	color := s.color
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			return slog.String(slog.TimeKey, a.Value.Time().Format("15:04:05"))
		case slog.LevelKey:
			lvl := levelFromSlog(a.Value.Any().(slog.Level))
			if color {
				return slog.String(slog.LevelKey, lvl.Color()+lvl.String()+"\033[0m")
			}
			return slog.String(slog.LevelKey, lvl.String())
		}
		return a
	}
	s.handler = slog.NewTextHandler(s.output, opts)
	return s.handler
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	defaultLogger.log(DEBUG, msg, args...)
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	defaultLogger.log(INFO, msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	defaultLogger.log(WARN, msg, args...)
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	defaultLogger.log(ERROR, msg, args...)
}

// Logger methods
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args...) }
