package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Fields is a set of structured log fields.
type Fields = map[string]any

// Logger is a leveled structured logger. Output format is either "json"
// (one object per line) or "console" (human readable), chosen at
// construction time.
type Logger struct {
	mu     sync.Mutex
	level  Level
	out    io.Writer
	format string
	fields Fields
	exit   func(int)
}

// NewLogger creates a logger writing to stderr.
func NewLogger(level Level, format string) *Logger {
	return &Logger{
		level:  level,
		out:    os.Stderr,
		format: format,
		exit:   os.Exit,
	}
}

// NewFromEnv builds a logger from LOG_LEVEL and LOG_FORMAT.
func NewFromEnv() *Logger {
	format := os.Getenv("LOG_FORMAT")
	if format != "json" {
		format = "console"
	}
	return NewLogger(ParseLevel(os.Getenv("LOG_LEVEL")), format)
}

// SetLevel changes the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects log output.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// WithField returns a logger that attaches key=value to every entry.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a logger that attaches all given fields to every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		level:  l.level,
		out:    l.out,
		format: l.format,
		fields: merged,
		exit:   l.exit,
	}
}

// WithError is shorthand for WithField("error", err).
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(msg string)                  { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)                   { l.log(LevelInfo, msg) }
func (l *Logger) Warn(msg string)                   { l.log(LevelWarn, msg) }
func (l *Logger) Error(msg string)                  { l.log(LevelError, msg) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

func (l *Logger) Fatal(msg string) {
	l.log(LevelFatal, msg)
	l.exit(1)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.log(LevelFatal, fmt.Sprintf(format, args...))
	l.exit(1)
}

func (l *Logger) log(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	now := time.Now()
	if l.format == "json" {
		entry := make(map[string]any, len(l.fields)+3)
		for k, v := range l.fields {
			entry[k] = v
		}
		entry["time"] = now.Format(time.RFC3339)
		entry["level"] = level.String()
		entry["message"] = msg
		b, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.out, "%s %s %s\n", now.Format(time.RFC3339), level, msg)
			return
		}
		l.out.Write(append(b, '\n'))
		return
	}

	fmt.Fprintf(l.out, "%s [%s] %s%s\n", now.Format("2006-01-02 15:04:05"), level, msg, renderFields(l.fields))
}

func renderFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += fmt.Sprintf(" %s=%v", k, fields[k])
	}
	return s
}
