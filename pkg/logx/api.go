package logx

import "io"

// defaultLogger is the global logger, initialized from the environment.
var defaultLogger = NewFromEnv()

// SetDefaultLogger replaces the global logger.
func SetDefaultLogger(logger *Logger) { defaultLogger = logger }

// GetDefaultLogger returns the global logger.
func GetDefaultLogger() *Logger { return defaultLogger }

// SetLevel sets the level of the global logger.
func SetLevel(level Level) { defaultLogger.SetLevel(level) }

// SetOutput sets the output of the global logger.
func SetOutput(w io.Writer) { defaultLogger.SetOutput(w) }

func Debug(msg string)                  { defaultLogger.Debug(msg) }
func Info(msg string)                   { defaultLogger.Info(msg) }
func Warn(msg string)                   { defaultLogger.Warn(msg) }
func Error(msg string)                  { defaultLogger.Error(msg) }
func Fatal(msg string)                  { defaultLogger.Fatal(msg) }
func Debugf(format string, args ...any) { defaultLogger.Debugf(format, args...) }
func Infof(format string, args ...any)  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...any) { defaultLogger.Errorf(format, args...) }
func Fatalf(format string, args ...any) { defaultLogger.Fatalf(format, args...) }

// WithField returns a child of the global logger carrying one field.
func WithField(key string, value any) *Logger { return defaultLogger.WithField(key, value) }

// WithFields returns a child of the global logger carrying the given fields.
func WithFields(fields Fields) *Logger { return defaultLogger.WithFields(fields) }

// WithError returns a child of the global logger carrying the error.
func WithError(err error) *Logger { return defaultLogger.WithError(err) }
