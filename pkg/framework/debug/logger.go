// Package debug provides logging and profiling for plugin and editor code.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
	// LogLevelFatal is for fatal errors that should terminate the plugin.
	LogLevelFatal
	// LogLevelOff disables all logging.
	LogLevelOff
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts the names printed by String, case-insensitively.
func ParseLevel(s string) (LogLevel, error) {
	for l := LogLevelDebug; l <= LogLevelOff; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) zap() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelFatal, LogLevelOff:
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a leveled printf-style logger on top of zap. Zap returns the
// structured logger for callers that want fields.
type Logger struct {
	z       *zap.Logger
	sugar   *zap.SugaredLogger
	level   zap.AtomicLevel
	off     atomic.Bool
	enabled atomic.Bool
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(os.Stderr, "", LogLevelInfo))
}

// New creates a console logger writing to output.
func New(output io.Writer, prefix string, level LogLevel) *Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	atom := zap.NewAtomicLevelAt(level.zap())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(output), atom)

	z := zap.New(core, zap.AddCaller())
	if prefix != "" {
		z = z.Named(prefix)
	}
	l := wrap(z, atom)
	l.off.Store(level == LogLevelOff)
	return l
}

// FromZap wraps an existing zap logger. Level changes only affect the
// printf-style methods.
func FromZap(z *zap.Logger) *Logger {
	return wrap(z, zap.NewAtomicLevelAt(zapcore.DebugLevel))
}

func wrap(z *zap.Logger, atom zap.AtomicLevel) *Logger {
	l := &Logger{
		z:     z,
		sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar(),
		level: atom,
	}
	l.enabled.Store(true)
	return l
}

// NewFileLogger creates a logger that appends to a file.
func NewFileLogger(filename, prefix string, level LogLevel) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(file, prefix, level), nil
}

// Zap returns the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.off.Store(level == LogLevelOff)
	l.level.SetLevel(level.zap())
}

// SetEnabled enables or disables the printf-style methods.
func (l *Logger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// IsEnabled returns whether the logger is enabled.
func (l *Logger) IsEnabled() bool {
	return l.enabled.Load() && !l.off.Load()
}

func (l *Logger) allows(lvl zapcore.Level) bool {
	return l.IsEnabled() && l.level.Enabled(lvl)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.allows(zapcore.DebugLevel) {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.allows(zapcore.InfoLevel) {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.allows(zapcore.WarnLevel) {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.allows(zapcore.ErrorLevel) {
		l.sugar.Errorf(format, args...)
	}
}

// Fatal logs an error and panics. It never exits the host process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.allows(zapcore.DPanicLevel) {
		l.sugar.DPanic(msg)
	}
	panic(msg)
}

// Default returns the default logger instance.
func Default() *Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(level LogLevel) {
	Default().SetLevel(level)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

// Info logs an informational message using the default logger.
func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}
